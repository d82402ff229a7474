package engine

import (
	"container/list"
	"sync"

	"github.com/benvon/smart-nudge/internal/models"
)

const defaultIndexCapacity = 10000

// issued is what the service remembers about a displayed message
type issued struct {
	messageID  string
	userID     string
	typ        models.MessageType
	category   models.MessageCategory
	tone       models.Tone
	experiment *models.Experiment
}

// issuedIndex maps message ids to their recipients, forgetting the oldest
// entries past capacity
type issuedIndex struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

func newIssuedIndex(capacity int) *issuedIndex {
	return &issuedIndex{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (x *issuedIndex) put(e issued) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if el, ok := x.entries[e.messageID]; ok {
		el.Value = e
		x.order.MoveToFront(el)
		return
	}
	x.entries[e.messageID] = x.order.PushFront(e)
	for x.order.Len() > x.capacity {
		oldest := x.order.Back()
		x.order.Remove(oldest)
		delete(x.entries, oldest.Value.(issued).messageID)
	}
}

func (x *issuedIndex) get(messageID string) (issued, bool) {
	x.mu.Lock()
	defer x.mu.Unlock()
	el, ok := x.entries[messageID]
	if !ok {
		return issued{}, false
	}
	return el.Value.(issued), true
}

func (x *issuedIndex) len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.order.Len()
}

func (x *issuedIndex) reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.order.Init()
	x.entries = make(map[string]*list.Element)
}
