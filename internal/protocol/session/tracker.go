package session

import (
	"slices"
	"sync"
	"time"

	"github.com/danmuck/msrpctl/internal/observability"
)

// TransactionInfo records one outgoing transaction until its final outcome or expiry.
type TransactionInfo struct {
	TransactionID string
	MessageID     string
	AppMessageID  string
	ChunkType     ChunkType
	CreatedAt     time.Time
}

// trackIndex is the Enabled form of a Tracker. byMsg lists the live transaction ids of
// each message-id, oldest first; every id in it has an entry in byTx.
type trackIndex struct {
	byTx  map[string]TransactionInfo
	byMsg map[string][]string
}

// Tracker is either Disabled (nil index, every call is a no-op) or Enabled. The mode is
// fixed at construction.
type Tracker struct {
	mu     sync.Mutex
	index  *trackIndex
	expiry time.Duration
	now    func() time.Time
}

func NewTracker(enabled bool, expiry time.Duration, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{expiry: expiry, now: now}
	if enabled {
		t.index = &trackIndex{
			byTx:  make(map[string]TransactionInfo),
			byMsg: make(map[string][]string),
		}
	}
	return t
}

func (t *Tracker) Enabled() bool {
	return t.index != nil
}

// Add registers info, stamping CreatedAt when unset.
func (t *Tracker) Add(info TransactionInfo) {
	if t.index == nil || info.TransactionID == "" {
		return
	}
	if info.CreatedAt.IsZero() {
		info.CreatedAt = t.now()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.index.byTx[info.TransactionID]; ok {
		t.unlinkLocked(old)
	} else {
		observability.AddTrackedTransactions(1)
	}
	t.index.byTx[info.TransactionID] = info
	if info.MessageID != "" {
		t.index.byMsg[info.MessageID] = append(t.index.byMsg[info.MessageID], info.TransactionID)
	}
}

func (t *Tracker) Get(txID string) (TransactionInfo, bool) {
	if t.index == nil {
		return TransactionInfo{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.index.byTx[txID]
	return info, ok
}

// GetByMessageID returns the newest live transaction sent under msgID.
func (t *Tracker) GetByMessageID(msgID string) (TransactionInfo, bool) {
	if t.index == nil {
		return TransactionInfo{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.index.byMsg[msgID]
	if len(ids) == 0 {
		return TransactionInfo{}, false
	}
	info, ok := t.index.byTx[ids[len(ids)-1]]
	return info, ok
}

// Remove evicts txID from both indexes in one step.
func (t *Tracker) Remove(txID string) bool {
	if t.index == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(txID)
}

func (t *Tracker) removeLocked(txID string) bool {
	info, ok := t.index.byTx[txID]
	if !ok {
		return false
	}
	delete(t.index.byTx, txID)
	t.unlinkLocked(info)
	observability.AddTrackedTransactions(-1)
	return true
}

func (t *Tracker) unlinkLocked(info TransactionInfo) {
	ids := t.index.byMsg[info.MessageID]
	if i := slices.Index(ids, info.TransactionID); i >= 0 {
		ids = slices.Delete(ids, i, i+1)
	}
	if len(ids) == 0 {
		delete(t.index.byMsg, info.MessageID)
		return
	}
	t.index.byMsg[info.MessageID] = ids
}

// Sweep evicts entries whose age is at least the expiry window, or negative.
func (t *Tracker) Sweep() int {
	if t.index == nil {
		return 0
	}
	now := t.now()

	t.mu.Lock()
	snapshot := make([]TransactionInfo, 0, len(t.index.byTx))
	for _, info := range t.index.byTx {
		snapshot = append(snapshot, info)
	}
	t.mu.Unlock()

	evicted := 0
	for _, info := range snapshot {
		age := now.Sub(info.CreatedAt)
		if age < t.expiry && age >= 0 {
			continue
		}
		t.mu.Lock()
		if cur, ok := t.index.byTx[info.TransactionID]; ok && cur.CreatedAt.Equal(info.CreatedAt) {
			t.removeLocked(info.TransactionID)
			evicted++
		}
		t.mu.Unlock()
	}
	return evicted
}

func (t *Tracker) Len() int {
	if t.index == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.index.byTx)
}

// consistent reports whether every message-id entry points at a live transaction.
func (t *Tracker) consistent() bool {
	if t.index == nil {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for msgID, ids := range t.index.byMsg {
		if len(ids) == 0 {
			return false
		}
		for _, id := range ids {
			info, ok := t.index.byTx[id]
			if !ok || info.MessageID != msgID {
				return false
			}
		}
	}
	return true
}
