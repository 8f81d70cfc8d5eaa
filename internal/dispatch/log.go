package dispatch

import (
	"sync"
)

// messageLog is a bounded FIFO of retained messages. When full, the
// oldest entry is evicted; evicting an unprocessed entry corrects the
// unprocessed counter so it always matches the surviving entries.
type messageLog struct {
	mu          sync.Mutex
	entries     []*InboundMessage
	limit       int
	unprocessed int
	evicted     int64
}

func newMessageLog(limit int) *messageLog {
	if limit <= 0 {
		limit = 1000
	}
	return &messageLog{
		entries: make([]*InboundMessage, 0, limit),
		limit:   limit,
	}
}

// append adds a message as unprocessed, evicting the oldest entry when
// the log is at capacity. Returns true if an eviction happened.
func (l *messageLog) append(msg *InboundMessage) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	var evicted bool
	if len(l.entries) >= l.limit {
		oldest := l.entries[0]
		if !oldest.Processed {
			l.unprocessed--
		}
		copy(l.entries, l.entries[1:])
		l.entries = l.entries[:len(l.entries)-1]
		l.evicted++
		evicted = true
	}

	l.entries = append(l.entries, msg)
	l.unprocessed++
	return evicted
}

// markProcessed flips a message to processed exactly once.
func (l *messageLog) markProcessed(msg *InboundMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.Processed {
		return
	}
	msg.Processed = true
	l.unprocessed--
}

// clearProcessed drops processed entries, preserving arrival order of
// the survivors.
func (l *messageLog) clearProcessed() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0]
	removed := 0
	for _, msg := range l.entries {
		if msg.Processed {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	for i := len(kept); i < len(l.entries); i++ {
		l.entries[i] = nil
	}
	l.entries = kept
	return removed
}

// recent returns copies of the most recent limit messages in arrival
// order. limit <= 0 means all.
func (l *messageLog) recent(limit int) []InboundMessage {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]InboundMessage, 0, n)
	for _, msg := range l.entries[len(l.entries)-n:] {
		out = append(out, *msg)
	}
	return out
}

func (l *messageLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *messageLog) unprocessedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unprocessed
}

func (l *messageLog) evictedCount() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.evicted
}
