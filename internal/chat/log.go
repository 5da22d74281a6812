package chat

import "sync"

// Log is the ordered message history of one report conversation.
type Log struct {
	mu       sync.Mutex
	messages []Message
	subs     map[int]*subscriber
	nextSub  int
	dirty    bool

	notifyMu sync.Mutex
}

type subscriber struct {
	fn   func([]Message)
	owed bool
}

func NewLog() *Log {
	return &Log{subs: make(map[int]*subscriber)}
}

func (l *Log) Add(msg Message) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.dirty = true
	l.mu.Unlock()
	l.notify()
}

// Remove deletes the message with the given id and reports whether it was
// present.
func (l *Log) Remove(id string) bool {
	l.mu.Lock()
	idx := -1
	for i, m := range l.messages {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	l.messages = append(l.messages[:idx:idx], l.messages[idx+1:]...)
	l.dirty = true
	l.mu.Unlock()
	l.notify()
	return true
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.messages = nil
	l.dirty = true
	l.mu.Unlock()
	l.notify()
}

func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

// Subscribe registers fn to receive the full history after each change.
// When changes race, intermediate snapshots may be skipped but the last
// one delivered is always current.
func (l *Log) Subscribe(fn func([]Message)) func() {
	return l.register(fn, false)
}

// Watch is Subscribe preceded by a delivery of the current history, made
// in the same sequence as change notifications so it is never overtaken by
// an older snapshot.
func (l *Log) Watch(fn func([]Message)) func() {
	unsubscribe := l.register(fn, true)
	l.notify()
	return unsubscribe
}

func (l *Log) register(fn func([]Message), owed bool) func() {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = &subscriber{fn: fn, owed: owed}
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

func (l *Log) notify() {
	for {
		if !l.notifyMu.TryLock() {
			return
		}

		l.mu.Lock()
		dirty := l.dirty
		l.dirty = false
		snapshot := l.snapshotLocked()
		subs := make([]func([]Message), 0, len(l.subs))
		for _, sub := range l.subs {
			if dirty || sub.owed {
				subs = append(subs, sub.fn)
			}
			sub.owed = false
		}
		l.mu.Unlock()

		for _, fn := range subs {
			fn(snapshot)
		}
		l.notifyMu.Unlock()

		l.mu.Lock()
		again := l.pendingLocked()
		l.mu.Unlock()
		if !again {
			return
		}
	}
}

func (l *Log) pendingLocked() bool {
	if l.dirty {
		return true
	}
	for _, sub := range l.subs {
		if sub.owed {
			return true
		}
	}
	return false
}

func (l *Log) snapshotLocked() []Message {
	out := make([]Message, len(l.messages))
	copy(out, l.messages)
	return out
}
