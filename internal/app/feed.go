package app

import (
	"sync"

	"district-exam-service/internal/domain"
)

// Feed fans ranked leaderboard snapshots out to live subscribers, one
// subscriber set per exam. Publishing never blocks on a slow consumer.
type Feed struct {
	mu   sync.RWMutex
	subs map[int64]map[chan []domain.LeaderboardRow]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[int64]map[chan []domain.LeaderboardRow]struct{})}
}

// Subscribe registers a listener for one exam's leaderboard updates.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *Feed) Subscribe(examID int64) (<-chan []domain.LeaderboardRow, func()) {
	ch := make(chan []domain.LeaderboardRow, 8)

	f.mu.Lock()
	if f.subs[examID] == nil {
		f.subs[examID] = make(map[chan []domain.LeaderboardRow]struct{})
	}
	f.subs[examID][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[examID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subs, examID)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers a snapshot to every subscriber of the exam. A full
// buffer drops the stale snapshot so slow clients never block others.
func (f *Feed) Publish(examID int64, rows []domain.LeaderboardRow) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for ch := range f.subs[examID] {
		select {
		case ch <- rows:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- rows:
			default:
			}
		}
	}
}
