package app

import (
	"sync"

	"contest-service/internal/domain"
)

// ResultsHub fans ranking updates out to websocket subscribers, per contest.
// Subscriptions are in-process only; a restart drops them and clients
// reconnect.
type ResultsHub struct {
	mu       sync.Mutex
	contests map[int64]map[chan domain.Ranking]struct{}
}

func NewResultsHub() *ResultsHub {
	return &ResultsHub{contests: make(map[int64]map[chan domain.Ranking]struct{})}
}

// Subscribe registers a listener for a contest's ranking updates. The
// initial board is delivered first. The caller must invoke the returned
// cancel function to avoid leaks.
func (h *ResultsHub) Subscribe(contestID int64, initial domain.Ranking) (<-chan domain.Ranking, func()) {
	ch := make(chan domain.Ranking, 8)

	h.mu.Lock()
	subs, ok := h.contests[contestID]
	if !ok {
		subs = make(map[chan domain.Ranking]struct{})
		h.contests[contestID] = subs
	}
	subs[ch] = struct{}{}
	h.mu.Unlock()

	ch <- initial

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs, ok := h.contests[contestID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(h.contests, contestID)
		}
	}
	return ch, cancel
}

// Publish delivers a fresh board to every subscriber of the contest. A slow
// subscriber has its stale update dropped rather than blocking the rest.
func (h *ResultsHub) Publish(contestID int64, ranking domain.Ranking) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.contests[contestID] {
		select {
		case ch <- ranking:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- ranking
		}
	}
}
