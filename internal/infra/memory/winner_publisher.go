package memory

import (
	"context"
	"sync"

	"contest-service/internal/domain"
)

// WinnerPublisher collects winner signals in memory. It backs tests and the
// no-broker configuration, where signals are only logged.
type WinnerPublisher struct {
	mu      sync.Mutex
	signals []domain.WinnerSignal
}

func NewWinnerPublisher() *WinnerPublisher {
	return &WinnerPublisher{}
}

func (p *WinnerPublisher) PublishWinner(_ context.Context, signal domain.WinnerSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, signal)
	return nil
}

// Signals returns a copy of everything published so far.
func (p *WinnerPublisher) Signals() []domain.WinnerSignal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.WinnerSignal(nil), p.signals...)
}
