package inference

import (
	"context"
	"sync"
)

// Serializer grants exclusive turns in strict FIFO order. Waiters that
// are cancelled before their turn comes are removed from the queue.
type Serializer struct {
	mu    sync.Mutex
	busy  bool
	queue []chan struct{}
}

// Acquire blocks until the caller holds the serializer or the context
// is cancelled.
func (s *Serializer) Acquire(ctx context.Context) error {
	s.mu.Lock()
	if !s.busy {
		s.busy = true
		s.mu.Unlock()
		return nil
	}
	turn := make(chan struct{})
	s.queue = append(s.queue, turn)
	s.mu.Unlock()

	select {
	case <-turn:
		return nil
	case <-ctx.Done():
		s.mu.Lock()
		for i, w := range s.queue {
			if w == turn {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				s.mu.Unlock()
				return ctx.Err()
			}
		}
		s.mu.Unlock()
		// The turn was granted concurrently with cancellation; hand
		// it to the next waiter.
		s.Release()
		return ctx.Err()
	}
}

// Release hands the serializer to the oldest waiter, or marks it idle.
func (s *Serializer) Release() {
	s.mu.Lock()
	if len(s.queue) > 0 {
		turn := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		close(turn)
		return
	}
	s.busy = false
	s.mu.Unlock()
}

// SerializedSession runs at most one inference at a time, dispatching
// queued requests in arrival order.
type SerializedSession struct {
	session    Session
	serializer Serializer
}

func NewSerializedSession(session Session) *SerializedSession {
	return &SerializedSession{session: session}
}

// Run waits for its turn and then executes the model. A context
// cancelled while waiting aborts without touching the session.
func (s *SerializedSession) Run(ctx context.Context, input *Tensor) ([]*Tensor, error) {
	if err := s.serializer.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.serializer.Release()
	return s.session.Run(ctx, input)
}

func (s *SerializedSession) InputShape() []int64 {
	return s.session.InputShape()
}

func (s *SerializedSession) Close() error {
	return s.session.Close()
}
