package service

import (
	"context"
	"sync"
	"sync/atomic"

	"pdf-tools-bot/internal/domain"
)

// FlightKind distinguishes uploads from operations at the gate.
type FlightKind int

const (
	FlightUpload FlightKind = iota
	FlightOperation
)

// Flight is one admitted unit of work for a conversation.
type Flight struct {
	conv      domain.ConversationID
	kind      FlightKind
	epoch     uint64
	slot      *slot
	cancelled atomic.Bool
	state     atomic.Int32
}

// Cancelled reports whether /cancel was issued after this flight was queued.
func (f *Flight) Cancelled() bool {
	return f.cancelled.Load()
}

// State returns the current handler state.
func (f *Flight) State() domain.OperationState {
	return domain.OperationState(f.state.Load())
}

func (f *Flight) setState(s domain.OperationState) {
	f.state.Store(int32(s))
}

type slot struct {
	sem    chan struct{}
	refs   int
	ops    int
	epoch  uint64
	holder *Flight
}

// Gate admits at most one flight per conversation at a time. Uploads queue;
// an operation is refused with domain.ErrBusy while another operation for the
// same conversation is running or queued.
type Gate struct {
	mu    sync.Mutex
	slots map[domain.ConversationID]*slot
}

// NewGate creates an empty gate.
func NewGate() *Gate {
	return &Gate{slots: make(map[domain.ConversationID]*slot)}
}

// Acquire waits for the conversation's slot.
func (g *Gate) Acquire(ctx context.Context, conv domain.ConversationID, kind FlightKind) (*Flight, error) {
	g.mu.Lock()
	s, ok := g.slots[conv]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		g.slots[conv] = s
	}
	if kind == FlightOperation {
		if s.ops > 0 {
			g.mu.Unlock()
			return nil, domain.ErrBusy
		}
		s.ops++
	}
	s.refs++
	epoch := s.epoch
	g.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		g.mu.Lock()
		g.leaveLocked(conv, s, kind)
		g.mu.Unlock()
		return nil, ctx.Err()
	}

	f := &Flight{conv: conv, kind: kind, epoch: epoch, slot: s}
	g.mu.Lock()
	s.holder = f
	if s.epoch != epoch {
		f.cancelled.Store(true)
	}
	g.mu.Unlock()
	return f, nil
}

// Release frees the slot held by f.
func (g *Gate) Release(f *Flight) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := f.slot
	if s.holder == f {
		s.holder = nil
	}
	<-s.sem
	g.leaveLocked(f.conv, s, f.kind)
}

// Cancel marks the running flight and every queued flight of the
// conversation as cancelled. It reports whether an operation was running.
func (g *Gate) Cancel(conv domain.ConversationID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[conv]
	if !ok {
		return false
	}
	s.epoch++
	if s.holder != nil {
		s.holder.cancelled.Store(true)
		return s.holder.kind == FlightOperation
	}
	return false
}

// Busy reports whether an operation is running or queued for conv.
func (g *Gate) Busy(conv domain.ConversationID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	s, ok := g.slots[conv]
	return ok && s.ops > 0
}

func (g *Gate) leaveLocked(conv domain.ConversationID, s *slot, kind FlightKind) {
	s.refs--
	if kind == FlightOperation {
		s.ops--
	}
	if s.refs == 0 {
		delete(g.slots, conv)
	}
}
