package stream

import (
	"context"
	"errors"
	"sync"

	"github.com/looplab/fsm"

	"github.com/youruser/wireframe/internal/logging"
	"github.com/youruser/wireframe/internal/patch"
	"github.com/youruser/wireframe/internal/tree"
)

var (
	// ErrNotIdle is returned by Start when the session has already run or is
	// running. The canonical caller policy is: cancel any active session,
	// then create a fresh one.
	ErrNotIdle = errors.New("session is not idle")
	// ErrNotTerminal is returned by Reset while the session is still active.
	ErrNotTerminal = errors.New("session is still active")
	// ErrCancelled is returned by Start when the caller cancelled the
	// session. Distinguished from transport errors so callers can tell
	// "I stopped it" from "it broke".
	ErrCancelled = errors.New("generation cancelled")

	log = logging.Get()
)

// Session states.
const (
	StateIdle      = "idle"
	StateActive    = "active"
	StateCompleted = "completed"
	StateErrored   = "errored"
	StateCancelled = "cancelled"
)

const (
	eventBegin    = "begin"
	eventComplete = "complete"
	eventFail     = "fail"
	eventCancel   = "cancel"
	eventReset    = "reset"
)

// ChunkSource opens the transport and delivers raw text chunks to sink, in
// order, until end-of-stream. It returns nil on a clean end-of-stream and an
// error on transport failure. Implementations must honor ctx cancellation by
// aborting the underlying read, not merely ignoring it, so cancelling also
// frees the connection. A non-nil error from sink aborts the stream.
type ChunkSource func(ctx context.Context, sink func(chunk string) error) error

// Callbacks receive session progress. All callbacks are invoked from the
// goroutine running Start, never concurrently with each other. Nil callbacks
// are skipped.
type Callbacks struct {
	// OnSnapshot receives the running tree after each chunk's worth of
	// operations has been folded in. Snapshots are immutable values,
	// superseded by later snapshots.
	OnSnapshot func(*tree.Tree)
	// OnComplete receives the final committed tree once, on clean
	// end-of-stream.
	OnComplete func(*tree.Tree)
	// OnError receives the transport error when the session fails. Codec
	// errors on individual lines are not reported here; they are logged
	// and skipped.
	OnError func(error)
}

// Session runs exactly one generation end-to-end: it pumps transport chunks
// through the line reframer, parses each line with the patch codec, folds
// valid operations into the running tree, and publishes snapshots. A Session
// owns its tree until it reaches a terminal state, after which the final
// snapshot belongs to the caller (to keep, render, or seed the next delta
// generation with).
type Session struct {
	mu        sync.Mutex
	sm        *fsm.FSM
	cancel    context.CancelFunc
	cancelled bool
	cur       *tree.Tree
	cb        Callbacks
}

// New creates an idle session seeded with base (a delta generation's base
// tree), or with an empty tree when base is nil.
func New(base *tree.Tree, cb Callbacks) *Session {
	return &Session{
		cur: base.Clone(),
		cb:  cb,
		sm: fsm.NewFSM(
			StateIdle,
			fsm.Events{
				{Name: eventBegin, Src: []string{StateIdle}, Dst: StateActive},
				{Name: eventComplete, Src: []string{StateActive}, Dst: StateCompleted},
				{Name: eventFail, Src: []string{StateActive}, Dst: StateErrored},
				{Name: eventCancel, Src: []string{StateActive}, Dst: StateCancelled},
				{Name: eventReset, Src: []string{StateCompleted, StateErrored, StateCancelled}, Dst: StateIdle},
			},
			fsm.Callbacks{},
		),
	}
}

// State returns the current lifecycle state.
func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sm.Current()
}

// Tree returns the latest snapshot. After completion this is the committed
// result; after an error or cancellation it is the last snapshot folded
// before the stream stopped, so prior progress is never lost.
func (s *Session) Tree() *tree.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Start opens the transport via source and runs the pump loop to a terminal
// state. It blocks until the stream ends, fails, or is cancelled; callers
// wanting it off their goroutine run it with go. Returns nil on completion,
// ErrCancelled on cancellation, the transport error otherwise. May only be
// called once, from idle.
func (s *Session) Start(ctx context.Context, source ChunkSource) error {
	s.mu.Lock()
	if s.sm.Current() != StateIdle {
		s.mu.Unlock()
		return ErrNotIdle
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	if err := s.sm.Event(ctx, eventBegin); err != nil {
		s.mu.Unlock()
		cancel()
		return err
	}
	s.mu.Unlock()
	defer cancel()

	var rf Reframer
	var applied, skipped int

	err := source(ctx, func(chunk string) error {
		// Cancellation is checked at the chunk boundary; everything below
		// runs to completion before the next suspension, so callers never
		// observe a partially folded chunk.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lines := rf.Feed(chunk)
		if len(lines) == 0 {
			return nil
		}
		for _, line := range lines {
			s.applyLine(line, &applied, &skipped)
		}
		s.publish()
		return nil
	})

	if err != nil {
		if s.wasCancelled() || errors.Is(err, context.Canceled) {
			rf.Discard()
			s.transition(eventCancel)
			log.Info("Generation cancelled after %d operation(s)", applied)
			return ErrCancelled
		}
		s.transition(eventFail)
		log.Error("Generation transport failed: %v", err)
		if s.cb.OnError != nil {
			s.cb.OnError(err)
		}
		return err
	}

	// The producer is not required to terminate its last line.
	if tail, ok := rf.Flush(); ok {
		s.applyLine(tail, &applied, &skipped)
		s.publish()
	}

	s.transition(eventComplete)
	log.Info("Generation completed: %d operation(s) applied, %d line(s) skipped", applied, skipped)
	if s.cb.OnComplete != nil {
		s.cb.OnComplete(s.Tree())
	}
	return nil
}

// Cancel signals the transport to stop reading and marks the session for
// the cancelled terminal state. Valid only while active; returns whether a
// cancellation was issued. No further snapshots are published afterwards.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sm.Current() != StateActive || s.cancel == nil {
		return false
	}
	s.cancelled = true
	s.cancel()
	return true
}

// Reset returns a terminal session to idle with an empty tree. Callers who
// want the result must have captured it from OnComplete or Tree first.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.sm.Event(context.Background(), eventReset); err != nil {
		return ErrNotTerminal
	}
	s.cancelled = false
	s.cancel = nil
	s.cur = tree.New()
	return nil
}

// applyLine parses and folds one reframed line. Malformed lines are logged
// and skipped; they never abort the session.
func (s *Session) applyLine(line string, applied, skipped *int) {
	op, err := patch.ParseLine(line)
	if err != nil {
		*skipped++
		log.Info("Skipping malformed patch line: %v", err)
		return
	}
	if op == nil {
		return
	}
	s.mu.Lock()
	s.cur = tree.Apply(s.cur, *op)
	s.mu.Unlock()
	*applied++
}

// publish hands the current snapshot to OnSnapshot, unless the session has
// been cancelled in the meantime.
func (s *Session) publish() {
	s.mu.Lock()
	cur, cancelled := s.cur, s.cancelled
	s.mu.Unlock()
	if cancelled || s.cb.OnSnapshot == nil {
		return
	}
	s.cb.OnSnapshot(cur)
}

func (s *Session) wasCancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func (s *Session) transition(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.sm.Event(context.Background(), event)
}
