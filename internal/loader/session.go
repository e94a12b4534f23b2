package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/chartdeck/chartdeck/internal/protocol"
)

// State is a load session's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateManifestPending
	StateQuickBatch
	StateQuickBatch2
	StateReady
	StateBackgroundFill
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateManifestPending:
		return "manifest_pending"
	case StateQuickBatch:
		return "quick_batch"
	case StateQuickBatch2:
		return "quick_batch_2"
	case StateReady:
		return "ready"
	case StateBackgroundFill:
		return "background_fill"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// session tracks one folder load from manifest to background-fill
// completion. It owns the cancellation context; superseding a session fires
// cancel and any late merge attempts for it are discarded.
type session struct {
	folderName string
	key        string
	ctx        context.Context
	cancel     context.CancelFunc
	endOnce    sync.Once

	mu    sync.Mutex
	state State

	// plan is the full prioritized target list; pos marks how far the
	// session has dispatched. Targets before pos had their one attempt,
	// whether or not it succeeded.
	plan []protocol.FileDescriptor
	pos  int
}

func newSession(parent context.Context, folderName string, seq uint64) *session {
	ctx, cancel := context.WithCancel(parent)
	return &session{
		folderName: folderName,
		key:        fmt.Sprintf("%s#%d", folderName, seq),
		ctx:        ctx,
		cancel:     cancel,
		state:      StateIdle,
	}
}

func (s *session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateCancelled || s.state == StateDone {
		return
	}
	s.state = st
}

// State returns the session's current state.
func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// take dispatches up to n targets from the plan, advancing the attempt
// cursor so no target is ever handed out twice.
func (s *session) take(n int) []protocol.FileDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.plan) {
		return nil
	}
	end := s.pos + n
	if n <= 0 || end > len(s.plan) {
		end = len(s.plan)
	}
	batch := s.plan[s.pos:end]
	s.pos = end
	return batch
}

// remaining reports how many targets have not yet been dispatched.
func (s *session) remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.plan) - s.pos
}

func (s *session) cancelled() bool {
	return s.ctx.Err() != nil
}

// end releases the session's context and runs fn exactly once, however many
// paths (supersede, failure, completion, teardown) race to finish it.
func (s *session) end(fn func()) {
	s.endOnce.Do(func() {
		s.cancel()
		if fn != nil {
			fn()
		}
	})
}
