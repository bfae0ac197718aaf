package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bft-labs/ledship/internal/domain"
	"github.com/bft-labs/ledship/internal/ports"
)

// mockLogger implements ports.Logger for testing.
type mockLogger struct{}

func (mockLogger) Debug(msg string, fields ...ports.Field) {}
func (mockLogger) Info(msg string, fields ...ports.Field)  {}
func (mockLogger) Warn(msg string, fields ...ports.Field)  {}
func (mockLogger) Error(msg string, fields ...ports.Field) {}

// mockEmitter tracks state change events for testing.
type mockEmitter struct {
	mu     sync.Mutex
	events []stateChangeEvent
}

type stateChangeEvent struct {
	previous State
	current  State
	reason   string
}

func (m *mockEmitter) OnStateChange(previous, current State, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, stateChangeEvent{previous, current, reason})
}

func (m *mockEmitter) Events() []stateChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]stateChangeEvent{}, m.events...)
}

func TestNewLifecycle(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	if l.State() != StateStopped {
		t.Errorf("initial state = %v, want StateStopped", l.State())
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateStarting, "Starting"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{StateCrashed, "Crashed"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

// Each case is a bridge event and the transition it requests.
func TestLifecycle_BridgeTransitions(t *testing.T) {
	tests := []struct {
		event   string
		from    State
		to      State
		wantErr error
	}{
		{"Start on a fresh bridge", StateStopped, StateStarting, nil},
		{"pipeline goroutine begins", StateStarting, StateRunning, nil},
		{"Stop before the pipeline goroutine runs", StateStarting, StateStopping, nil},
		{"mqtt connect or plugin init fails", StateStarting, StateCrashed, nil},
		{"Stop while frames flow", StateRunning, StateStopping, nil},
		{"frame source fails", StateRunning, StateCrashed, nil},
		{"workers drain in time", StateStopping, StateStopped, nil},
		{"workers miss the shutdown timeout", StateStopping, StateCrashed, nil},
		{"Start after a crash", StateCrashed, StateStarting, nil},

		{"pipeline goroutine after Stop won", StateStopping, StateRunning, domain.ErrAlreadyRunning},
		{"pipeline goroutine on a stopped bridge", StateStopped, StateRunning, domain.ErrNotRunning},
		{"Stop on a stopped bridge", StateStopped, StateStopping, domain.ErrNotRunning},
		{"Stop on a crashed bridge", StateCrashed, StateStopping, domain.ErrNotRunning},
		{"second Start while starting", StateStarting, StateStarting, domain.ErrAlreadyRunning},
		{"second Start while running", StateRunning, StateStarting, domain.ErrAlreadyRunning},
		{"Start while stopping", StateStopping, StateStarting, domain.ErrAlreadyRunning},
		{"skip draining workers", StateRunning, StateStopped, domain.ErrAlreadyRunning},
		{"crashed bridge marked stopped", StateCrashed, StateStopped, domain.ErrNotRunning},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			emitter := &mockEmitter{}
			l := NewLifecycle(&mockLogger{}, emitter)
			l.state = tt.from

			err := l.TransitionTo(tt.to, tt.event)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("TransitionTo(%v -> %v) error = %v, want %v", tt.from, tt.to, err, tt.wantErr)
			}

			want := tt.to
			if tt.wantErr != nil {
				want = tt.from
			}
			if l.State() != want {
				t.Errorf("state = %v, want %v", l.State(), want)
			}
			if got := len(emitter.Events()); (got == 1) != (tt.wantErr == nil) {
				t.Errorf("emitted %d events", got)
			}
		})
	}
}

func TestLifecycle_RunThenStopEmitsReasons(t *testing.T) {
	emitter := &mockEmitter{}
	l := NewLifecycle(&mockLogger{}, emitter)

	steps := []struct {
		to     State
		reason string
	}{
		{StateStarting, "Start() called"},
		{StateRunning, "pipeline starting"},
		{StateStopping, "Stop() called"},
		{StateStopped, "graceful shutdown"},
	}
	for _, s := range steps {
		if err := l.TransitionTo(s.to, s.reason); err != nil {
			t.Fatalf("TransitionTo(%v) error = %v", s.to, err)
		}
	}

	events := emitter.Events()
	if len(events) != len(steps) {
		t.Fatalf("got %d events, want %d", len(events), len(steps))
	}
	prev := StateStopped
	for i, e := range events {
		if e.previous != prev || e.current != steps[i].to || e.reason != steps[i].reason {
			t.Errorf("event %d = %+v, want %v->%v %q", i, e, prev, steps[i].to, steps[i].reason)
		}
		prev = e.current
	}
}

func TestLifecycle_StopDuringStartup(t *testing.T) {
	emitter := &mockEmitter{}
	l := NewLifecycle(&mockLogger{}, emitter)

	_ = l.TransitionTo(StateStarting, "Start() called")
	_ = l.TransitionTo(StateStopping, "Stop() called")

	// The pipeline goroutine loses the race and must not mark the bridge running.
	if err := l.TransitionTo(StateRunning, "pipeline starting"); !errors.Is(err, domain.ErrAlreadyRunning) {
		t.Errorf("late pipeline start error = %v, want ErrAlreadyRunning", err)
	}
	if err := l.TransitionTo(StateStopped, "graceful shutdown"); err != nil {
		t.Fatalf("TransitionTo(Stopped) error = %v", err)
	}
	if got := len(emitter.Events()); got != 3 {
		t.Errorf("got %d events, want 3", got)
	}
	if !l.CanStart() {
		t.Error("CanStart() = false after stop, want true")
	}
}

func TestLifecycle_CanStartCanStop(t *testing.T) {
	tests := []struct {
		state    State
		canStart bool
		canStop  bool
	}{
		{StateStopped, true, false},
		{StateStarting, false, true},
		{StateRunning, false, true},
		{StateStopping, false, false},
		{StateCrashed, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			l := NewLifecycle(&mockLogger{}, nil)
			l.state = tt.state

			if got := l.CanStart(); got != tt.canStart {
				t.Errorf("CanStart() = %v, want %v", got, tt.canStart)
			}
			if got := l.CanStop(); got != tt.canStop {
				t.Errorf("CanStop() = %v, want %v", got, tt.canStop)
			}
		})
	}
}

func TestLifecycle_CancelStopsPipelineContext(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	l.Cancel()

	runCtx, cancel := context.WithCancel(context.Background())
	l.SetCancel(cancel)

	stopped := make(chan struct{})
	l.Go("pipeline", func() {
		<-runCtx.Done()
		close(stopped)
	})

	l.Cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("pipeline worker did not see the cancellation")
	}
	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() = %v, want nil", err)
	}
}

func TestLifecycle_WaitWithTimeout(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)
	if err := l.WaitWithTimeout(time.Millisecond); err != nil {
		t.Errorf("WaitWithTimeout() without workers = %v, want nil", err)
	}

	var started sync.WaitGroup
	started.Add(2)
	release := make(chan struct{})
	for _, name := range []string{"pipeline", "status"} {
		l.Go(name, func() {
			started.Done()
			<-release
		})
	}
	started.Wait()

	if err := l.WaitWithTimeout(10 * time.Millisecond); !errors.Is(err, domain.ErrShutdownTimeout) {
		t.Errorf("WaitWithTimeout() with a stuck worker = %v, want ErrShutdownTimeout", err)
	}

	close(release)
	if err := l.WaitWithTimeout(time.Second); err != nil {
		t.Errorf("WaitWithTimeout() = %v, want nil", err)
	}
}

func TestLifecycle_ConcurrentStartsOneWins(t *testing.T) {
	l := NewLifecycle(&mockLogger{}, nil)

	var wg sync.WaitGroup
	var won atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.State()
			_ = l.CanStop()
			if err := l.TransitionTo(StateStarting, "Start() called"); err == nil {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := won.Load(); got != 1 {
		t.Errorf("%d Start calls won, want 1", got)
	}
	if l.State() != StateStarting {
		t.Errorf("state = %v, want Starting", l.State())
	}
}
