package whatsapp

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the connection lifecycle position of the WhatsApp session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosing      State = "closing"
)

// ExitError is the terminal outcome of a supervised session. Code is the
// process exit status the caller should use.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("whatsapp session ended (exit %d): %s", e.Code, e.Reason)
}

// SupervisorConfig wires the supervisor to the session it drives.
type SupervisorConfig struct {
	MaxAttempts int
	Delay       time.Duration
	// Connect starts one connection attempt. A returned error counts as a
	// reconnectable close.
	Connect func() error
	// OnOpen runs once per successful open, after the counters reset.
	OnOpen func()
	// OnState observes every state transition.
	OnState func(State)
	// WipeSession removes persisted credentials after a logout.
	WipeSession func() error
	// Schedule runs fn after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, fn func())
	Log      *slog.Logger
}

// Supervisor owns reconnect policy: a bounded number of attempts with a
// fixed delay and at most one reconnect in flight.
type Supervisor struct {
	cfg SupervisorConfig
	log *slog.Logger

	mu           sync.Mutex
	state        State
	attempts     int
	reconnecting bool
	exited       bool

	done chan *ExitError
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 10 * time.Second
	}
	if cfg.Schedule == nil {
		cfg.Schedule = func(d time.Duration, fn func()) { time.AfterFunc(d, fn) }
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	return &Supervisor{
		cfg:   cfg,
		log:   cfg.Log.With("component", "whatsapp.supervisor"),
		state: StateDisconnected,
		done:  make(chan *ExitError, 1),
	}
}

// Done delivers the terminal outcome once the session can no longer continue.
func (s *Supervisor) Done() <-chan *ExitError {
	return s.done
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Start moves from Disconnected to Connecting and dials.
func (s *Supervisor) Start() {
	s.mu.Lock()
	s.setState(StateConnecting)
	s.mu.Unlock()

	s.log.Info("Connecting to WhatsApp...")
	s.dial()
}

// Opened records a successful connection.
func (s *Supervisor) Opened() {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.attempts = 0
	s.reconnecting = false
	s.setState(StateOpen)
	s.mu.Unlock()

	if s.cfg.OnOpen != nil {
		s.cfg.OnOpen()
	}
}

// Closed records a connection close. loggedOut marks credentials as revoked.
func (s *Supervisor) Closed(reason string, loggedOut bool) {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.setState(StateClosing)
	s.log.Warn("Connection closed", "reason", reason)

	if loggedOut {
		s.exitLocked()
		s.mu.Unlock()
		s.logout()
		return
	}

	switch {
	case !s.reconnecting && s.attempts < s.cfg.MaxAttempts:
		s.reconnecting = true
		s.attempts++
		attempt := s.attempts
		s.mu.Unlock()

		s.log.Warn(fmt.Sprintf("Reconnection attempt %d/%d in %s...", attempt, s.cfg.MaxAttempts, s.cfg.Delay))
		s.cfg.Schedule(s.cfg.Delay, s.reconnect)
	case s.attempts >= s.cfg.MaxAttempts:
		attempts := s.attempts

		s.exitLocked()
		s.mu.Unlock()

		s.log.Error(fmt.Sprintf("Too many reconnection attempts (%d). Please restart the bot manually.", attempts))
		s.done <- &ExitError{Code: 1, Reason: "reconnect attempts exhausted"}
	default:
		s.mu.Unlock()
	}
}

func (s *Supervisor) reconnect() {
	s.mu.Lock()
	if s.exited {
		s.mu.Unlock()
		return
	}
	s.reconnecting = false
	s.setState(StateConnecting)
	s.mu.Unlock()

	s.log.Info("Attempting to reconnect...")
	s.dial()
}

func (s *Supervisor) dial() {
	if s.cfg.Connect == nil {
		return
	}
	if err := s.cfg.Connect(); err != nil {
		s.Closed(err.Error(), false)
	}
}

func (s *Supervisor) logout() {
	s.log.Warn("Logged out from WhatsApp, cleaning up session...")
	if s.cfg.WipeSession != nil {
		if err := s.cfg.WipeSession(); err != nil {
			s.log.Error("Failed to clean up session", "error", err)
		} else {
			s.log.Info("Session files removed. Please restart the bot to re-authenticate.")
		}
	}

	s.done <- &ExitError{Code: 0, Reason: "logged out"}
}

// exitLocked marks the session terminal. Callers hold s.mu and send exactly
// one outcome on s.done afterwards.
func (s *Supervisor) exitLocked() {
	s.exited = true
	s.reconnecting = false
	s.setState(StateDisconnected)
}

// setState records a transition. Callers hold s.mu.
func (s *Supervisor) setState(next State) {
	if s.state == next {
		return
	}
	s.state = next
	if s.cfg.OnState != nil {
		s.cfg.OnState(next)
	}
}
