package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/config"
)

const (
	defaultHealthHost = "0.0.0.0"
	defaultHealthPort = 18790

	eventBuffer      = 64
	eventWriteWait   = 10 * time.Second
	connectionOpen   = "open"
	shutdownDeadline = 5 * time.Second
)

// connectionReporter is implemented by adapters with a live connection state.
type connectionReporter interface {
	ConnectionState() string
}

// Service runs the enabled channel adapters with one shared handler and
// optionally serves their status over HTTP.
type Service struct {
	cfg      *config.Config
	log      *slog.Logger
	handler  channel.Handler
	events   *bus.MessageBus
	channels []channel.Adapter
	upgrader websocket.Upgrader

	mu            sync.RWMutex
	startedAt     time.Time
	channelStates map[string]channelState
	counters      map[bus.EventType]int64
}

type channelState struct {
	Running    bool   `json:"running"`
	Connection string `json:"connection,omitempty"`
	Error      string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	Bot           string                  `json:"bot"`
	Version       string                  `json:"version"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Channels      map[string]channelState `json:"channels"`
	Commands      map[string]int64        `json:"commands"`
	EventsDropped int64                   `json:"events_dropped"`
}

func NewService(cfg *config.Config, adapters []channel.Adapter, handler channel.Handler, events *bus.MessageBus, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if len(adapters) == 0 {
		return nil, errors.New("at least one channel adapter is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(adapters))
	for _, adapter := range adapters {
		channelStates[adapter.Name()] = channelState{}
	}

	return &Service{
		cfg:      cfg,
		log:      log.With("component", "gateway.service"),
		handler:  handler,
		events:   events,
		channels: adapters,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		channelStates: channelStates,
		counters:      make(map[bus.EventType]int64),
	}, nil
}

// Run serves until ctx ends or the first adapter stops. An adapter error is
// returned wrapped, so terminal outcomes stay visible to errors.As.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	// Subscribe before any adapter runs so startup events are counted.
	if s.events != nil {
		events, unsubscribe := s.events.SubscribeEvents(ctx, eventBuffer)
		go s.countEvents(events, unsubscribe)
	}

	serverErrors := make(chan error, 1)
	if s.cfg.Gateway.Enabled {
		go s.runStatusServer(ctx, serverErrors)
	}

	stopped := make(chan error, len(s.channels))
	for _, adapter := range s.channels {
		s.setChannelState(adapter.Name(), channelState{Running: true})

		go func() {
			err := adapter.Run(ctx, s.handler)
			s.setChannelState(adapter.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				stopped <- fmt.Errorf("run %s channel: %w", adapter.Name(), err)
				return
			}
			s.log.Info("Channel stopped", "channel", adapter.Name())
			stopped <- nil
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-stopped:
		return err
	}
}

// countEvents tallies command outcomes for /status.
func (s *Service) countEvents(events <-chan bus.Event, unsubscribe func()) {
	defer unsubscribe()

	for event := range events {
		s.mu.Lock()
		s.counters[event.Type]++
		s.mu.Unlock()
	}
}

// Handler returns the status endpoints.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

func (s *Service) runStatusServer(ctx context.Context, errCh chan<- error) {
	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHealthHost
	}

	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultHealthPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway status server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start status server: %w", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.isReady() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := "ready"
	if !s.isReady() {
		status = "not_ready"
	}
	s.respondStatus(w, http.StatusOK, status)
}

// handleEvents streams bus events to a websocket client until either side
// goes away.
func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Failed to upgrade event stream", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, unsubscribe := s.events.SubscribeEvents(ctx, eventBuffer)
	defer unsubscribe()

	s.log.Debug("Event stream opened", "remote", r.RemoteAddr)
	for event := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
		if err := conn.WriteJSON(event); err != nil {
			s.log.Debug("Event stream closed", "remote", r.RemoteAddr, "error", err)
			return
		}
	}
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		state.Connection = s.connectionOf(name)
		channels[name] = state
	}

	return statusResponse{
		Status:        status,
		Bot:           s.cfg.Bot.Name,
		Version:       s.cfg.Bot.Version,
		UptimeSeconds: uptime,
		Channels:      channels,
		Commands: map[string]int64{
			"dispatched": s.counters[bus.EventCommandDispatched],
			"completed":  s.counters[bus.EventCommandCompleted],
			"failed":     s.counters[bus.EventCommandFailed],
			"not_found":  s.counters[bus.EventCommandNotFound],
			"implicit":   s.counters[bus.EventImplicitTrigger],
		},
		EventsDropped: s.events.Dropped(),
	}
}

func (s *Service) connectionOf(name string) string {
	for _, adapter := range s.channels {
		if adapter.Name() != name {
			continue
		}
		if reporter, ok := adapter.(connectionReporter); ok {
			return reporter.ConnectionState()
		}
	}
	return ""
}

// isReady reports whether some channel runs and every channel with a live
// connection has it open.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	anyRunning := false
	for _, state := range s.channelStates {
		if state.Running {
			anyRunning = true
			break
		}
	}
	if !anyRunning {
		return false
	}

	for _, adapter := range s.channels {
		if reporter, ok := adapter.(connectionReporter); ok && reporter.ConnectionState() != connectionOpen {
			return false
		}
	}

	return true
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
