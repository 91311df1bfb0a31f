package gateway

import (
	"testing"

	"konoha/pkg/bus"
	"konoha/pkg/channel"
	"konoha/pkg/config"
)

type stateAdapter struct {
	scriptedAdapter
	state string
}

func (a *stateAdapter) ConnectionState() string {
	return a.state
}

func TestIsReady(t *testing.T) {
	t.Parallel()

	whatsapp := &stateAdapter{scriptedAdapter: scriptedAdapter{name: "whatsapp"}, state: "connecting"}
	svc := &Service{
		cfg:           config.Default(),
		channels:      []channel.Adapter{whatsapp},
		channelStates: map[string]channelState{"whatsapp": {}},
	}
	if svc.isReady() {
		t.Fatal("expected not ready without a running channel")
	}

	svc.channelStates["whatsapp"] = channelState{Running: true}
	if svc.isReady() {
		t.Fatal("expected not ready while the connection is not open")
	}

	whatsapp.state = "open"
	if !svc.isReady() {
		t.Fatal("expected ready with running channel and open connection")
	}
}

func TestCurrentStatusReportsConnections(t *testing.T) {
	t.Parallel()

	whatsapp := &stateAdapter{scriptedAdapter: scriptedAdapter{name: "whatsapp"}, state: "open"}
	console := &scriptedAdapter{name: "console"}
	svc := &Service{
		cfg:           config.Default(),
		channels:      []channel.Adapter{whatsapp, console},
		channelStates: map[string]channelState{"whatsapp": {Running: true}, "console": {Running: true}},
		counters:      map[bus.EventType]int64{},
	}

	status := svc.currentStatus("ready")
	if got := status.Channels["whatsapp"].Connection; got != "open" {
		t.Fatalf("whatsapp connection = %q, want open", got)
	}
	if got := status.Channels["console"].Connection; got != "" {
		t.Fatalf("console connection = %q, want empty", got)
	}
	if status.Bot != "Konoha Bot" {
		t.Fatalf("bot = %q", status.Bot)
	}
}
