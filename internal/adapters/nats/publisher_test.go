package natsadapter_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/toiletmap/internal/adapters/nats"
	"github.com/samirrijal/toiletmap/internal/core/domain"
)

func TestCycleSubject(t *testing.T) {
	tests := []struct {
		outcome domain.CycleOutcome
		want    string
	}{
		{domain.CycleApplied, "toiletmap.cycle.applied"},
		{domain.CycleFailed, "toiletmap.cycle.failed"},
		{domain.CycleStale, "toiletmap.cycle.stale"},
	}
	for _, tt := range tests {
		if got := natsadapter.CycleSubject(tt.outcome); got != tt.want {
			t.Errorf("outcome %s: expected %s, got %s", tt.outcome, tt.want, got)
		}
	}
}

// runServer starts an in-process NATS server with JetStream enabled.
func runServer(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      server.RANDOM_PORT,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	if err != nil {
		t.Fatalf("nats server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}
	t.Cleanup(ns.Shutdown)
	return ns
}

func newPublisher(t *testing.T) (*natsadapter.Publisher, *nats.Subscription) {
	t.Helper()
	ns := runServer(t)

	pub, err := natsadapter.NewPublisher(ns.ClientURL())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	t.Cleanup(pub.Close)

	sub, err := pub.Conn().SubscribeSync("toiletmap.>")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := pub.Conn().Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	return pub, sub
}

func TestPublisher_PublishCycle(t *testing.T) {
	pub, sub := newPublisher(t)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	event := &domain.CycleEvent{
		SessionID:  "s-1",
		Generation: 4,
		Outcome:    domain.CycleStale,
		Region:     domain.GeoRegion{West: 2.30, South: 48.85, East: 2.40, North: 48.90},
		Markers:    7,
		Time:       at,
	}
	if err := pub.PublishCycle(context.Background(), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next message: %v", err)
	}
	if msg.Subject != "toiletmap.cycle.stale" {
		t.Errorf("unexpected subject %s", msg.Subject)
	}
	var got domain.CycleEvent
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionID != "s-1" || got.Generation != 4 || got.Markers != 7 || got.Region != event.Region || !got.Time.Equal(at) {
		t.Errorf("unexpected payload %+v", got)
	}

	js, err := pub.Conn().JetStream()
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		info, err := js.StreamInfo("MAP_CYCLES")
		if err != nil {
			t.Fatalf("stream info: %v", err)
		}
		if info.State.Msgs == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected 1 stored cycle, got %d", info.State.Msgs)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPublisher_PublishSelection(t *testing.T) {
	pub, sub := newPublisher(t)

	detail := domain.ToiletDetail{
		ID: "Rue Exemple", Name: "Rue Exemple", Type: "public", Hours: "24/7",
		Accessible: true, Lat: 48.87, Lng: 2.35, District: "4",
	}
	if err := pub.PublishSelection(context.Background(), &domain.SelectionEvent{SessionID: "s-2", Toilet: detail, Time: time.Now()}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg, err := sub.NextMsg(2 * time.Second)
	if err != nil {
		t.Fatalf("next message: %v", err)
	}
	if msg.Subject != natsadapter.SubjectSelection {
		t.Errorf("unexpected subject %s", msg.Subject)
	}
	var got domain.SelectionEvent
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionID != "s-2" || got.Toilet != detail {
		t.Errorf("unexpected payload %+v", got)
	}
}
