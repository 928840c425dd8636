package events_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/asheth-dev/backend-daan/internal/events"
)

type recordingStore struct {
	inserted []events.Event
	err      error
}

func (s *recordingStore) InsertDomainEvent(_ context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	if s.err != nil {
		return events.Event{}, s.err
	}
	ev := events.Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  time.Now().UTC(),
	}
	s.inserted = append(s.inserted, ev)
	return ev, nil
}

type recordingNotifier struct {
	seen []events.Event
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, ev events.Event) error {
	n.seen = append(n.seen, ev)
	return n.err
}

func TestEmitPersistsAndNotifies(t *testing.T) {
	store := &recordingStore{}
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	aggregate := uuid.New()
	ev, err := bus.Emit(context.Background(), events.TopicPaymentCompleted, aggregate, map[string]string{"gateway_payment_id": "pay_1"})
	if err != nil {
		t.Fatalf("emit: %v", err)
	}
	if ev.Topic != events.TopicPaymentCompleted || ev.AggregateID != aggregate {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("persisted %d events, want 1", len(store.inserted))
	}
	if len(notifier.seen) != 1 {
		t.Fatalf("notified %d events, want 1", len(notifier.seen))
	}
}

func TestEmitStoreFailureSkipsNotifiers(t *testing.T) {
	store := &recordingStore{err: errors.New("insert failed")}
	notifier := &recordingNotifier{}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	_, err := bus.Emit(context.Background(), events.TopicPaymentCreated, uuid.New(), nil)
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	if len(notifier.seen) != 0 {
		t.Fatal("notifier ran despite persistence failure")
	}
}

func TestEmitRejectsInvalidPayload(t *testing.T) {
	bus := &events.Bus{Store: &recordingStore{}}
	_, err := bus.Emit(context.Background(), events.TopicPaymentCreated, uuid.New(), []byte("{not json"))
	if err == nil {
		t.Fatal("expected error for invalid json payload")
	}
}

func TestEmitNotifierErrorStillReturnsEvent(t *testing.T) {
	store := &recordingStore{}
	notifier := &recordingNotifier{err: errors.New("downstream down")}
	bus := &events.Bus{Store: store, Notifiers: []events.Notifier{notifier}}

	ev, err := bus.Emit(context.Background(), events.TopicOrderPaid, uuid.New(), nil)
	if err == nil {
		t.Fatal("expected joined notifier error")
	}
	if ev.ID == uuid.Nil {
		t.Fatal("event not returned alongside notifier error")
	}
	if len(store.inserted) != 1 {
		t.Fatalf("persisted %d events, want 1", len(store.inserted))
	}
}
