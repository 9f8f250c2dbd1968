package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/NeRF-or-Nothing/user-store/internal/log"
	"github.com/NeRF-or-Nothing/user-store/internal/models/user"
)

func TestEncodeUserEvent(t *testing.T) {
	u := &user.User{Name: "vatsal", Email: "v1@gmail.com", Age: 18}
	event := newUserEvent(EventUserCreated, u)

	msg, err := encodeUserEvent(event)
	if err != nil {
		t.Fatalf("encodeUserEvent: %v", err)
	}
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent {
		t.Errorf("unexpected message properties %+v", msg)
	}
	if msg.MessageId != event.ID || msg.Type != EventUserCreated {
		t.Errorf("message id/type = %s/%s, want %s/%s", msg.MessageId, msg.Type, event.ID, EventUserCreated)
	}

	var decoded struct {
		ID    string    `json:"id"`
		Type  string    `json:"type"`
		Email string    `json:"email"`
		User  user.User `json:"user"`
	}
	if err := json.Unmarshal(msg.Body, &decoded); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if decoded.ID != event.ID || decoded.Email != "v1@gmail.com" || decoded.User.Name != "vatsal" {
		t.Errorf("unexpected body %s", msg.Body)
	}
}

type fakeChannel struct {
	closed     bool
	declareErr error
	published  []amqp.Publishing
}

func (c *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if c.declareErr != nil {
		return amqp.Queue{}, c.declareErr
	}
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) PublishWithContext(_ context.Context, _, _ string, _, _ bool, msg amqp.Publishing) error {
	if c.closed {
		return amqp.ErrClosed
	}
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) IsClosed() bool { return c.closed }

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

type fakeConnection struct {
	closed     bool
	declareErr error
	channels   []*fakeChannel
}

func (c *fakeConnection) Channel() (brokerChannel, error) {
	if c.closed {
		return nil, amqp.ErrClosed
	}
	ch := &fakeChannel{declareErr: c.declareErr}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConnection) IsClosed() bool { return c.closed }

func (c *fakeConnection) Close() error {
	c.closed = true
	return nil
}

// fakeBroker hands out fakeConnections, or err when set.
type fakeBroker struct {
	err         error
	declareErr  error
	connections []*fakeConnection
}

func (b *fakeBroker) dial(string) (brokerConnection, error) {
	if b.err != nil {
		return nil, b.err
	}
	conn := &fakeConnection{declareErr: b.declareErr}
	b.connections = append(b.connections, conn)
	return conn, nil
}

func newTestAMPQService(t *testing.T, broker *fakeBroker) *AMPQService {
	t.Helper()
	s, err := newAMPQService(context.Background(), "amqp://test", "user-events", time.Millisecond, broker.dial, log.NewNopLogger())
	if err != nil {
		t.Fatalf("newAMPQService: %v", err)
	}
	s.retryInterval = time.Millisecond
	return s
}

func testEvent() UserEvent {
	return newUserEvent(EventUserCreated, &user.User{Name: "vatsal", Email: "v1@gmail.com", Age: 18})
}

func TestPublishUserEvent(t *testing.T) {
	broker := &fakeBroker{}
	s := newTestAMPQService(t, broker)

	if err := s.PublishUserEvent(context.Background(), testEvent()); err != nil {
		t.Fatalf("PublishUserEvent: %v", err)
	}
	if len(broker.connections) != 1 {
		t.Fatalf("dialed %d times, want 1", len(broker.connections))
	}
	ch := broker.connections[0].channels[0]
	if len(ch.published) != 1 || ch.published[0].Type != EventUserCreated {
		t.Fatalf("unexpected published messages %+v", ch.published)
	}
}

func TestPublishReopensClosedChannel(t *testing.T) {
	broker := &fakeBroker{}
	s := newTestAMPQService(t, broker)
	conn := broker.connections[0]
	conn.channels[0].Close()

	if err := s.PublishUserEvent(context.Background(), testEvent()); err != nil {
		t.Fatalf("PublishUserEvent: %v", err)
	}
	if len(broker.connections) != 1 {
		t.Fatalf("dialed %d times, want the live connection reused", len(broker.connections))
	}
	if conn.closed {
		t.Fatal("live connection was closed")
	}
	if len(conn.channels) != 2 || len(conn.channels[1].published) != 1 {
		t.Fatalf("event not published on a reopened channel: %+v", conn.channels)
	}
}

func TestPublishReconnectsDroppedConnection(t *testing.T) {
	broker := &fakeBroker{}
	s := newTestAMPQService(t, broker)
	broker.connections[0].Close()

	if err := s.PublishUserEvent(context.Background(), testEvent()); err != nil {
		t.Fatalf("PublishUserEvent: %v", err)
	}
	if len(broker.connections) != 2 || len(broker.connections[1].channels[0].published) != 1 {
		t.Fatalf("event not published on a new connection")
	}
}

func TestPublishFailedReconnect(t *testing.T) {
	broker := &fakeBroker{}
	s := newTestAMPQService(t, broker)
	broker.connections[0].Close()
	dialErr := errors.New("connection refused")
	broker.err = dialErr

	err := s.PublishUserEvent(context.Background(), testEvent())
	if !errors.Is(err, dialErr) {
		t.Fatalf("err = %v, want wrapped %v", err, dialErr)
	}
	if !strings.Contains(err.Error(), "failed to ensure connection") {
		t.Errorf("err = %q lacks context", err)
	}
}

func TestConnectClosesHalfBuiltConnection(t *testing.T) {
	declareErr := errors.New("access refused")
	broker := &fakeBroker{declareErr: declareErr}

	_, err := newAMPQService(context.Background(), "amqp://test", "user-events", time.Millisecond, broker.dial, log.NewNopLogger())
	if !errors.Is(err, declareErr) {
		t.Fatalf("err = %v, want wrapped %v", err, declareErr)
	}
	conn := broker.connections[0]
	if !conn.closed || !conn.channels[0].closed {
		t.Fatalf("connection closed=%v channel closed=%v, want both closed", conn.closed, conn.channels[0].closed)
	}
}

func TestConnectStopsWhenContextDone(t *testing.T) {
	broker := &fakeBroker{err: errors.New("connection refused")}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := newAMPQService(ctx, "amqp://test", "user-events", time.Minute, broker.dial, log.NewNopLogger())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("connect kept retrying after the context was done")
	}
}

func TestShutdownClosesConnection(t *testing.T) {
	broker := &fakeBroker{}
	s := newTestAMPQService(t, broker)

	s.Shutdown()

	conn := broker.connections[0]
	if !conn.closed || !conn.channels[0].closed {
		t.Fatalf("connection closed=%v channel closed=%v, want both closed", conn.closed, conn.channels[0].closed)
	}
}
