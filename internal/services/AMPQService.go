// This file contains the implementation of AMPQService. This service publishes user change events to an AMPQ 0.9.1
// message broker, so other systems can react to users being created, updated or deleted.
//
// The service declares a single durable queue and publishes persistent JSON messages to it through the default exchange.
// Connecting is retried until the connect timeout elapses. If the channel closes, the next publish reopens it; if the
// connection drops, the next publish reconnects.

package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/NeRF-or-Nothing/user-store/internal/log"
)

// DefaultConnectTimeout bounds the connection retries in NewAMPQService.
const DefaultConnectTimeout = 15 * time.Second

// brokerConnection is the part of *amqp.Connection the service uses.
type brokerConnection interface {
	Channel() (brokerChannel, error)
	IsClosed() bool
	Close() error
}

// brokerChannel is the part of *amqp.Channel the service uses.
type brokerChannel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (brokerChannel, error) {
	return c.Connection.Channel()
}

func dialAMQP(url string) (brokerConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

type AMPQService struct {
	url            string
	queueName      string
	connectTimeout time.Duration
	retryInterval  time.Duration
	dial           func(url string) (brokerConnection, error)
	connection     brokerConnection
	channel        brokerChannel
	logger         *log.Logger
	// guards connection and channel, which publish may replace on reconnect
	mu sync.Mutex
}

// NewAMPQService connects to the broker at url and declares queueName.
func NewAMPQService(url, queueName string, connectTimeout time.Duration, logger *log.Logger) (*AMPQService, error) {
	return newAMPQService(context.Background(), url, queueName, connectTimeout, dialAMQP, logger)
}

func newAMPQService(ctx context.Context, url, queueName string, connectTimeout time.Duration,
	dial func(string) (brokerConnection, error), logger *log.Logger) (*AMPQService, error) {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	service := &AMPQService{
		url:            url,
		queueName:      queueName,
		connectTimeout: connectTimeout,
		retryInterval:  time.Second,
		dial:           dial,
		logger:         logger,
	}

	if err := service.connect(ctx); err != nil {
		return nil, err
	}
	return service, nil
}

// connect dials the broker, retrying until the connect timeout elapses or ctx is done, then opens the
// event channel. A connection whose channel cannot be set up is closed before returning.
func (s *AMPQService) connect(ctx context.Context) error {
	deadline := time.Now().Add(s.connectTimeout)
	var conn brokerConnection
	var err error

	for {
		conn, err = s.dial(s.url)
		if err == nil || !time.Now().Before(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to connect to RabbitMQ: %w", ctx.Err())
		case <-time.After(s.retryInterval):
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	s.connection = conn
	if err := s.openChannel(); err != nil {
		conn.Close()
		s.connection = nil
		return err
	}

	s.logger.Infof("Connected to RabbitMQ, publishing user events to %s", s.queueName)
	return nil
}

// openChannel opens a channel on the current connection and declares the event queue on it.
func (s *AMPQService) openChannel() error {
	channel, err := s.connection.Channel()
	if err != nil {
		return fmt.Errorf("failed to open a channel: %w", err)
	}

	_, err = channel.QueueDeclare(s.queueName, true, false, false, false, nil)
	if err != nil {
		channel.Close()
		return fmt.Errorf("failed to declare queue %s: %w", s.queueName, err)
	}

	s.channel = channel
	return nil
}

// ensureConnection ensures that the AMPQ connection and channel are open. A closed channel on a live
// connection is reopened in place; a dropped connection is replaced.
func (s *AMPQService) ensureConnection(ctx context.Context) error {
	connected := s.connection != nil && !s.connection.IsClosed()
	if connected && s.channel != nil && !s.channel.IsClosed() {
		return nil
	}

	if connected {
		s.logger.Info("Reopening RabbitMQ channel...")
		return s.openChannel()
	}

	s.logger.Info("Reconnecting to RabbitMQ...")
	if s.connection != nil {
		s.connection.Close()
		s.connection = nil
	}
	s.channel = nil
	return s.connect(ctx)
}

// encodeUserEvent builds the message published for event.
func encodeUserEvent(event UserEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal user event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         event.Type,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}, nil
}

// PublishUserEvent publishes event to the event queue.
// Returns an error if the event could not be published.
func (s *AMPQService) PublishUserEvent(ctx context.Context, event UserEvent) error {
	msg, err := encodeUserEvent(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnection(ctx); err != nil {
		return fmt.Errorf("failed to ensure connection: %w", err)
	}

	err = s.channel.PublishWithContext(ctx, "", s.queueName, false, false, msg)
	if err != nil {
		return fmt.Errorf("failed to publish user event: %w", err)
	}

	s.logger.Debugf("Published %s event %s for %s", event.Type, event.ID, event.Email)
	return nil
}

// Shutdown closes the channel and connection
func (s *AMPQService) Shutdown() {
	s.logger.Info("Shutting down AMQP service...")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channel != nil {
		s.channel.Close()
	}
	if s.connection != nil {
		s.connection.Close()
	}
	s.logger.Info("AMQP service shut down")
}
