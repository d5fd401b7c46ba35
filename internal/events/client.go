package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"pft/internal/log"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	dialTimeout    = 2 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Client publishes mutation events to a topic exchange. The connection is
// dialed lazily and re-dialed after connection errors. Repeated failures
// open a circuit breaker so a dead broker never slows down mutations.
type Client struct {
	url          string
	exchangeName string
	logger       *log.Logger
	dialTimeout  time.Duration

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName string, logger *log.Logger) *Client {
	return &Client{
		url:          url,
		exchangeName: exchangeName,
		logger:       log.OrNop(logger).WithComponent(log.ComponentEvents),
		dialTimeout:  dialTimeout,
	}
}

// Publish sends ev with routing key "<resource>.<op>".
func (c *Client) Publish(ctx context.Context, ev *MutationEvent) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish %s: %w", ev.RoutingKey(), ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := ev.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ch, err := c.ensureChannel(ctx)
	if err != nil {
		c.recordFailure()
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName,  // exchange
		ev.RoutingKey(), // routing key
		false,           // mandatory
		false,           // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    ev.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.reset()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()

	c.logger.DebugContext(ctx, "Published mutation event",
		log.FieldResource, ev.Resource,
		log.FieldOperation, ev.Op,
		log.FieldID, ev.ID.String(),
		"exchange", c.exchangeName,
	)
	return nil
}

// Consume binds a private queue to the exchange with bindingKey (e.g. "#" or
// "budgets.*") and hands each event to handler until ctx ends. Connection
// loss is retried with exponential backoff.
func (c *Client) Consume(ctx context.Context, bindingKey string, handler func(*MutationEvent) error) error {
	for attempt := 0; ; attempt++ {
		err := c.consumeOnce(ctx, bindingKey, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}
		c.reset()
		wait := exponentialBackoff(attempt)
		c.logger.WarnContext(ctx, "Event stream lost, reconnecting", log.FieldError, err, "backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consumeOnce(ctx context.Context, bindingKey string, handler func(*MutationEvent) error) error {
	ch, err := c.ensureChannel(ctx)
	if err != nil {
		return err
	}
	q, err := ch.QueueDeclare(
		"",    // name
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, bindingKey, c.exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	c.logger.InfoContext(ctx, "Consuming mutation events", "binding", bindingKey)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}
			msg, err := MutationEventFromJSON(delivery.Body)
			if err != nil {
				c.logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err)
				delivery.Nack(false, false)
				continue
			}
			if err := handler(msg); err != nil {
				c.logger.ErrorContext(ctx, "Failed to handle message", log.FieldError, err, log.FieldResource, msg.Resource)
				delivery.Nack(false, false)
				continue
			}
			delivery.Ack(false)
		}
	}
}

func (c *Client) ensureChannel(ctx context.Context) (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	if c.conn == nil || c.conn.IsClosed() {
		conn, err := c.dial(ctx)
		if err != nil {
			return nil, fmt.Errorf("dial AMQP: %w", err)
		}
		c.conn = conn
	}
	channel, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		c.exchangeName, // name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		channel.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	c.channel = channel
	return channel, nil
}

// dial bounds the TCP connect and AMQP handshake by dialTimeout or ctx's
// deadline, whichever comes first. A broker that never answers fails the
// publish instead of holding up the mutation.
func (c *Client) dial(ctx context.Context) (*amqp091.Connection, error) {
	timeout := c.dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	return amqp091.DialConfig(c.url, amqp091.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp091.DefaultDial(timeout),
	})
}

func (c *Client) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("Event publishing paused", "failures", n)
		}
	}
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "connection closed", "EOF", "broken pipe", "use of closed network connection", "dial AMQP"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
