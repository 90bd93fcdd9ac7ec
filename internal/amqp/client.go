package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
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
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
	maxReconnects  = 5
)

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
	errUndecodable = errors.New("undecodable message")
)

// Client publishes and consumes JSON messages on one direct exchange. Each
// queue is bound with its own name as routing key.
type Client struct {
	url           string
	exchangeName  string
	reminderQueue string
	exportQueue   string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(url, exchangeName, reminderQueue, exportQueue string) (*Client, error) {
	c := &Client{
		url:           url,
		exchangeName:  exchangeName,
		reminderQueue: reminderQueue,
		exportQueue:   exportQueue,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.mu.Lock()
	c.conn, c.channel = conn, channel
	c.mu.Unlock()
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.reminderQueue, c.exportQueue} {
		if queue == "" {
			continue
		}
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}
	return nil
}

// reconnect redials with exponential backoff until it succeeds, ctx ends or
// the attempts run out.
func (c *Client) reconnect(ctx context.Context) error {
	c.closeConn()
	var err error
	for attempt := 0; attempt < maxReconnects; attempt++ {
		if err = c.connect(); err == nil {
			slog.InfoContext(ctx, "AMQP reconnected", "attempt", attempt+1)
			return nil
		}
		wait := exponentialBackoff(attempt)
		slog.WarnContext(ctx, "AMQP reconnect failed", "attempt", attempt+1, "retry_in", wait, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("reconnect AMQP: %w", err)
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
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel/connection is not open"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
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
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()
	if atomic.AddInt64(&c.failureCount, 1) >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// publish sends msg as persistent JSON to the queue named by routingKey.
func (c *Client) publish(ctx context.Context, routingKey string, msg any) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		c.recordFailure()
		return fmt.Errorf("publish to %s: %w", routingKey, amqp091.ErrClosed)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(pubCtx, c.exchangeName, routingKey, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			if rerr := c.reconnect(ctx); rerr != nil {
				slog.ErrorContext(ctx, "AMQP reconnect gave up", "error", rerr)
			}
		}
		return fmt.Errorf("publish message: %w", err)
	}
	c.recordSuccess()
	return nil
}

func (c *Client) PublishBillReminder(ctx context.Context, msg *BillReminderMessage) error {
	if err := c.publish(ctx, c.reminderQueue, msg); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published bill reminder",
		"bill_id", msg.BillID,
		"deadline", msg.DeadlineDate.String(),
		"queue", c.reminderQueue)
	return nil
}

func (c *Client) PublishSummaryExport(ctx context.Context, msg *SummaryExportMessage) error {
	if err := c.publish(ctx, c.exportQueue, msg); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published summary export",
		"start", msg.StartDate.String(),
		"end", msg.EndDate.String(),
		"queue", c.exportQueue)
	return nil
}

// consume delivers raw message bodies from queue to handle until ctx ends.
// Bodies that fail decoding are dropped; handler errors requeue the message.
func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, []byte) error) error {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	if ch == nil {
		return fmt.Errorf("consume %s: %w", queue, amqp091.ErrClosed)
	}

	deliveries, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", queue, err)
	}

	slog.InfoContext(ctx, "Started consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consume %s: delivery channel closed", queue)
			}
			err := handle(ctx, d.Body)
			switch {
			case err == nil:
				d.Ack(false)
			case errors.Is(err, errUndecodable):
				slog.ErrorContext(ctx, "Dropping undecodable message", "queue", queue, "error", err)
				d.Nack(false, false)
			default:
				slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
				d.Nack(false, true)
			}
		}
	}
}

func (c *Client) ConsumeBillReminders(ctx context.Context, handler func(context.Context, *BillReminderMessage) error) error {
	return c.consume(ctx, c.reminderQueue, func(ctx context.Context, body []byte) error {
		msg, err := BillReminderMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errUndecodable, err)
		}
		return handler(ctx, msg)
	})
}

func (c *Client) ConsumeSummaryExports(ctx context.Context, handler func(context.Context, *SummaryExportMessage) error) error {
	return c.consume(ctx, c.exportQueue, func(ctx context.Context, body []byte) error {
		msg, err := SummaryExportMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errUndecodable, err)
		}
		return handler(ctx, msg)
	})
}

// IsHealthy reports whether the connection is open and the breaker closed.
func (c *Client) IsHealthy() bool {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	return conn != nil && !conn.IsClosed() && !c.isCircuitOpen()
}

func (c *Client) closeConn() {
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
	c.closeConn()
	return nil
}
