// Package notify publishes gesture notifications to Redis so that other
// processes (games, overlays, dashboards) can react to them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ayusman/bhangra/internal/gesture"
	"github.com/ayusman/bhangra/internal/logger"
)

// Config holds the Redis connection and naming settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// Prefix namespaces the channel and keys, e.g. "bhangra".
	Prefix string `json:"prefix"`
	// LastTTL is how long LastKey outlives the notification it holds.
	// Zero keeps it until the next one.
	LastTTL time.Duration `json:"lastTtl"`
}

// DefaultConfig returns a disabled publisher pointed at a local server.
func DefaultConfig() Config {
	return Config{
		Addr:    "localhost:6379",
		Prefix:  "bhangra",
		LastTTL: DefaultLastTTL,
	}
}

// Channel is the pub/sub channel notifications are published on.
func (c Config) Channel() string { return c.Prefix + ":gestures" }

// LastKey holds the most recent notification.
func (c Config) LastKey() string { return c.Prefix + ":last" }

// DefaultLastTTL matches the time a toast stays on screen.
const DefaultLastTTL = 3000 * time.Millisecond

const (
	queueSize      = 64
	publishTimeout = 2 * time.Second
)

// client is the subset of the Redis API the publisher uses.
type client interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// Message is the JSON payload published for each notification.
type Message struct {
	Type      string    `json:"type"`
	Gesture   string    `json:"gesture"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Encode returns the payload for n.
func Encode(n gesture.Notification) ([]byte, error) {
	return json.Marshal(Message{
		Type:      "gesture",
		Gesture:   n.Gesture.String(),
		Source:    n.Source.String(),
		Timestamp: n.Timestamp,
	})
}

// Publisher sends notifications to Redis from a background goroutine.
// A disabled Publisher accepts and discards notifications.
type Publisher struct {
	cfg    Config
	client client

	queue chan gesture.Notification
	done  chan struct{}
	once  sync.Once

	mu        sync.Mutex
	closed    bool
	published int
	dropped   int
}

// NewPublisher creates a Publisher for cfg. When cfg is enabled it connects
// and fails if the server does not answer a ping.
func NewPublisher(cfg Config) (*Publisher, error) {
	if !cfg.Enabled {
		logger.Info("redis publisher disabled by configuration")
		return &Publisher{cfg: cfg}, nil
	}

	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Infof("publishing gestures to redis %s channel %s", cfg.Addr, cfg.Channel())
	return newPublisher(cfg, c), nil
}

func newPublisher(cfg Config, c client) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		client: c,
		queue:  make(chan gesture.Notification, queueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

// Enabled reports whether notifications reach Redis.
func (p *Publisher) Enabled() bool {
	return p.client != nil
}

// Notify queues n for publishing. When the queue is full, or the
// publisher is closed, n is dropped.
func (p *Publisher) Notify(n gesture.Notification) {
	if p.client == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.dropped++
		return
	}

	select {
	case p.queue <- n:
	default:
		p.dropped++
		logger.Warnf("redis publish queue full, dropping %s", n.Gesture)
	}
}

func (p *Publisher) loop() {
	defer close(p.done)

	for n := range p.queue {
		if err := p.publish(n); err != nil {
			logger.Errorf("redis publish: %v", err)
			continue
		}
		p.mu.Lock()
		p.published++
		p.mu.Unlock()
	}
}

func (p *Publisher) publish(n gesture.Notification) error {
	payload, err := Encode(n)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.cfg.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.cfg.Channel(), err)
	}
	if err := p.client.Set(ctx, p.cfg.LastKey(), payload, p.cfg.LastTTL).Err(); err != nil {
		return fmt.Errorf("set %s: %w", p.cfg.LastKey(), err)
	}
	return nil
}

// Stats returns how many notifications were published and dropped.
func (p *Publisher) Stats() (published, dropped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.published, p.dropped
}

// Close flushes queued notifications and closes the connection.
func (p *Publisher) Close() error {
	if p.client == nil {
		return nil
	}

	var err error
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()

		<-p.done
		err = p.client.Close()
	})
	return err
}
