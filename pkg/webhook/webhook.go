// Package webhook delivers vault events to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
)

// EventType is the public name of a vault event on the wire.
type EventType string

const (
	EventDeployed            EventType = "vault.deployed"
	EventDeposited           EventType = "vault.deposited"
	EventDepositsToggled     EventType = "vault.deposits_toggled"
	EventWithdrawalInitiated EventType = "vault.withdrawal_initiated"
	EventWithdrawn           EventType = "vault.withdrawn"
	EventEmergencyWithdrawal EventType = "vault.emergency_withdrawal"

	// EventAll matches every event in a hook's filter.
	EventAll EventType = "*"
)

// SignatureHeader carries the HMAC-SHA256 of the request body.
const SignatureHeader = "X-Timelock-Signature"

// TypeOf maps a vault event type to its webhook name.
func TypeOf(t model.EventType) EventType {
	return EventType("vault." + string(t))
}

// Event is the payload posted to webhooks.
type Event struct {
	Event      EventType `json:"event"`
	ID         string    `json:"id"`
	Timestamp  string    `json:"timestamp"`
	Vault      string    `json:"vault"`
	Actor      string    `json:"actor,omitempty"`
	Amount     string    `json:"amount,omitempty"`
	Enabled    *bool     `json:"enabled,omitempty"`
	UnlockTime string    `json:"unlock_time,omitempty"`
}

// FromModel converts a vault event. Amounts travel as decimal strings so
// receivers never round them through float64.
func FromModel(ev model.Event) Event {
	out := Event{
		Event:     TypeOf(ev.Type),
		ID:        ev.ID,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339),
		Vault:     ev.Vault.Hex(),
		Enabled:   ev.Enabled,
	}
	if ev.Actor != (common.Address{}) {
		out.Actor = ev.Actor.Hex()
	}
	if ev.Amount > 0 {
		out.Amount = strconv.FormatUint(uint64(ev.Amount), 10)
	}
	if ev.UnlockTime != nil {
		out.UnlockTime = ev.UnlockTime.UTC().Format(time.RFC3339)
	}
	return out
}

// HookConfig represents a single webhook endpoint.
type HookConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Secret  string        `yaml:"secret,omitempty" json:"secret,omitempty"`
	Events  []EventType   `yaml:"events" json:"events"`
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Enabled bool          `yaml:"enabled" json:"enabled"`
}

// Config represents the webhook configuration.
type Config struct {
	Hooks          []HookConfig  `yaml:"hooks" json:"hooks"`
	Enabled        bool          `yaml:"enabled" json:"enabled"`
	MaxRetries     int           `yaml:"max_retries" json:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay" json:"retry_delay"`
	AsyncQueueSize int           `yaml:"async_queue_size" json:"async_queue_size"`
}

// DefaultConfig returns the default webhook configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		MaxRetries:     3,
		RetryDelay:     5 * time.Second,
		AsyncQueueSize: 100,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets where delivery failures are reported.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithSigningKey signs requests to hooks that have no secret of their own.
func WithSigningKey(key []byte) Option {
	return func(c *Client) { c.signingKey = key }
}

// Client sends vault events to the configured hooks.
type Client struct {
	config     *Config
	http       *http.Client
	log        *logging.Logger
	signingKey []byte
	queue      chan *job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	once       sync.Once
	mu         sync.RWMutex
	closed     bool
}

type job struct {
	event Event
	hook  HookConfig
}

// NewClient creates a webhook client and starts its background worker when
// the configuration is enabled.
func NewClient(cfg *Config, opts ...Option) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	size := cfg.AsyncQueueSize
	if size <= 0 {
		size = DefaultConfig().AsyncQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		config: cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		log:    logging.Global(),
		queue:  make(chan *job, size),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, o := range opts {
		o(c)
	}

	if cfg.Enabled {
		c.once.Do(func() {
			c.wg.Add(1)
			go c.worker()
		})
	}
	return c
}

func (c *Client) worker() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			for {
				select {
				case j := <-c.queue:
					c.send(j)
				default:
					return
				}
			}
		case j := <-c.queue:
			c.send(j)
		}
	}
}

// Handle queues ev for every matching hook. It never blocks the vault: a full
// queue drops the delivery and logs it.
func (c *Client) Handle(_ context.Context, ev model.Event) error {
	return c.Send(FromModel(ev), true)
}

// Send delivers event to all matching hooks, in the background when async
// is set. A synchronous send returns the last delivery error.
func (c *Client) Send(event Event, async bool) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.config.Enabled || c.closed {
		return nil
	}

	var hooks []HookConfig
	for _, hook := range c.config.Hooks {
		if hook.Enabled && matchesEvent(hook, event.Event) {
			hooks = append(hooks, hook)
		}
	}
	if len(hooks) == 0 {
		return nil
	}

	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	if async {
		for _, hook := range hooks {
			select {
			case c.queue <- &job{event: event, hook: hook}:
			default:
				c.log.Warn("webhook queue full, dropping event", map[string]any{
					"event": string(event.Event),
					"url":   hook.URL,
				})
			}
		}
		return nil
	}

	var lastErr error
	for _, hook := range hooks {
		if err := c.sendSync(&job{event: event, hook: hook}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (c *Client) send(j *job) {
	if err := c.sendSync(j); err != nil {
		c.log.ErrorErr("webhook delivery failed", err, map[string]any{
			"event": string(j.event.Event),
			"url":   j.hook.URL,
		})
	}
}

func (c *Client) sendSync(j *job) error {
	payload, err := json.Marshal(j.event)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		if lastErr = c.post(j, payload); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (c *Client) post(j *job, payload []byte) error {
	ctx := context.Background()
	if j.hook.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.hook.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.hook.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Timelock-Webhook/1.0")
	req.Header.Set("X-Timelock-Event", string(j.event.Event))
	req.Header.Set("X-Timelock-Delivery", j.event.ID)

	if key := c.keyFor(j.hook); len(key) > 0 {
		req.Header.Set(SignatureHeader, Sign(payload, key))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(body))
}

func (c *Client) keyFor(hook HookConfig) []byte {
	if hook.Secret != "" {
		return []byte(hook.Secret)
	}
	return c.signingKey
}

// Sign returns the signature header value for payload.
func Sign(payload, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches payload under key.
func Verify(payload, key []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, key)), []byte(signature))
}

func matchesEvent(hook HookConfig, event EventType) bool {
	for _, e := range hook.Events {
		if e == event || e == EventAll {
			return true
		}
	}
	return false
}

// Close stops accepting events, delivers what is queued and waits for the
// worker to finish.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}
