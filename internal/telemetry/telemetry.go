// Package telemetry publishes controller status to an MQTT broker and
// accepts text commands on a companion topic.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/san-kum/ptcbox/internal/tuning"
)

var ErrTimeout = errors.New("telemetry: broker did not answer in time")

const tokenTimeout = 5 * time.Second

// Config enables publishing when Broker is set. Commands are read from
// Topic+"/cmd" and replies go to Topic+"/reply".
type Config struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
	Retain   bool   `yaml:"retain"`
}

func (c Config) Enabled() bool { return c.Broker != "" }

func (c Config) CommandTopic() string { return c.Topic + "/cmd" }
func (c Config) ReplyTopic() string   { return c.Topic + "/reply" }

// Client is the subset of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

type StatusSource interface {
	Status() tuning.Status
}

type Commander interface {
	Exec(ctx context.Context, line string) (string, error)
}

// Connect dials the broker with auto-reconnect enabled.
func Connect(cfg Config, lg *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			lg.Warn("mqtt connection lost", "err", err)
		}).
		SetOnConnectHandler(func(mqtt.Client) {
			lg.Info("mqtt connected", "broker", cfg.Broker)
		})
	c := mqtt.NewClient(opts)
	if err := wait(c.Connect()); err != nil {
		return nil, fmt.Errorf("telemetry: connect %s: %w", cfg.Broker, err)
	}
	return c, nil
}

func wait(t mqtt.Token) error {
	if !t.WaitTimeout(tokenTimeout) {
		return ErrTimeout
	}
	return t.Error()
}

type Publisher struct {
	client Client
	cfg    Config
	src    StatusSource
	cmd    Commander
	lg     *slog.Logger

	mu      sync.Mutex
	running bool // commands are accepted only while Run is active
	wg      sync.WaitGroup
}

type Option func(*Publisher)

func WithLogger(lg *slog.Logger) Option { return func(p *Publisher) { p.lg = lg } }

// WithCommands subscribes to the command topic while Run is active.
func WithCommands(c Commander) Option { return func(p *Publisher) { p.cmd = c } }

func NewPublisher(client Client, cfg Config, src StatusSource, opts ...Option) *Publisher {
	p := &Publisher{client: client, cfg: cfg, src: src}
	for _, opt := range opts {
		opt(p)
	}
	if p.lg == nil {
		p.lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Publish sends one status record.
func (p *Publisher) Publish() error {
	payload, err := json.Marshal(p.src.Status())
	if err != nil {
		return err
	}
	return wait(p.client.Publish(p.cfg.Topic, p.cfg.QoS, p.cfg.Retain, payload))
}

// Run publishes every period until ctx is done. Publish failures are logged
// and do not stop the loop.
func (p *Publisher) Run(ctx context.Context, every time.Duration) error {
	if p.cmd != nil {
		p.setRunning(true)
		if err := wait(p.client.Subscribe(p.cfg.CommandTopic(), p.cfg.QoS, p.handler(ctx))); err != nil {
			p.setRunning(false)
			return fmt.Errorf("telemetry: subscribe: %w", err)
		}
		defer p.stopCommands()
	}

	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if err := p.Publish(); err != nil {
				p.lg.Warn("status publish failed", "err", err)
			}
		}
	}
}

func (p *Publisher) setRunning(v bool) {
	p.mu.Lock()
	p.running = v
	p.mu.Unlock()
}

// stopCommands refuses further commands, unsubscribes and waits for the
// ones already running.
func (p *Publisher) stopCommands() {
	p.setRunning(false)
	if err := wait(p.client.Unsubscribe(p.cfg.CommandTopic())); err != nil {
		p.lg.Warn("mqtt unsubscribe failed", "err", err)
	}
	p.wg.Wait()
}

// handler runs each command on its own goroutine so a long evaluation does
// not stall the client's message router.
func (p *Publisher) handler(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		line := string(msg.Payload())
		p.mu.Lock()
		if !p.running {
			p.mu.Unlock()
			p.lg.Debug("mqtt command dropped", "line", line)
			return
		}
		p.wg.Add(1)
		p.mu.Unlock()
		go func() {
			defer p.wg.Done()
			reply, err := p.cmd.Exec(ctx, line)
			if err != nil {
				reply = "ERROR:" + err.Error()
			}
			p.lg.Debug("mqtt command", "line", line, "reply", reply)
			if err := wait(p.client.Publish(p.cfg.ReplyTopic(), p.cfg.QoS, false, reply)); err != nil {
				p.lg.Warn("reply publish failed", "err", err)
			}
		}()
	}
}
