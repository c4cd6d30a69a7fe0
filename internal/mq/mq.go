// Package mq publishes SLA alerts and assignment notices to an MQTT broker.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/yzh317179958/customer-service-sub000/internal/config"
)

// ErrNotConnected is returned when publishing without a live broker session.
var ErrNotConnected = errors.New("mqtt not connected")

const publishTimeout = 3 * time.Second

// Connect dials the broker. Reconnects are handled by the client.
func Connect(cfg config.MQTTConfig, logger *zap.Logger) (mqtt.Client, error) {
	if cfg.BrokerURL == "" {
		return nil, errors.New("MQTT broker URL is empty")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "cs-sla-engine"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second)

	if logger != nil {
		opts.OnConnectionLost = func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", zap.Error(err))
		}
		opts.OnConnect = func(_ mqtt.Client) {
			logger.Info("mqtt connected", zap.String("broker", cfg.BrokerURL), zap.String("client_id", cfg.ClientID))
		}
	}

	c := mqtt.NewClient(opts)
	tok := c.Connect()
	tok.Wait()
	if err := tok.Error(); err != nil {
		return nil, err
	}
	return c, nil
}

// Handler consumes one raw message.
type Handler func(ctx context.Context, topic string, payload []byte)

// Broker publishes and subscribes with QoS 1.
type Broker struct {
	client mqtt.Client
}

// NewBroker wraps a connected client.
func NewBroker(client mqtt.Client) *Broker {
	return &Broker{client: client}
}

// Publish encodes payload as JSON and waits for the broker acknowledgement.
func (p *Broker) Publish(ctx context.Context, topic string, payload any) error {
	if p == nil || p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tok := p.client.Publish(topic, 1, false, b)
	timeout := publishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if !tok.WaitTimeout(timeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	return tok.Error()
}

// Subscribe delivers every message on topic to handler. The handler runs on
// the client's callback goroutine with ctx.
func (p *Broker) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if p == nil || p.client == nil {
		return ErrNotConnected
	}
	tok := p.client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		payload := append([]byte(nil), msg.Payload()...)
		handler(ctx, msg.Topic(), payload)
	})
	if !tok.WaitTimeout(publishTimeout) {
		return fmt.Errorf("subscribe to %s: timed out", topic)
	}
	return tok.Error()
}

// Close disconnects from the broker.
func (p *Broker) Close() {
	if p != nil && p.client != nil {
		p.client.Disconnect(250)
	}
}
