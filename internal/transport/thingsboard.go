// Package transport is the outbound boundary: a ThingsBoard MQTT device
// client with connect/send/disconnect operations.
package transport

import (
	"encoding/json"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/Ryan-Atkinson87/trive-aquasense/internal/errors"
	"github.com/Ryan-Atkinson87/trive-aquasense/internal/logger"
)

const (
	ErrConnect = errors.ErrorCode("transport_connect_failed")
	ErrPublish = errors.ErrorCode("transport_publish_failed")
)

const (
	telemetryTopic  = "v1/devices/me/telemetry"
	attributesTopic = "v1/devices/me/attributes"

	connectTimeout   = 10 * time.Second
	publishTimeout   = 5 * time.Second
	disconnectMillis = 250
)

// Client publishes telemetry and attributes to a ThingsBoard instance. The
// device access token is the MQTT username, per the ThingsBoard device API.
type Client struct {
	client mqtt.Client
	server string
}

// NewClient prepares a client for the given server and access token. The
// server may be a bare host; tcp://host:1883 is assumed then.
func NewClient(server, token, clientID string) *Client {
	broker := server
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	if !strings.Contains(strings.TrimPrefix(broker, "tcp://"), ":") {
		broker += ":1883"
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetUsername(token).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	opts.OnConnect = func(mqtt.Client) {
		logger.Info().Str("server", broker).Msg("Connected to ThingsBoard")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("ThingsBoard connection lost")
	}

	return &Client{
		client: mqtt.NewClient(opts),
		server: broker,
	}
}

// Connect establishes the MQTT session.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.New().WithMessage(ErrConnect, "connect timed out: "+c.server)
	}
	if err := token.Error(); err != nil {
		return errors.New().Wrap(ErrConnect, err)
	}

	return nil
}

// SendTelemetry publishes one flat canonical telemetry mapping. Callers are
// expected to skip the call entirely when the mapping is empty.
func (c *Client) SendTelemetry(values map[string]any) error {
	return c.publish(telemetryTopic, values)
}

// SendAttributes publishes device attributes.
func (c *Client) SendAttributes(attributes map[string]any) error {
	return c.publish(attributesTopic, attributes)
}

// Disconnect closes the session. Safe to call when never connected.
func (c *Client) Disconnect() {
	if c.client.IsConnected() {
		c.client.Disconnect(disconnectMillis)
	}
}

func (c *Client) publish(topic string, payload map[string]any) error {
	errFactory := errors.New()

	body, err := json.Marshal(payload)
	if err != nil {
		return errFactory.Wrap(ErrPublish, err)
	}

	token := c.client.Publish(topic, 0, false, body)
	if !token.WaitTimeout(publishTimeout) {
		return errFactory.WithMessage(ErrPublish, "publish timed out: "+topic)
	}
	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublish, err)
	}

	return nil
}
