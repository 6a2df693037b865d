package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/pipeline"
)

const publishTimeout = 5 * time.Second

// publisher is the subset of mqtt.Client the notifier uses.
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTNotifier publishes pipeline events as JSON to
// <prefix>/jobs/<event type>, and service presence to <prefix>/status.
type MQTTNotifier struct {
	conn      mqtt.Client
	pub       publisher
	prefix    string
	connected atomic.Bool
	log       zerolog.Logger
}

type Options struct {
	BrokerURL   string
	ClientID    string
	TopicPrefix string
	Username    string
	Password    string
	Log         zerolog.Logger
}

// Connect dials the broker and returns a notifier. The broker's last-will
// marks the service offline if the connection drops.
func Connect(opts Options) (*MQTTNotifier, error) {
	n := &MQTTNotifier{
		prefix: strings.TrimRight(opts.TopicPrefix, "/"),
		log:    opts.Log.With().Str("component", "mqtt").Logger(),
	}

	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.BrokerURL).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false).
		SetWill(n.statusTopic(), "offline", 1, true).
		SetOnConnectHandler(n.onConnect).
		SetConnectionLostHandler(n.onConnectionLost)

	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		clientOpts.SetPassword(opts.Password)
	}

	n.conn = mqtt.NewClient(clientOpts)
	n.pub = n.conn
	token := n.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, err
	}

	return n, nil
}

func (n *MQTTNotifier) onConnect(client mqtt.Client) {
	n.connected.Store(true)
	n.log.Info().Str("prefix", n.prefix).Msg("mqtt connected")
	client.Publish(n.statusTopic(), 1, true, "online")
}

func (n *MQTTNotifier) onConnectionLost(_ mqtt.Client, err error) {
	n.connected.Store(false)
	n.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// Notify publishes ev. Failures are logged and never returned; a broker
// outage must not fail a pipeline run.
func (n *MQTTNotifier) Notify(ctx context.Context, ev pipeline.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.Error().Err(err).Msg("failed to encode event")
		return
	}
	topic := EventTopic(n.prefix, ev.Type)
	token := n.pub.Publish(topic, 1, false, payload)
	if err := waitToken(ctx, token); err != nil {
		n.log.Warn().Err(err).Str("topic", topic).Str("job_id", ev.JobID).Msg("mqtt publish failed")
		return
	}
	n.log.Debug().Str("topic", topic).Str("job_id", ev.JobID).Msg("event published")
}

func (n *MQTTNotifier) IsConnected() bool {
	return n.connected.Load()
}

func (n *MQTTNotifier) Close() {
	n.log.Info().Msg("disconnecting mqtt client")
	if n.conn.IsConnected() {
		n.conn.Publish(n.statusTopic(), 1, true, "offline").WaitTimeout(time.Second)
	}
	n.conn.Disconnect(1000)
}

func (n *MQTTNotifier) statusTopic() string {
	return n.prefix + "/status"
}

// EventTopic returns the topic an event type is published on.
func EventTopic(prefix string, t pipeline.EventType) string {
	return strings.TrimRight(prefix, "/") + "/jobs/" + string(t)
}

var errPublishTimeout = errors.New("publish timed out")

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return errPublishTimeout
	}
}
