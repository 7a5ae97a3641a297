// Package mqttbroker is the eclipse/paho.mqtt.golang-backed implementation
// of broker.Broker, grounded on the teacher's mqtt_server package (replacing
// its polling stub with a real client) and on the ctx-driven Start/shutdown
// shape used throughout the teacher's *_server packages.
package mqttbroker

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/nvidia-isaac/mission-dispatch/broker"
	"github.com/nvidia-isaac/mission-dispatch/shared"
)

// Transport selects the wire transport paho dials, matching the
// --mqtt_transport CLI flag in SPEC_FULL.md's CLI SURFACE section.
type Transport string

const (
	TransportTCP       Transport = "tcp"
	TransportWebsocket Transport = "websocket"
	TransportTLS       Transport = "tls"
)

// Config configures the MQTT connection.
type Config struct {
	Host      string
	Port      int
	Transport Transport
	// WSPath is appended to the broker URL when Transport is
	// TransportWebsocket, matching the --mqtt_ws_path CLI flag.
	WSPath    string
	ClientID  string
	Username  string
	Password  string

	// QoS used for both Publish and Subscribe; VDA5050 recommends at least 1.
	QoS byte

	ConnectTimeout time.Duration
}

// DefaultConfig returns a Config with VDA5050's recommended QoS 1 and a
// 10s connect timeout.
func DefaultConfig() Config {
	return Config{
		Transport:      TransportTCP,
		QoS:            1,
		ConnectTimeout: 10 * time.Second,
	}
}

func (c Config) brokerURL() string {
	scheme := "tcp"
	switch c.Transport {
	case TransportWebsocket:
		scheme = "ws"
	case TransportTLS:
		scheme = "ssl"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
	if c.Transport == TransportWebsocket && c.WSPath != "" {
		url += c.WSPath
	}
	return url
}

// Broker is the paho-backed broker.Broker adapter.
type Broker struct {
	client mqtt.Client
	qos    byte

	mu        sync.Mutex
	listeners map[string]chan broker.Message
}

// Connect dials the MQTT broker described by cfg and blocks until the
// connection completes or cfg.ConnectTimeout elapses.
func Connect(cfg Config) (*Broker, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.brokerURL()).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetConnectRetry(true)

	if cfg.Transport == TransportTLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	b := &Broker{qos: cfg.QoS, listeners: make(map[string]chan broker.Message)}
	opts.SetDefaultPublishHandler(b.dispatch)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, shared.NewTransientError(nil, "timed out connecting to mqtt broker %s", cfg.brokerURL())
	}
	if err := token.Error(); err != nil {
		return nil, shared.NewTransientError(err, "connecting to mqtt broker %s", cfg.brokerURL())
	}

	b.client = client
	shared.Infof("connected to mqtt broker %s", cfg.brokerURL())
	return b, nil
}

// dispatch is paho's default publish handler, called only for messages that
// no subscription callback handled (each Subscribe installs its own callback,
// and paho does the filter matching for those). It delivers the message to
// the listener channel registered under a filter string exactly equal to the
// incoming topic, and drops it otherwise.
func (b *Broker) dispatch(_ mqtt.Client, msg mqtt.Message) {
	b.mu.Lock()
	ch, ok := b.listeners[msg.Topic()]
	b.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- broker.Message{Topic: msg.Topic(), Payload: msg.Payload()}:
	default:
		shared.Warnf("mqtt listener for topic %q is backed up, dropping message", msg.Topic())
	}
}

func (b *Broker) Publish(ctx context.Context, topic string, payload []byte) error {
	token := b.client.Publish(topic, b.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "publishing to %s", topic)
	}
	return nil
}

func (b *Broker) Subscribe(ctx context.Context, topicFilter string) (<-chan broker.Message, error) {
	ch := make(chan broker.Message, 256)

	b.mu.Lock()
	b.listeners[topicFilter] = ch
	b.mu.Unlock()

	token := b.client.Subscribe(topicFilter, b.qos, func(c mqtt.Client, m mqtt.Message) {
		select {
		case ch <- broker.Message{Topic: m.Topic(), Payload: m.Payload()}:
		default:
			shared.Warnf("mqtt listener for filter %q is backed up, dropping message", topicFilter)
		}
	})
	if !token.WaitTimeout(10 * time.Second) {
		b.mu.Lock()
		delete(b.listeners, topicFilter)
		b.mu.Unlock()
		return nil, shared.NewTransientError(nil, "timed out subscribing to %s", topicFilter)
	}
	if err := token.Error(); err != nil {
		b.mu.Lock()
		delete(b.listeners, topicFilter)
		b.mu.Unlock()
		return nil, errors.Wrapf(err, "subscribing to %s", topicFilter)
	}

	go func() {
		<-ctx.Done()
		b.client.Unsubscribe(topicFilter)
		b.mu.Lock()
		delete(b.listeners, topicFilter)
		b.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (b *Broker) Close() error {
	b.client.Disconnect(250)
	return nil
}
