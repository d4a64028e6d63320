// Package forward pushes newly captured records to external sinks for
// remote inspection. MQTT is the only sink; each record is published as
// one JSON message.
package forward

import (
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/ohler55/ojg/oj"

	"github.com/gettapd/tapd/pkg/capture"
	"github.com/gettapd/tapd/pkg/logging"
	"github.com/gettapd/tapd/pkg/metrics"
)

// DefaultTopic is the publish topic when MQTTOptions.Topic is empty.
const DefaultTopic = "tapd/requests"

// publishAckTimeout bounds the wait for a broker acknowledgement at
// QoS > 0. The forwarder runs its own goroutine, so waiting here delays
// only subsequent publishes, never capture.
const publishAckTimeout = 5 * time.Second

// MQTTOptions configures an MQTT forwarder.
type MQTTOptions struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	BrokerURL string

	// Topic to publish records on (default "tapd/requests").
	Topic string

	// ClientID for the broker session (default derived from the topic).
	ClientID string

	// QoS for published messages (0, 1, or 2; default 0).
	QoS byte

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// Logger for forwarder diagnostics (default no-op).
	Logger *slog.Logger
}

// MQTTForwarder subscribes to a capture engine and publishes each new
// record to an MQTT topic. Publishing is fire-and-forget from the capture
// path's point of view: a slow or dead broker never blocks recording.
type MQTTForwarder struct {
	client      mqtt.Client
	topic       string
	qos         byte
	unsubscribe func()
	done        chan struct{}
	log         *slog.Logger
}

// MQTT connects to the broker and attaches a forwarder to the capture
// engine. Detach with the returned forwarder's Detach method.
func MQTT(cap *capture.Capture, opts MQTTOptions) (*MQTTForwarder, error) {
	if opts.BrokerURL == "" {
		return nil, fmt.Errorf("mqtt forward: broker URL is required")
	}
	if opts.Topic == "" {
		opts.Topic = DefaultTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = "tapd-forward"
	}
	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}

	clientOpts := mqtt.NewClientOptions()
	clientOpts.AddBroker(opts.BrokerURL)
	clientOpts.SetClientID(opts.ClientID)
	clientOpts.SetConnectTimeout(5 * time.Second)
	clientOpts.SetAutoReconnect(true)
	if opts.Username != "" {
		clientOpts.SetUsername(opts.Username)
		clientOpts.SetPassword(opts.Password)
	}

	client := mqtt.NewClient(clientOpts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt forward: connect to %s timed out", opts.BrokerURL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt forward: connect to %s: %w", opts.BrokerURL, err)
	}

	ch, unsubscribe := cap.SubscribeChan()
	f := &MQTTForwarder{
		client:      client,
		topic:       opts.Topic,
		qos:         opts.QoS,
		unsubscribe: unsubscribe,
		done:        make(chan struct{}),
		log:         log,
	}

	go func() {
		defer close(f.done)
		for rec := range ch {
			payload, err := oj.Marshal(rec)
			if err != nil {
				f.log.Warn("mqtt forward: marshal record", "record", rec.ID, "error", err)
				continue
			}
			token := f.client.Publish(f.topic, f.qos, false, payload)
			if f.qos > 0 {
				// QoS 0 stays fire-and-forget; acknowledged levels need
				// the broker round trip before the error is visible.
				token.WaitTimeout(publishAckTimeout)
			}
			if err := token.Error(); err != nil {
				metrics.CaptureErrors.WithLabel("forward").Inc()
				f.log.Warn("mqtt forward: publish", "record", rec.ID, "error", err)
			}
		}
	}()

	return f, nil
}

// Detach stops forwarding and disconnects from the broker. Safe to call
// once; records captured after Detach are not published.
func (f *MQTTForwarder) Detach() {
	f.unsubscribe()
	<-f.done
	f.client.Disconnect(250)
}
