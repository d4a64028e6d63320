// Package tapd wires a full capture pipeline from a single configuration:
// capture engine, built-in annotators, the embedded inspect API, and the
// optional MQTT forwarder. Applications that want finer control construct
// the pieces from the subpackages directly; Start is the one-call path.
package tapd

import (
	"fmt"
	"net/http"

	"github.com/gettapd/tapd/pkg/annotate"
	"github.com/gettapd/tapd/pkg/capture"
	"github.com/gettapd/tapd/pkg/config"
	"github.com/gettapd/tapd/pkg/forward"
	"github.com/gettapd/tapd/pkg/inspect"
	"github.com/gettapd/tapd/pkg/logging"
)

// Instance is a running capture pipeline. Create one with Start and shut
// it down with Close.
type Instance struct {
	capture   *capture.Capture
	inspect   *inspect.Server
	forwarder *forward.MQTTForwarder
}

// Start builds and starts a capture pipeline from cfg. A nil cfg uses the
// defaults throughout. The inspect API begins listening immediately; the
// MQTT forwarder is attached only when cfg.Forward.BrokerURL is set.
//
// The returned Instance does not instrument anything by itself: call
// Capture().Install on each *http.Client to observe, or use
// InstrumentDefaultClient.
func Start(cfg *config.Config) (*Instance, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	eng := capture.New(capture.Config{
		MaxEntries:    cfg.Capture.MaxEntries,
		MaxBodyBytes:  cfg.Capture.MaxBodyBytes,
		Enabled:       cfg.Capture.Enabled,
		RedactHeaders: cfg.Capture.RedactHeaders,
		IgnorePaths:   cfg.Capture.IgnorePaths,
		Annotators:    []capture.Annotator{annotate.GraphQL{}, annotate.JWT{}},
		Logger:        logging.Component(log, "capture"),
	})

	srv := inspect.NewServer(eng, inspect.Options{
		Port:   cfg.Inspect.Port,
		Host:   cfg.Inspect.Host,
		Logger: logging.Component(log, "inspect"),
	})
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("starting inspect API: %w", err)
	}

	inst := &Instance{capture: eng, inspect: srv}

	if cfg.Forward.BrokerURL != "" {
		fwd, err := forward.MQTT(eng, forward.MQTTOptions{
			BrokerURL: cfg.Forward.BrokerURL,
			Topic:     cfg.Forward.Topic,
			ClientID:  cfg.Forward.ClientID,
			Username:  cfg.Forward.Username,
			Password:  cfg.Forward.Password,
			Logger:    logging.Component(log, "forward"),
		})
		if err != nil {
			srv.Stop()
			return nil, fmt.Errorf("attaching MQTT forwarder: %w", err)
		}
		inst.forwarder = fwd
	}

	return inst, nil
}

// Capture returns the engine, for installing transports and querying logs.
func (i *Instance) Capture() *capture.Capture {
	return i.capture
}

// InspectAddr returns the address the inspect API is listening on.
func (i *Instance) InspectAddr() string {
	return i.inspect.Addr()
}

// InstrumentDefaultClient installs the capture transport on
// http.DefaultClient, and therefore on package-level helpers like
// http.Get.
func (i *Instance) InstrumentDefaultClient() {
	i.capture.Install(http.DefaultClient)
}

// Close detaches the forwarder and stops the inspect API. Captured
// records remain readable through Capture until the Instance is dropped.
func (i *Instance) Close() error {
	if i.forwarder != nil {
		i.forwarder.Detach()
		i.forwarder = nil
	}
	return i.inspect.Stop()
}
