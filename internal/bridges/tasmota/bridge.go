package tasmota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/gray-logic-tasmota/internal/device"
	"github.com/nerrad567/gray-logic-tasmota/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tasmota/internal/infrastructure/mqtt"
)

// subscribeQoS is the QoS used for device topic subscriptions.
const subscribeQoS = 1

// MQTTClient is the transport the bridge needs. *mqtt.Client satisfies it.
type MQTTClient interface {
	// PublishCommand sends a non-retained command.
	PublishCommand(topic string, payload []byte) error

	// Subscribe registers a handler for a topic filter.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error

	// Unsubscribe removes a topic filter.
	Unsubscribe(topic string) error
}

// EventEmitter publishes discovery results to the rest of the platform.
// Calls are fire-and-forget; the bridge does not retry them.
type EventEmitter interface {
	// EmitStateChange reports a new value for a known feature.
	EmitStateChange(ctx context.Context, change StateChange)

	// EmitDeviceAnnounced reports a device that completed discovery.
	EmitDeviceAnnounced(ctx context.Context, announcement Announcement)
}

// Logger is the structured logger used by the bridge.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Options holds the dependencies of a bridge.
type Options struct {
	// Config is the tasmota section of the service configuration.
	Config config.TasmotaConfig

	// MQTT is the broker connection.
	MQTT MQTTClient

	// Registry is consulted when a device completes discovery.
	// If nil, every device is announced as new.
	Registry RegistryGate

	// Events receives state changes and announcements.
	Events EventEmitter

	// Logger is optional.
	Logger Logger
}

// Bridge connects Tasmota devices on MQTT to the discovery reconciler.
//
// Each device topic gets its own worker goroutine with a bounded queue, so
// messages for one device are processed in arrival order while different
// devices proceed in parallel. Outcomes of a message are executed in the
// order the reconciler returned them.
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg        config.TasmotaConfig
	mqtt       MQTTClient
	registry   RegistryGate
	events     EventEmitter
	reconciler *Reconciler
	commands   CommandEmitter

	workersMu sync.Mutex
	workers   map[string]chan Report

	subscribed []string
	started    atomic.Bool
	wg         sync.WaitGroup
	stopOnce   sync.Once
	ctx        context.Context
	ctxCancel  context.CancelFunc

	logger   Logger
	loggerMu sync.RWMutex

	handled    atomic.Uint64
	dropped    atomic.Uint64
	probesSent atomic.Uint64
	promotions atomic.Uint64
}

// NewBridge creates a bridge. Call Start to subscribe.
func NewBridge(opts Options) (*Bridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Events == nil {
		return nil, fmt.Errorf("event emitter is required")
	}
	if opts.Config.QueueSize < 1 {
		return nil, fmt.Errorf("queue size must be at least 1")
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &Bridge{
		cfg:        opts.Config,
		mqtt:       opts.MQTT,
		registry:   opts.Registry,
		events:     opts.Events,
		reconciler: NewReconciler(opts.Config.ServiceID, opts.Registry),
		commands:   NewCommandEmitter(opts.Config.CommandPrefix),
		workers:    make(map[string]chan Report),
		ctx:        ctx,
		ctxCancel:  cancel,
		logger:     noopLogger{},
	}
	if opts.Logger != nil {
		b.logger = opts.Logger
	}
	return b, nil
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()
}

func (b *Bridge) log() Logger {
	b.loggerMu.RLock()
	defer b.loggerMu.RUnlock()
	return b.logger
}

// Reconciler returns the bridge's reconciler.
func (b *Bridge) Reconciler() *Reconciler {
	return b.reconciler
}

// Start subscribes to the status and telemetry topics and, if configured,
// scans for devices.
func (b *Bridge) Start(ctx context.Context) error {
	if b.ctx.Err() != nil {
		return ErrNotRunning
	}

	for _, prefix := range []string{b.cfg.StatusPrefix, b.cfg.TelemetryPrefix} {
		filter := prefix + "/+/+"
		if err := b.mqtt.Subscribe(filter, subscribeQoS, b.HandleMessage); err != nil {
			return fmt.Errorf("subscribe to %s: %w", filter, err)
		}
		b.subscribed = append(b.subscribed, filter)
		b.log().Info("subscribed to device topics", "topic", filter)
	}
	b.started.Store(true)

	if b.cfg.ScanOnStart {
		if err := b.Scan(ctx); err != nil {
			b.log().Warn("initial scan failed", "error", err)
		}
	}

	b.log().Info("tasmota bridge started", "service_id", b.cfg.ServiceID)
	return nil
}

// Stop unsubscribes and waits for all workers to exit. Queued messages that
// have not started processing are discarded.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.started.Store(false)
		for _, filter := range b.subscribed {
			if err := b.mqtt.Unsubscribe(filter); err != nil {
				b.log().Warn("unsubscribe failed", "topic", filter, "error", err)
			}
		}

		// Under workersMu so no enqueue can start a worker once Wait begins.
		b.workersMu.Lock()
		b.ctxCancel()
		b.workersMu.Unlock()
		b.wg.Wait()

		b.log().Info("tasmota bridge stopped")
	})
}

// HandleMessage is the MQTT handler for device topics. Unparseable or
// undecodable messages are dropped; they never reach the reconciler.
func (b *Bridge) HandleMessage(topic string, payload []byte) error {
	addr, err := ParseTopic(topic)
	if err != nil {
		b.dropped.Add(1)
		if errors.Is(err, ErrUnknownKind) {
			b.log().Debug("ignoring message kind", "topic", topic)
		}
		return nil
	}
	if !b.acceptsPrefix(addr) {
		b.dropped.Add(1)
		b.log().Debug("ignoring message on unexpected prefix", "topic", topic)
		return nil
	}

	rep, err := Decode(addr.Kind, payload)
	if err != nil {
		b.dropped.Add(1)
		b.log().Debug("dropping undecodable message", "topic", topic, "error", err)
		return nil
	}
	if len(rep.Skipped) > 0 {
		b.log().Debug("skipped unknown capabilities", "topic", topic, "keys", rep.Skipped)
	}
	if addr.Kind == KindLWT {
		b.log().Info("device availability", "device_topic", addr.Topic, "online", rep.Online)
	}

	b.enqueue(addr.Topic, rep)
	return nil
}

// acceptsPrefix checks the kind against the prefix it is published under.
// RESULT is published under both.
func (b *Bridge) acceptsPrefix(addr Address) bool {
	switch {
	case addr.Kind == KindResult:
		return addr.Prefix == b.cfg.StatusPrefix || addr.Prefix == b.cfg.TelemetryPrefix
	case addr.Kind.IsTelemetry():
		return addr.Prefix == b.cfg.TelemetryPrefix
	default:
		return addr.Prefix == b.cfg.StatusPrefix
	}
}

// enqueue hands a report to the topic's worker, starting it on first use.
// A full queue drops the report; devices re-report on their own cadence.
func (b *Bridge) enqueue(topic string, rep Report) {
	if b.ctx.Err() != nil {
		b.dropped.Add(1)
		return
	}

	b.workersMu.Lock()
	if b.ctx.Err() != nil {
		b.workersMu.Unlock()
		b.dropped.Add(1)
		return
	}
	queue, ok := b.workers[topic]
	if !ok {
		queue = make(chan Report, b.cfg.QueueSize)
		b.workers[topic] = queue
		b.wg.Add(1)
		go b.runWorker(topic, queue)
	}
	b.workersMu.Unlock()

	select {
	case queue <- rep:
	default:
		b.dropped.Add(1)
		b.log().Warn("device queue full, dropping message", "device_topic", topic, "kind", rep.Kind)
	}
}

func (b *Bridge) runWorker(topic string, queue <-chan Report) {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case rep := <-queue:
			b.process(topic, rep)
		}
	}
}

func (b *Bridge) process(topic string, rep Report) {
	res := b.reconciler.Apply(b.ctx, topic, rep)
	b.handled.Add(1)

	for _, o := range res.Outcomes {
		switch o := o.(type) {
		case Probe:
			b.sendProbe(o)
		case StateChange:
			b.events.EmitStateChange(b.ctx, o)
		case Announcement:
			b.promotions.Add(1)
			b.log().Debug("device promoted",
				"device_topic", topic,
				"external_id", o.Device.ExternalID,
				"features", len(o.Device.Features),
				"new", o.IsNew)
			b.events.EmitDeviceAnnounced(b.ctx, o)
		}
	}
}

func (b *Bridge) sendProbe(p Probe) {
	cmd := b.commands.Probe(p.Topic, p.Code)
	if err := b.publish(cmd); err != nil {
		b.log().Warn("probe failed", "topic", cmd.Topic, "payload", cmd.Payload, "error", err)
		return
	}
	b.probesSent.Add(1)
	b.log().Debug("probe sent", "topic", cmd.Topic, "payload", cmd.Payload)
}

func (b *Bridge) publish(cmd Command) error {
	return b.mqtt.PublishCommand(cmd.Topic, []byte(cmd.Payload))
}

// Scan asks every device on the configured group topics for a generic
// status, restarting discovery for devices not yet known.
func (b *Bridge) Scan(ctx context.Context) error {
	if !b.started.Load() {
		return ErrNotRunning
	}
	var errs []error
	for _, group := range b.cfg.ScanTopics {
		if err := ctx.Err(); err != nil {
			return err
		}
		cmd := b.commands.Scan(group)
		if err := b.publish(cmd); err != nil {
			errs = append(errs, fmt.Errorf("scan %s: %w", group, err))
			continue
		}
		b.log().Info("scan sent", "topic", cmd.Topic)
	}
	return errors.Join(errs...)
}

// SetValue switches an output of a discovered device. Only writable binary
// switch features accept values, and only 0 or 1.
func (b *Bridge) SetValue(ctx context.Context, topic, capability string, value float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !b.started.Load() {
		return ErrNotRunning
	}

	d, ok := b.reconciler.Confirmed(topic)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, topic)
	}
	f, ok := d.Feature(FeatureExternalID(topic, capability))
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrUnknownFeature, capability, topic)
	}
	if f.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, f.ExternalID)
	}
	if f.Category != device.CategorySwitch || (value != 0 && value != 1) {
		return fmt.Errorf("%w: %v for %s", ErrInvalidValue, value, f.ExternalID)
	}

	cmd := b.commands.SetPower(topic, capability, value == 1)
	if err := b.publish(cmd); err != nil {
		return fmt.Errorf("set %s: %w", f.ExternalID, err)
	}
	b.log().Debug("value sent", "topic", cmd.Topic, "payload", cmd.Payload)
	return nil
}

// DiscoveredDevice is a confirmed device annotated with registry presence.
type DiscoveredDevice struct {
	device.Device

	// Topic is the MQTT device topic.
	Topic string `json:"topic"`

	// Existing is true when the registry already holds the device.
	Existing bool `json:"existing"`
}

// DiscoveredDevices lists every device that completed discovery.
func (b *Bridge) DiscoveredDevices(ctx context.Context) []DiscoveredDevice {
	devices := b.reconciler.ConfirmedDevices()
	out := make([]DiscoveredDevice, 0, len(devices))
	for _, d := range devices {
		existing := false
		if b.registry != nil {
			existing = b.registry.ExistsByExternalID(ctx, d.ExternalID)
		}
		out = append(out, DiscoveredDevice{
			Device:   d,
			Topic:    TopicFromExternalID(d.ExternalID),
			Existing: existing,
		})
	}
	return out
}

// Discovered returns a copy of a confirmed device by topic.
func (b *Bridge) Discovered(topic string) (*device.Device, bool) {
	return b.reconciler.Confirmed(topic)
}

// Metrics contains bridge counters for the API.
type Metrics struct {
	Running          bool   `json:"running"`
	MessagesHandled  uint64 `json:"messages_handled"`
	MessagesDropped  uint64 `json:"messages_dropped"`
	ProbesSent       uint64 `json:"probes_sent"`
	Promotions       uint64 `json:"promotions"`
	PendingDevices   int    `json:"pending_devices"`
	ConfirmedDevices int    `json:"confirmed_devices"`
	Workers          int    `json:"workers"`
}

// GetMetrics returns current bridge counters.
func (b *Bridge) GetMetrics() Metrics {
	pending, confirmed := b.reconciler.Counts()

	b.workersMu.Lock()
	workers := len(b.workers)
	b.workersMu.Unlock()

	return Metrics{
		Running:          b.started.Load(),
		MessagesHandled:  b.handled.Load(),
		MessagesDropped:  b.dropped.Load(),
		ProbesSent:       b.probesSent.Load(),
		Promotions:       b.promotions.Load(),
		PendingDevices:   pending,
		ConfirmedDevices: confirmed,
		Workers:          workers,
	}
}
