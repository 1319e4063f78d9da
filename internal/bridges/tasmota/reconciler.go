package tasmota

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/nerrad567/gray-logic-tasmota/internal/device"
)

// Defaults for a newly seen device.
const (
	defaultDeviceName  = "Tasmota"
	defaultDeviceModel = "1"
)

// Stage is the discovery handshake position of a device topic.
type Stage int

// Handshake stages, in order.
const (
	StageUnprobed Stage = iota
	StageAwaitingCapabilityReport
	StageAwaitingDetailReport
	StageComplete
)

func (s Stage) String() string {
	switch s {
	case StageUnprobed:
		return "unprobed"
	case StageAwaitingCapabilityReport:
		return "awaiting-capability-report"
	case StageAwaitingDetailReport:
		return "awaiting-detail-report"
	case StageComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Outcome is one action decided by Apply. The concrete types are Probe,
// StateChange and Announcement.
type Outcome interface {
	outcome()
}

// Probe asks the device for a status report.
type Probe struct {
	Topic string
	Code  StatusCode
}

// StateChange is a new value for an existing feature.
type StateChange struct {
	FeatureExternalID string  `json:"device_feature_external_id"`
	Value             float64 `json:"state"`
}

// Announcement is a device that completed discovery.
type Announcement struct {
	Device *device.Device `json:"device"`

	// IsNew is false when the registry already holds the device.
	IsNew bool `json:"is_new"`
}

func (Probe) outcome()        {}
func (StateChange) outcome()  {}
func (Announcement) outcome() {}

// Result is the ordered outcome list of one Apply call. An empty list means
// the message had no effect.
type Result struct {
	Stage    Stage
	Outcomes []Outcome
}

// RegistryGate reports whether a device is already known to the platform.
type RegistryGate interface {
	ExistsByExternalID(ctx context.Context, externalID string) bool
}

type candidate struct {
	device *device.Device
	stage  Stage
}

// Reconciler owns the in-progress and confirmed device stores. A topic is
// in at most one of them; promotion moves it under the same lock.
//
// Thread Safety: All methods are safe for concurrent use. Callers must
// serialise Apply per topic to keep handshake order.
type Reconciler struct {
	serviceID string
	gate      RegistryGate

	mu        sync.Mutex
	pending   map[string]*candidate
	confirmed map[string]*device.Device
}

// NewReconciler creates a reconciler for one service connection. gate may be
// nil, in which case every promoted device is reported as new.
func NewReconciler(serviceID string, gate RegistryGate) *Reconciler {
	return &Reconciler{
		serviceID: serviceID,
		gate:      gate,
		pending:   make(map[string]*candidate),
		confirmed: make(map[string]*device.Device),
	}
}

// Apply merges a decoded report into the topic's record and returns what
// to do next. The registry gate is consulted after the stores are updated
// and unlocked.
func (r *Reconciler) Apply(ctx context.Context, topic string, rep Report) Result {
	r.mu.Lock()
	res, promoted := r.applyLocked(topic, rep)
	r.mu.Unlock()

	if promoted != nil {
		isNew := true
		if r.gate != nil {
			isNew = !r.gate.ExistsByExternalID(ctx, promoted.ExternalID)
		}
		res.Outcomes = append(res.Outcomes, Announcement{Device: promoted, IsNew: isNew})
	}
	return res
}

func (r *Reconciler) applyLocked(topic string, rep Report) (Result, *device.Device) {
	if d, ok := r.confirmed[topic]; ok {
		return Result{Stage: StageComplete, Outcomes: mergeValues(d, topic, rep.Values, false)}, nil
	}

	c, ok := r.pending[topic]
	if !ok {
		if !rep.Kind.IsHandshake() {
			// Live traffic from a device that was running before us.
			if rep.Kind == KindLWT && !rep.Online {
				return Result{Stage: StageUnprobed}, nil
			}
			return Result{Stage: StageUnprobed, Outcomes: []Outcome{Probe{Topic: topic, Code: StatusGeneral}}}, nil
		}
		c = &candidate{device: r.newCandidate(topic), stage: StageUnprobed}
		r.pending[topic] = c
	}

	var out []Outcome
	switch {
	case rep.Kind == KindStatus && c.stage == StageUnprobed:
		applyMetadata(c.device, rep)
		c.stage = StageAwaitingCapabilityReport
		out = append(out, Probe{Topic: topic, Code: StatusCapabilities})

	case rep.Kind == KindCapabilityReport && c.stage == StageAwaitingCapabilityReport:
		c.stage = StageAwaitingDetailReport
		out = append(out, Probe{Topic: topic, Code: StatusDetails})
		out = append(out, mergeValues(c.device, topic, rep.Values, true)...)

	case rep.Kind == KindDetailReport:
		// Completes from any stage; some firmware skips STATUS11.
		out = mergeValues(c.device, topic, rep.Values, false)
		c.stage = StageComplete
		delete(r.pending, topic)
		r.confirmed[topic] = c.device
		return Result{Stage: StageComplete, Outcomes: out}, c.device.DeepCopy()

	default:
		if rep.Kind == KindStatus {
			applyMetadata(c.device, rep)
		}
		out = mergeValues(c.device, topic, rep.Values, false)
	}
	return Result{Stage: c.stage, Outcomes: out}, nil
}

func (r *Reconciler) newCandidate(topic string) *device.Device {
	extID := DeviceExternalID(topic)
	return &device.Device{
		ServiceID:  r.serviceID,
		Name:       defaultDeviceName,
		Model:      defaultDeviceModel,
		ExternalID: extID,
		Selector:   device.GenerateSelector(extID),
		ShouldPoll: false,
		Features:   []device.Feature{},
	}
}

func applyMetadata(d *device.Device, rep Report) {
	if name := strings.TrimSpace(rep.Name); name != "" {
		d.Name = name
	}
	if rep.Model != "" {
		d.Model = rep.Model
	}
}

// mergeValues updates existing features in place and appends new ones.
// Updates always yield a StateChange; new features only when emitNew is set.
func mergeValues(d *device.Device, topic string, values []Value, emitNew bool) []Outcome {
	var out []Outcome
	for _, v := range values {
		extID := FeatureExternalID(topic, v.Capability)
		if f, ok := d.Feature(extID); ok {
			f.LastValue = v.Value
			out = append(out, StateChange{FeatureExternalID: extID, Value: v.Value})
			continue
		}

		c, err := LookupCapability(v.Capability)
		if err != nil || len(d.Features) >= device.MaxFeatures {
			continue
		}
		d.Features = append(d.Features, newFeature(topic, c, v.Value))
		if emitNew {
			out = append(out, StateChange{FeatureExternalID: extID, Value: v.Value})
		}
	}
	return out
}

// Candidate returns a copy of an in-progress device and its stage.
func (r *Reconciler) Candidate(topic string) (*device.Device, Stage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.pending[topic]
	if !ok {
		return nil, StageUnprobed, false
	}
	return c.device.DeepCopy(), c.stage, true
}

// Confirmed returns a copy of a device that completed discovery.
func (r *Reconciler) Confirmed(topic string) (*device.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.confirmed[topic]
	if !ok {
		return nil, false
	}
	return d.DeepCopy(), true
}

// ConfirmedDevices returns copies of all confirmed devices ordered by
// external id.
func (r *Reconciler) ConfirmedDevices() []device.Device {
	r.mu.Lock()
	out := make([]device.Device, 0, len(r.confirmed))
	for _, d := range r.confirmed {
		out = append(out, *d.DeepCopy())
	}
	r.mu.Unlock()

	slices.SortFunc(out, func(a, b device.Device) int {
		return strings.Compare(a.ExternalID, b.ExternalID)
	})
	return out
}

// Stage returns the handshake stage of a topic. The second result is false
// for a topic that has never been seen.
func (r *Reconciler) Stage(topic string) (Stage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.confirmed[topic]; ok {
		return StageComplete, true
	}
	if c, ok := r.pending[topic]; ok {
		return c.stage, true
	}
	return StageUnprobed, false
}

// Counts returns the sizes of the in-progress and confirmed stores.
func (r *Reconciler) Counts() (pending, confirmed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending), len(r.confirmed)
}
