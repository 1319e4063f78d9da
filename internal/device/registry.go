package device

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry adds an in-memory cache over a Repository.
//
// The cache is keyed by device external id, with a secondary index from
// feature external id to its device, and is loaded by RefreshCache at
// startup. After that it is authoritative for reads; writes go to the
// repository first and update the cache only on success.
//
// All public methods are thread-safe.
type Registry struct {
	repo Repository

	mu        sync.RWMutex
	devices   map[string]*Device // by device external id
	byFeature map[string]string  // feature external id -> device external id

	logger Logger
	now    func() time.Time
}

// NewRegistry creates a device registry over repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:      repo,
		devices:   make(map[string]*Device),
		byFeature: make(map[string]string),
		logger:    noopLogger{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices = make(map[string]*Device, len(devices))
	r.byFeature = make(map[string]string)
	for i := range devices {
		r.cacheLocked(devices[i].DeepCopy())
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

func (r *Registry) cacheLocked(d *Device) {
	r.devices[d.ExternalID] = d
	for _, f := range d.Features {
		r.byFeature[f.ExternalID] = d.ExternalID
	}
}

func (r *Registry) uncacheLocked(d *Device) {
	delete(r.devices, d.ExternalID)
	for _, f := range d.Features {
		delete(r.byFeature, f.ExternalID)
	}
}

// ExistsByExternalID reports whether a device with the given external id is
// registered. Repository errors are logged and reported as absent.
func (r *Registry) ExistsByExternalID(ctx context.Context, externalID string) bool {
	_, err := r.GetByExternalID(ctx, externalID)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrDeviceNotFound):
		return false
	default:
		r.logger.Warn("registry lookup failed", "external_id", externalID, "error", err)
		return false
	}
}

// GetByExternalID returns a copy of the device with the given external id.
// A cache miss falls through to the repository so devices created by another
// writer are still found.
func (r *Registry) GetByExternalID(ctx context.Context, externalID string) (*Device, error) {
	r.mu.RLock()
	cached, ok := r.devices[externalID]
	r.mu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	d, err := r.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cacheLocked(d.DeepCopy())
	r.mu.Unlock()
	return d, nil
}

// GetDevice returns a copy of the device with the given registry id.
func (r *Registry) GetDevice(_ context.Context, id string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, d := range r.devices {
		if d.ID == id {
			return d.DeepCopy(), nil
		}
	}
	return nil, ErrDeviceNotFound
}

// ListDevices returns copies of all cached devices ordered by name.
func (r *Registry) ListDevices(_ context.Context) ([]Device, error) {
	r.mu.RLock()
	devices := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, *d.DeepCopy())
	}
	r.mu.RUnlock()

	slices.SortFunc(devices, func(a, b Device) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ExternalID, b.ExternalID)
	})
	return devices, nil
}

// CreateDevice validates and persists a new device, assigning its ID.
// The caller's struct is updated with the ID and timestamps.
func (r *Registry) CreateDevice(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = GenerateID()
	}
	if err := ValidateDevice(d); err != nil {
		return err
	}

	r.mu.RLock()
	_, exists := r.devices[d.ExternalID]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDeviceExists, d.ExternalID)
	}

	if err := r.repo.Create(ctx, d); err != nil {
		return err
	}

	r.mu.Lock()
	r.cacheLocked(d.DeepCopy())
	r.mu.Unlock()

	r.logger.Info("device created", "id", d.ID, "external_id", d.ExternalID, "features", len(d.Features))
	return nil
}

// DeleteDevice removes a device by registry id.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	for _, d := range r.devices {
		if d.ID == id {
			r.uncacheLocked(d)
			break
		}
	}
	r.mu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetFeatureState records a feature's latest value.
// Returns ErrFeatureNotFound if no registered device owns the feature.
func (r *Registry) SetFeatureState(ctx context.Context, featureExternalID string, value float64) error {
	r.mu.RLock()
	_, known := r.byFeature[featureExternalID]
	r.mu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrFeatureNotFound, featureExternalID)
	}

	now := r.now()
	if err := r.repo.UpdateFeatureValue(ctx, featureExternalID, value, now); err != nil {
		return err
	}

	// Replace the cached device with an updated copy so readers holding the
	// old pointer never see a partial write.
	r.mu.Lock()
	if owner, ok := r.byFeature[featureExternalID]; ok {
		if cached, ok := r.devices[owner]; ok {
			updated := cached.DeepCopy()
			if f, ok := updated.Feature(featureExternalID); ok {
				f.LastValue = value
				f.LastValueChanged = &now
			}
			updated.UpdatedAt = now
			r.devices[owner] = updated
		}
	}
	r.mu.Unlock()

	r.logger.Debug("feature state updated", "feature", featureExternalID, "value", value)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}
