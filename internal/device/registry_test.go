package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository is an in-memory Repository for registry tests.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device // by external id
	listErr error
	getErr  error
	saveErr error
	gets    int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{devices: make(map[string]*Device)}
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (m *MockRepository) GetByExternalID(_ context.Context, externalID string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.devices[externalID]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (m *MockRepository) Create(_ context.Context, d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.devices[d.ExternalID]; ok {
		return ErrDeviceExists
	}
	m.devices[d.ExternalID] = d.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ext, d := range m.devices {
		if d.ID == id {
			delete(m.devices, ext)
			return nil
		}
	}
	return ErrDeviceNotFound
}

func (m *MockRepository) UpdateFeatureValue(_ context.Context, featureExternalID string, value float64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	for _, d := range m.devices {
		if f, ok := d.Feature(featureExternalID); ok {
			f.LastValue = value
			f.LastValueChanged = &at
			return nil
		}
	}
	return ErrFeatureNotFound
}

// addDevice seeds the mock directly, bypassing the registry.
func (m *MockRepository) addDevice(d *Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = GenerateID()
	}
	m.devices[d.ExternalID] = d.DeepCopy()
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.addDevice(testDevice("plug-1"))
	repo.addDevice(testDevice("plug-2"))

	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if registry.GetDeviceCount() != 2 {
		t.Errorf("GetDeviceCount() = %d, want 2", registry.GetDeviceCount())
	}

	repo.listErr = errors.New("disk gone")
	if err := registry.RefreshCache(ctx); err == nil {
		t.Error("RefreshCache() expected error from repository")
	}
	if registry.GetDeviceCount() != 2 {
		t.Error("failed refresh must keep the previous cache")
	}
}

func TestRegistry_ExistsByExternalID(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.addDevice(testDevice("cached"))
	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	// Written by another process after the refresh.
	repo.addDevice(testDevice("late"))

	tests := []struct {
		name       string
		externalID string
		want       bool
	}{
		{"cached device", "tasmota:cached", true},
		{"device only in repository", "tasmota:late", true},
		{"unknown device", "tasmota:unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := registry.ExistsByExternalID(ctx, tt.externalID); got != tt.want {
				t.Errorf("ExistsByExternalID(%q) = %v, want %v", tt.externalID, got, tt.want)
			}
		})
	}

	t.Run("repository error reads as absent", func(t *testing.T) {
		repo.getErr = errors.New("locked")
		defer func() { repo.getErr = nil }()
		if registry.ExistsByExternalID(ctx, "tasmota:other") {
			t.Error("ExistsByExternalID() = true on repository error")
		}
	})
}

func TestRegistry_GetByExternalID_ReturnsCopy(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()
	repo.addDevice(testDevice("plug"))
	registry.RefreshCache(ctx) //nolint:errcheck // mock cannot fail here

	got, err := registry.GetByExternalID(ctx, "tasmota:plug")
	if err != nil {
		t.Fatalf("GetByExternalID() error = %v", err)
	}
	got.Name = "mutated"
	got.Features[0].LastValue = 99

	again, _ := registry.GetByExternalID(ctx, "tasmota:plug") //nolint:errcheck // present
	if again.Name != "Tasmota" || again.Features[0].LastValue != 0 {
		t.Error("mutating a returned device changed the cache")
	}
	if repo.gets != 0 {
		t.Errorf("cached lookup hit the repository %d times", repo.gets)
	}
}

func TestRegistry_CreateDevice(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	t.Run("assigns id and caches", func(t *testing.T) {
		d := testDevice("new-plug")
		if err := registry.CreateDevice(ctx, d); err != nil {
			t.Fatalf("CreateDevice() error = %v", err)
		}
		if d.ID == "" {
			t.Error("ID was not generated")
		}
		got, err := registry.GetDevice(ctx, d.ID)
		if err != nil {
			t.Fatalf("GetDevice() error = %v", err)
		}
		if got.ExternalID != "tasmota:new-plug" {
			t.Errorf("ExternalID = %q", got.ExternalID)
		}
	})

	t.Run("validates before persisting", func(t *testing.T) {
		d := testDevice("bad")
		d.Name = ""
		if err := registry.CreateDevice(ctx, d); !errors.Is(err, ErrInvalidName) {
			t.Errorf("CreateDevice() error = %v, want ErrInvalidName", err)
		}
		if _, err := repo.GetByExternalID(ctx, "tasmota:bad"); !errors.Is(err, ErrDeviceNotFound) {
			t.Error("invalid device reached the repository")
		}
	})

	t.Run("rejects duplicate external id", func(t *testing.T) {
		if err := registry.CreateDevice(ctx, testDevice("new-plug")); !errors.Is(err, ErrDeviceExists) {
			t.Errorf("CreateDevice() duplicate error = %v, want ErrDeviceExists", err)
		}
	})

	t.Run("repository failure leaves cache untouched", func(t *testing.T) {
		repo.saveErr = errors.New("disk full")
		defer func() { repo.saveErr = nil }()
		before := registry.GetDeviceCount()
		if err := registry.CreateDevice(ctx, testDevice("unsaved")); err == nil {
			t.Fatal("CreateDevice() expected error")
		}
		if registry.GetDeviceCount() != before {
			t.Error("cache changed after failed create")
		}
	})
}

func TestRegistry_DeleteDevice(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	d := testDevice("plug")
	if err := registry.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	if err := registry.DeleteDevice(ctx, d.ID); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}
	if registry.GetDeviceCount() != 0 {
		t.Error("device still cached after delete")
	}
	if err := registry.SetFeatureState(ctx, "tasmota:plug:POWER", 1); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("feature index not cleared: SetFeatureState() error = %v", err)
	}
	if err := registry.DeleteDevice(ctx, d.ID); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("second DeleteDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_SetFeatureState(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	registry.now = func() time.Time { return fixed }

	d := testDevice("plug")
	if err := registry.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}
	before, _ := registry.GetByExternalID(ctx, d.ExternalID) //nolint:errcheck // present

	if err := registry.SetFeatureState(ctx, "tasmota:plug:POWER", 1); err != nil {
		t.Fatalf("SetFeatureState() error = %v", err)
	}

	got, _ := registry.GetByExternalID(ctx, d.ExternalID) //nolint:errcheck // present
	f := got.Features[0]
	if f.LastValue != 1 || f.LastValueChanged == nil || !f.LastValueChanged.Equal(fixed) {
		t.Errorf("cached feature = %+v", f)
	}
	if before.Features[0].LastValue != 0 {
		t.Error("earlier copy observed the update")
	}

	stored, _ := repo.GetByExternalID(ctx, d.ExternalID) //nolint:errcheck // present
	if stored.Features[0].LastValue != 1 {
		t.Error("value not written through to repository")
	}

	if err := registry.SetFeatureState(ctx, "tasmota:unknown:POWER", 1); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("SetFeatureState() unknown error = %v, want ErrFeatureNotFound", err)
	}
}

func TestRegistry_ListDevicesSorted(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	for _, topic := range []string{"zulu", "alpha", "mike"} {
		d := testDevice(topic)
		d.Name = topic
		if err := registry.CreateDevice(ctx, d); err != nil {
			t.Fatalf("CreateDevice(%s) error = %v", topic, err)
		}
	}

	devices, err := registry.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	var names []string
	for _, d := range devices {
		names = append(names, d.Name)
	}
	if len(names) != 3 || names[0] != "alpha" || names[1] != "mike" || names[2] != "zulu" {
		t.Errorf("ListDevices() order = %v", names)
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()
	d := testDevice("plug")
	if err := registry.CreateDevice(ctx, d); err != nil {
		t.Fatalf("CreateDevice() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			_ = registry.SetFeatureState(ctx, "tasmota:plug:POWER", float64(v%2))
		}(i)
		go func() {
			defer wg.Done()
			_ = registry.ExistsByExternalID(ctx, "tasmota:plug")
			_, _ = registry.ListDevices(ctx)
		}()
	}
	wg.Wait()
}
