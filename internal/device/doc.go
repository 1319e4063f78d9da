// Package device provides the device registry for Tasmota discovery.
//
// The registry is the platform-side catalogue of confirmed devices and their
// features. Discovery consults it at promotion time to tell returning devices
// from new ones, and live state changes are written through to it.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                       Device Registry                         │
//	│                                                               │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌───────────┐  │
//	│  │     Registry     │   │    Repository    │   │ Validation│  │
//	│  │   (registry.go)  │──▶│  (repository.go) │   │           │  │
//	│  │ • cache by ext id│   │ • devices        │   │ • names   │  │
//	│  │ • feature index  │   │ • device_features│   │ • selector│  │
//	│  └──────────────────┘   └──────────────────┘   └───────────┘  │
//	└──────────────────────────────────────────────────────────────┘
//
// # Identifiers
//
// External ids are derived from the device topic and are stable across
// restarts: "tasmota:<topic>" for a device and "tasmota:<topic>:<capability>"
// for a feature. Selectors are the UI-safe form produced by GenerateSelector.
// The registry ID is a UUID assigned on creation.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db.DB)
//	registry := device.NewRegistry(repo)
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	if registry.ExistsByExternalID(ctx, "tasmota:kitchen-plug") { ... }
//
// # Thread Safety
//
// Registry methods are safe for concurrent use. Devices returned from the
// registry are deep copies.
package device
