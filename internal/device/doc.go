// Package device provides the device registry for the BeHome bridge.
//
// The registry is the local catalogue of every device the BeHome cloud
// reports for the account. It manages device lifecycle, cached state, and
// query operations for the REST API and the MQTT bridge.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────────────────────┐
//	│                          Device Registry                                 │
//	│                                                                          │
//	│  ┌──────────────────┐    ┌──────────────────┐    ┌──────────────────┐   │
//	│  │     Registry     │    │    Repository    │    │      Mapper      │   │
//	│  │   (registry.go)  │───▶│  (repository.go) │    │   (mapper.go)    │   │
//	│  │                  │    │                  │    │                  │   │
//	│  │ • Reconcile      │    │ • SQLite queries │    │ • type suffix →  │   │
//	│  │ • In-memory cache│    │ • JSON marshal   │    │   platform       │   │
//	│  │ • Hold windows   │    │ • Transactions   │    │ • unknown types  │   │
//	│  └──────────────────┘    └──────────────────┘    └──────────────────┘   │
//	│           │                       │                                      │
//	└───────────│───────────────────────│──────────────────────────────────────┘
//	            │                       │
//	            ▼                       ▼
//	┌──────────────────────┐   ┌──────────────────────┐
//	│   Poller / Bridge    │   │   SQLite Database    │
//	│  • Reconcile results │   │   (devices table)    │
//	│  • State publication │   └──────────────────────┘
//	└──────────────────────┘
//
// # Key Types
//
//   - Device: A single cloud device with its mapped platform and state
//   - Platform: The entity platform a device is surfaced under
//   - State: JSON map mirroring the cloud message payload
//
// # Reconciliation
//
// Each successful cloud poll produces a full device listing. Reconcile()
// treats it as authoritative: new devices are created, known devices are
// updated, and devices absent from the listing are removed. A failed poll
// never reaches Reconcile, so transient cloud errors cannot remove devices.
//
// After a command the bridge applies the expected state locally and places
// a hold window on the device (HoldState). Reconcile skips the state of
// held devices so a stale cloud snapshot cannot revert a fresh command.
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	result, err := registry.Reconcile(ctx, snapshot)
//	for _, changed := range result.Changed {
//	    publishState(changed)
//	}
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
