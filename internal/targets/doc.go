// Package targets tracks the hook targets chosen at bootstrap.
//
// Each target moves through a fixed lifecycle:
//
//	Unresolved ──→ Resolved ──→ Installed
//	     │
//	     └──────→ Failed
//
// Installed and Failed are terminal. Table enforces the transitions and
// gives callbacks and diagnostics a read-only view after bootstrap.
//
// Thread-safe with RWMutex for concurrent access.
package targets
