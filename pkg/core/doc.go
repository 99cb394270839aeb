// Package core defines the shared language of the sqlstage system.
//
// This package contains:
//   - Store-facing types (AdapterConfig, Column, Result)
//   - The store error type surfaced by every adapter (StoreError)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
