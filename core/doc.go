// Package core contains the canonical domain contracts, entities, and the
// connection lifecycle orchestration. Lower-level adapters must depend on
// this package; core must not depend on provider-specific or store-specific
// packages.
package core
