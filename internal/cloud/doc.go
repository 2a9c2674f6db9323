// Package cloud defines the provider-neutral model minisc provisions against.
//
// Provider packages under internal/platform implement [InfrastructureManager]
// for one cloud each. Everything above them (provisioning, orchestration,
// teardown) only sees the types in this package and never a provider SDK.
//
// Resources are never owned locally: callers keep identifiers and re-read
// state from the provider when they need it.
package cloud
