// Package testing provides test utilities, builders, and fixtures for unit and integration tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder for creating test configurations
//   - Fixture: an in-memory provider wired into a provisioning context
//   - RecordingObserver: an observer that keeps every event for assertions
//   - MockShell: a testify mock of the remote shell
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithClusterTag("demo").
//	    WithWorkers(3).
//	    Build()
//
//	fx := testing.NewFixture(t, cfg)
//	topology, err := infrastructure.EnsureNetwork(fx.Ctx)
package testing
