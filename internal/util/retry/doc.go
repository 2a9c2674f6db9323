// Package retry provides backoff and polling helpers for provider calls.
//
// [WithExponentialBackoff] retries transient failures such as dependency
// violations during teardown. [Poll] waits for a resource to reach a state
// at a fixed interval with a bounded number of attempts.
package retry
