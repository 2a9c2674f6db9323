// Package async runs independent operations concurrently.
//
// [RunParallel] waits for every task and combines their errors, so callers
// such as teardown see every resource that failed rather than the first.
package async
