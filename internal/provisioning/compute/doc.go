// Package compute launches the head node and the worker pool.
//
// Both roles share one image policy: the newest image matching the
// configured filter wins. Launches return as soon as the provider accepts
// them; [WaitForRunning] polls until nodes are running and addressable.
package compute
