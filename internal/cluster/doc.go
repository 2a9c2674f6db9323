// Package cluster is the entry point shared by the CLI and the HTTP API.
//
// A Manager turns a validated configuration into provider calls: it selects
// the infrastructure manager, wires the optional S3 inventory, runs the
// lifecycle orchestrator for deploys, the teardown coordinator for destroys,
// and opens an SSH shell to the head node for Helm and status commands.
package cluster
