// Package api exposes cluster workflows over HTTP.
//
// The router offers the same operations as the CLI:
//
//	POST /deploy/head-node     provision network, security boundary and head node
//	POST /deploy/worker-nodes  join workers to an existing head node
//	POST /cluster-info         list nodes, releases and pods from the head node
//	POST /teardown             remove every resource of a cluster
//	GET  /healthz              liveness
//	GET  /metrics              Prometheus metrics
//
// Request bodies overlay the server's base configuration. Malformed or
// invalid requests get 400; any workflow failure gets 500 with a JSON body
// carrying the message and the error detail.
package api
