// Package helm installs Helm charts on a running head node and reports
// cluster status.
//
// Every command runs on the head node through a remote Shell, normally an
// SSH session, so the operator needs neither helm nor kubectl locally.
// The head node's boot script installs both binaries; WaitReady polls until
// helm answers before any repository or chart is touched.
//
// Chart installation reports and continues: a failed namespace or release
// is recorded in the Report and the remaining charts are still attempted.
package helm
