// Package metrics exposes prometheus counters for processing runs and writes
// them to a node_exporter textfile when configured.
package metrics
