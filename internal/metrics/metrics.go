// Package metrics exposes quizmeet's Prometheus instruments.
package metrics

const namespace = "quizmeet"
