/*
Package observability turns the simulator's lifecycle hooks into Prometheus metrics.

Metrics are registered on a caller-supplied registerer so tests and embedded
uses do not collide with the global registry.
*/
package observability
