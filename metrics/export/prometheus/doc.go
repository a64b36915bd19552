// Package prometheus exposes goGuard metrics to Prometheus.
//
// [NewPrometheusExporter] wraps a [goGuard.Guard] in a collector registered in
// a private registry. Mount [PrometheusExporter.Handler], or register the
// exporter in your own registry. Counter names are goguard_*_total; the delay
// histogram is goguard_delay_seconds.
package prometheus
