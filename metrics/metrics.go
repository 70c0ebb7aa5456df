// Package metrics registers the Prometheus collectors for the client.
// The library only registers and updates collectors; serving them is the
// host application's concern.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	eventsReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ari_events_received_total",
			Help: "Total number of ARI events received over the event stream",
		},
		[]string{"type"},
	)

	framesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ari_frames_dropped_total",
			Help: "Total number of inbound frames dropped because they could not be parsed",
		},
	)

	reconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ari_reconnects_total",
			Help: "Total number of successful event-stream reconnects",
		},
	)

	handlerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ari_handler_panics_total",
			Help: "Total number of recovered event handler panics",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(eventsReceived)
	prometheus.MustRegister(framesDropped)
	prometheus.MustRegister(reconnects)
	prometheus.MustRegister(handlerPanics)
}

// RecordEventReceived counts one successfully decoded inbound event.
func RecordEventReceived(eventType string) {
	eventsReceived.WithLabelValues(eventType).Inc()
}

// RecordFrameDropped counts one unparseable inbound frame.
func RecordFrameDropped() {
	framesDropped.Inc()
}

// RecordReconnect counts one successful reconnect of the event stream.
func RecordReconnect() {
	reconnects.Inc()
}

// RecordHandlerPanic counts one recovered panic from an event handler.
func RecordHandlerPanic(eventType string) {
	handlerPanics.WithLabelValues(eventType).Inc()
}
