package reporters

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "buildhook_events_processed_total",
		Help: "The total number of processed build events",
	})

	notificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildhook_notifications_sent_total",
		Help: "Notifications delivered, by destination kind",
	}, []string{"destination"})

	notificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "buildhook_notifications_failed_total",
		Help: "Notifications rejected or undeliverable, by destination kind",
	}, []string{"destination"})
)
