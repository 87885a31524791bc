package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tokensIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildly_tokens_issued_total",
			Help: "Signed tokens minted, by purpose.",
		},
		[]string{"purpose"},
	)

	tokenValidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildly_token_validations_total",
			Help: "Token validation attempts, by purpose and outcome.",
		},
		[]string{"purpose", "outcome"},
	)

	notificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildly_notifications_dispatched_total",
			Help: "Notifications handed off for delivery, by flow.",
		},
		[]string{"flow"},
	)

	authzResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "buildly_authorization_resolutions_total",
			Help: "Permission resolutions, by resource kind.",
		},
		[]string{"resource"},
	)
)

// Init registers the service metrics in the default registry.
func Init() {
	prometheus.MustRegister(tokensIssued, tokenValidations, notificationsDispatched, authzResolutions)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// TokenIssued records one minted token.
func TokenIssued(purpose string) {
	tokensIssued.WithLabelValues(purpose).Inc()
}

// TokenValidated records one validation attempt with its outcome
// ("valid", "expired", "invalid", "used").
func TokenValidated(purpose, outcome string) {
	tokenValidations.WithLabelValues(purpose, outcome).Inc()
}

// NotificationDispatched records notifications handed off for one flow.
func NotificationDispatched(flow string, count int) {
	if count > 0 {
		notificationsDispatched.WithLabelValues(flow).Add(float64(count))
	}
}

// AuthorizationResolved records one permission resolution.
func AuthorizationResolved(resource string) {
	authzResolutions.WithLabelValues(resource).Inc()
}
