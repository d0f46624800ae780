package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics счетчики шлюза и сессии
type Metrics struct {
	Requests           *prometheus.CounterVec
	Refreshes          *prometheus.CounterVec
	SessionTransitions *prometheus.CounterVec
}

// New регистрирует метрики в registry
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_api_requests_total",
				Help: "Outbound API requests by method and response status",
			},
			[]string{"method", "status"},
		),
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_token_refreshes_total",
				Help: "Access token refresh exchanges by outcome",
			},
			[]string{"outcome"},
		),
		SessionTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dashboard_session_transitions_total",
				Help: "Session state transitions by target state",
			},
			[]string{"state"},
		),
	}
}

// ObserveRequest учитывает один ответ API. status 0 значит ошибку транспорта
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.Requests.WithLabelValues(method, label).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.SessionTransitions.WithLabelValues(state).Inc()
}
