package httpclient

import (
	"fmt"

	"github.com/AmmannChristian/go-shellauth/session"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts authentication events of SessionTransport.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	refreshes      *prometheus.CounterVec
	retries        prometheus.Counter
	loginRedirects prometheus.Counter
}

// NewMetrics creates the counters and registers them on reg.
// If reg is nil, the counters are created but not registered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shellauth_token_refreshes_total",
			Help: "Token refreshes performed by the authenticated client, by reason and result.",
		}, []string{"reason", "result"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shellauth_request_retries_total",
			Help: "Requests re-issued after a 401 response and a successful refresh.",
		}),
		loginRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shellauth_login_redirects_total",
			Help: "Failed refreshes that sent the user back to the login flow.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.refreshes, m.retries, m.loginRedirects} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("httpclient: register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observeRefresh(reason session.RefreshReason, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.refreshes.WithLabelValues(string(reason), result).Inc()
}

func (m *Metrics) observeRetry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) observeLogin() {
	if m == nil {
		return
	}
	m.loginRedirects.Inc()
}
