package filestore

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts file operations. A nil *Metrics records nothing.
type Metrics struct {
	operations    *prometheus.CounterVec
	uploadedBytes prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "filestore_operations_total",
			Help: "File operations by operation and HTTP status class.",
		}, []string{"operation", "result"}),
		uploadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "filestore_uploaded_bytes_total",
			Help: "Bytes written by successful uploads.",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.operations, m.uploadedBytes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("filestore: register metrics: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(operation string, status int) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case status >= 500:
		result = "error"
	case status >= 400:
		result = "rejected"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) uploaded(n int64) {
	if m == nil {
		return
	}
	m.uploadedBytes.Add(float64(n))
}
