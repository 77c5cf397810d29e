package observability

import (
	"github.com/aretw0/flowtalk/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// ActionJump labels explicit-target navigations, whose action is the target id.
const ActionJump = "jump"

// Metrics holds the navigation collectors.
type Metrics struct {
	Navigations *prometheus.CounterVec
	Completions prometheus.Counter
	Sessions    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Navigations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowtalk_navigations_total",
				Help: "Navigation events by action and vertex.",
			},
			[]string{"action", "vertex"},
		),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flowtalk_conversations_completed_total",
			Help: "Conversations that reached the end of their graph.",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flowtalk_sessions_active",
			Help: "Live conversation sessions.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Navigations, m.Completions, m.Sessions} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observer returns an observer feeding these collectors.
func (m *Metrics) Observer() domain.Observer {
	return &metricsObserver{m: m}
}

type metricsObserver struct {
	m *Metrics
}

func (o *metricsObserver) Notify(action string, step *domain.Step) {
	switch action {
	case domain.ActionDone:
		o.m.Completions.Inc()
		return
	case domain.ActionStart, domain.ActionContinue, domain.ActionBack:
	default:
		action = ActionJump
	}
	o.m.Navigations.WithLabelValues(action, domain.StepID(step)).Inc()
}

// Opened counts a new live session.
func (m *Metrics) Opened(string) { m.Sessions.Inc() }

// Closed counts a session going away.
func (m *Metrics) Closed(string) { m.Sessions.Dec() }
