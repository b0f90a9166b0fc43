// Package metrics exports scheduler activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/joeycumines/reactree/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reactree"

// Metrics holds the collectors shared by every scheduler observer.
type Metrics struct {
	ticks    *prometheus.CounterVec
	overruns *prometheus.CounterVec
	faults   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Total number of completed ticks.",
		}, []string{"scheduler"}),
		overruns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overruns_total",
			Help:      "Total number of ticks that exceeded their period.",
		}, []string{"scheduler"}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "faults_total",
			Help:      "Total number of callback faults surfaced by top-level children.",
		}, []string{"scheduler"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent ticking the top-level children.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"scheduler"}),
	}
	for _, c := range []prometheus.Collector{m.ticks, m.overruns, m.faults, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Observer returns a scheduler observer recording under the given
// scheduler name.
func (m *Metrics) Observer(name string) scheduler.Observer {
	return &observer{
		ticks:    m.ticks.WithLabelValues(name),
		overruns: m.overruns.WithLabelValues(name),
		faults:   m.faults.WithLabelValues(name),
		duration: m.duration.WithLabelValues(name),
	}
}

type observer struct {
	ticks    prometheus.Counter
	overruns prometheus.Counter
	faults   prometheus.Counter
	duration prometheus.Observer
}

func (o *observer) OnTick(r scheduler.TickReport) {
	o.ticks.Inc()
	o.duration.Observe(r.Elapsed.Seconds())
}

func (o *observer) OnOverrun(scheduler.Overrun) { o.overruns.Inc() }

func (o *observer) OnFault(scheduler.Fault) { o.faults.Inc() }
