package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	global *Metrics
	once   sync.Once
)

// Metrics holds the Prometheus collectors of the agent. They are registered
// once on the default registry and exposed by the status server on /metrics.
//
//   - jarvis_phase - numeric value of the current phase
//   - jarvis_status_dropped_total - status events dropped for slow subscribers
//   - jarvis_intents_total{kind} - dispatched intents
//   - jarvis_speech_total{outcome} - speech outcomes (spoken, aborted, failed)
//   - jarvis_confirmations_total{result} - visual confirmation results
type Metrics struct {
	Phase         prometheus.Gauge
	StatusDropped prometheus.Counter
	Intents       *prometheus.CounterVec
	Speech        *prometheus.CounterVec
	Confirmations *prometheus.CounterVec
}

func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{
			Phase: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "jarvis_phase",
				Help: "Current phase of the agent (0 idle, 1 hidden, 2 listening, 3 thinking, 4 speaking)",
			}),
			StatusDropped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "jarvis_status_dropped_total",
				Help: "Status events dropped because a subscriber queue was full",
			}),
			Intents: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "jarvis_intents_total",
				Help: "Dispatched intents by kind",
			}, []string{"kind"}),
			Speech: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "jarvis_speech_total",
				Help: "Speech requests by outcome",
			}, []string{"outcome"}),
			Confirmations: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "jarvis_confirmations_total",
				Help: "Visual launch confirmations by result",
			}, []string{"result"}),
		}
	})

	return global
}
