package metrics

import (
	"net/http"
	"strconv"
	"time"

	"bureausocial/contexts/governance/assembly-voting/domain/entities"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bureausocial"

// Recorder exports voting workflow counters and HTTP request latency.
type Recorder struct {
	registry *prometheus.Registry

	votesCast          *prometheus.CounterVec
	votesRejected      *prometheus.CounterVec
	delegationsCreated prometheus.Counter
	delegationsRevoked prometheus.Counter
	resultsComputed    prometheus.Counter
	itemsClosed        *prometheus.CounterVec
	httpRequests       *prometheus.HistogramVec
}

// New registers every collector on a fresh registry together with the Go
// runtime and process collectors.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)
	return &Recorder{
		registry: registry,
		votesCast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "ballots accepted, by choice",
		}, []string{"choice"}),
		votesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_rejected_total",
			Help:      "ballots rejected, by reason",
		}, []string{"reason"}),
		delegationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegations_created_total",
			Help:      "proxy delegations created",
		}),
		delegationsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delegations_revoked_total",
			Help:      "proxy delegations revoked",
		}),
		resultsComputed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_computed_total",
			Help:      "voting item result evaluations",
		}),
		itemsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voting_items_closed_total",
			Help:      "voting items closed, by outcome",
		}, []string{"approved"}),
		httpRequests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (r *Recorder) VoteCast(choice entities.VoteChoice) {
	r.votesCast.WithLabelValues(string(choice)).Inc()
}

func (r *Recorder) VoteRejected(reason string) {
	r.votesRejected.WithLabelValues(reason).Inc()
}

func (r *Recorder) DelegationCreated() { r.delegationsCreated.Inc() }
func (r *Recorder) DelegationRevoked() { r.delegationsRevoked.Inc() }
func (r *Recorder) ResultsComputed()   { r.resultsComputed.Inc() }

func (r *Recorder) VotingItemClosed(approved bool) {
	r.itemsClosed.WithLabelValues(strconv.FormatBool(approved)).Inc()
}

func (r *Recorder) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
