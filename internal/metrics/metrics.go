package metrics

import (
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FormulasCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibr8",
		Name:      "formulas_created_total",
		Help:      "Total formulas created.",
	})
	FormulaEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calibr8",
		Name:      "formula_evaluations_total",
		Help:      "Formula evaluations by outcome (ok, error).",
	}, []string{"outcome"})
	MappingsBound = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibr8",
		Name:      "mappings_bound_total",
		Help:      "Variable mappings created or replaced.",
	})
	MappingsRemoved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibr8",
		Name:      "mappings_removed_total",
		Help:      "Variable mappings deleted.",
	})
	TagsImported = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "calibr8",
		Name:      "masterlist_tags_imported_total",
		Help:      "Tags written from uploaded masterlists.",
	})
	BackendRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "calibr8",
		Name:      "backend_requests_total",
		Help:      "Catalog requests issued by the console, by operation and outcome.",
	}, []string{"op", "outcome"})
)

var initOnce sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(FormulasCreated, FormulaEvaluations, MappingsBound, MappingsRemoved, TagsImported, BackendRequests)
	})
}

// Handler exposes the default registry, for mounting on an existing router.
func Handler() http.Handler { return promhttp.Handler() }

// Serve starts a /metrics server on the given addr (e.g., ":9090"). Blocks; run in a goroutine.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	return http.ListenAndServe(addr, mux)
}

// AddrFromEnv returns listen address from METRICS_ADDR or default ":9090".
func AddrFromEnv() string {
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		return v
	}
	return ":9090"
}
