package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	flowRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrain_flow_runs_total",
			Help: "Total number of retraining flow runs by final status.",
		},
		[]string{"flow", "status"},
	)

	flowStepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retrain_flow_step_duration_seconds",
			Help:    "Duration of each flow task in seconds.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"task"},
	)

	flowLastMAE = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "retrain_flow_last_mae",
			Help: "Mean absolute error reported by the latest successful run.",
		},
		[]string{"flow", "kind"},
	)

	registrySaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrain_registry_saves_total",
			Help: "Total number of registry saves by target and outcome.",
		},
		[]string{"target", "result"},
	)
)

func init() {
	prometheus.MustRegister(flowRunsTotal)
	prometheus.MustRegister(flowStepDuration)
	prometheus.MustRegister(flowLastMAE)
	prometheus.MustRegister(registrySaves)
}
