package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_assessments_total",
		Help: "Total number of risk assessments computed, by final level.",
	}, []string{"level"})
	DegradedAssessmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_assessments_degraded_total",
		Help: "Total number of assessments served in grid-only degraded mode.",
	})
	AssessDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "safety_assess_duration_seconds",
		Help:    "Duration of a single fusion assessment.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})
	FeedbackQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_feedback_queued_total",
		Help: "Total number of feedback events accepted into the queue.",
	})
	FeedbackRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "safety_feedback_rejected_total",
		Help: "Total number of feedback events rejected due to backpressure.",
	})
	FeedbackOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_feedback_outcomes_total",
		Help: "Total number of processed feedback events, by outcome.",
	}, []string{"outcome"})
	RetrainRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "safety_retrain_runs_total",
		Help: "Total number of retraining jobs, by result.",
	}, []string{"result"})
)
