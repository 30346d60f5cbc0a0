package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "predinator"

var (
	// GamesStarted counts games that reached their first question.
	GamesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "game",
		Name:      "started_total",
		Help:      "Total games started",
	})

	// Answers counts accepted answers.
	// Labels: answer (yes, no, dontknow)
	Answers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "game",
		Name:      "answers_total",
		Help:      "Total answers accepted",
	}, []string{"answer"})

	// Guesses counts final guesses by outcome.
	// Labels: outcome (made, correct, wrong)
	Guesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "game",
		Name:      "guesses_total",
		Help:      "Total guesses by outcome",
	}, []string{"outcome"})

	// StaleGames counts resumed games rejected after a retrain.
	StaleGames = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "game",
		Name:      "stale_total",
		Help:      "Total resumed games rejected because the model changed",
	})

	// Retrains counts training runs.
	// Labels: result (success, failure)
	Retrains = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "trains_total",
		Help:      "Total training runs by result",
	}, []string{"result"})

	// TrainDuration measures successful training time.
	TrainDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "train_duration_seconds",
		Help:      "Tree fitting duration in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// ModelNodes reports the node count of the live tree.
	ModelNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "model",
		Name:      "nodes",
		Help:      "Node count of the live decision tree",
	})

	// SubjectsLearned counts subjects added through learning.
	SubjectsLearned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "subjects_total",
		Help:      "Total subjects learned",
	})

	// QuestionsAdded counts questions added through learning.
	QuestionsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "learning",
		Name:      "questions_total",
		Help:      "Total questions added",
	})
)

// ObserveTrain records one training run.
func ObserveTrain(d time.Duration, nodes int, err error) {
	if err != nil {
		Retrains.WithLabelValues("failure").Inc()
		return
	}
	Retrains.WithLabelValues("success").Inc()
	TrainDuration.Observe(d.Seconds())
	ModelNodes.Set(float64(nodes))
}
