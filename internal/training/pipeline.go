package training

import (
	"fmt"
	"log/slog"

	"github.com/opensource-finance/talon/internal/feature"
	"github.com/opensource-finance/talon/internal/model"
)

// Config holds training pipeline settings.
type Config struct {
	TrainRatio float64
	ValRatio   float64
	Seed       int64

	// Members is the number of boosted models in the ensemble.
	Members int

	Trees        int
	Depth        int
	LearningRate float64
	Subsample    float64

	// Threshold is the probability cutoff used for metrics.
	Threshold float64
}

// DefaultConfig mirrors the settings the shipped artifacts were
// trained with.
func DefaultConfig() Config {
	return Config{
		TrainRatio:   0.7,
		ValRatio:     0.1,
		Seed:         42,
		Members:      3,
		Trees:        100,
		Depth:        4,
		LearningRate: 0.1,
		Subsample:    0.8,
		Threshold:    0.5,
	}
}

// Result holds the artifacts and evaluation of a training run.
type Result struct {
	State    *feature.State
	Ensemble *model.Ensemble

	ValMetrics  []*model.Metrics
	TestMetrics *model.Metrics

	TrainRows int
	ValRows   int
	TestRows  int
}

// Run fits the feature transform on the training partition, trains the
// ensemble members, weights them by validation F1, and evaluates the
// ensemble on the held-out test partition.
func Run(ds *Dataset, cfg Config) (*Result, error) {
	train, val, test, err := ds.Split(cfg.TrainRatio, cfg.ValRatio, cfg.Seed)
	if err != nil {
		return nil, err
	}

	slog.Info("dataset split",
		"total", ds.Len(),
		"train", train.Len(),
		"val", val.Len(),
		"test", test.Len(),
		"fraud_rate", ds.FraudRate(),
	)

	state, err := feature.Fit(train.Records)
	if err != nil {
		return nil, fmt.Errorf("fit feature transform: %w", err)
	}

	trainX, err := matrix(state, train)
	if err != nil {
		return nil, fmt.Errorf("transform train partition: %w", err)
	}
	valX, err := matrix(state, val)
	if err != nil {
		return nil, fmt.Errorf("transform validation partition: %w", err)
	}
	testX, err := matrix(state, test)
	if err != nil {
		return nil, fmt.Errorf("transform test partition: %w", err)
	}

	members := make([]*model.GradientBoosted, cfg.Members)
	valMetrics := make([]*model.Metrics, cfg.Members)
	f1Scores := make([]float64, cfg.Members)

	for i := 0; i < cfg.Members; i++ {
		m := model.New(
			model.WithTrees(cfg.Trees),
			model.WithDepth(cfg.Depth),
			model.WithLearningRate(cfg.LearningRate),
			model.WithSubsample(cfg.Subsample),
			model.WithSeed(cfg.Seed+int64(i)),
		)
		if err := m.Fit(trainX, train.Labels, state.FeatureNames()); err != nil {
			return nil, fmt.Errorf("train member %d: %w", i, err)
		}

		metrics, err := model.Evaluate(m, valX, val.Labels, cfg.Threshold)
		if err != nil {
			return nil, fmt.Errorf("evaluate member %d: %w", i, err)
		}
		members[i] = m
		valMetrics[i] = metrics
		f1Scores[i] = metrics.F1

		slog.Info("ensemble member trained",
			"member", i,
			"val_f1", metrics.F1,
			"val_precision", metrics.Precision,
			"val_recall", metrics.Recall,
		)
	}

	ensemble, err := model.NewEnsemble(members, f1Scores)
	if err != nil {
		return nil, fmt.Errorf("build ensemble: %w", err)
	}

	testMetrics, err := model.Evaluate(ensemble, testX, test.Labels, cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("evaluate ensemble: %w", err)
	}

	slog.Info("ensemble evaluated",
		"test_f1", testMetrics.F1,
		"test_precision", testMetrics.Precision,
		"test_recall", testMetrics.Recall,
		"test_accuracy", testMetrics.Accuracy,
	)

	return &Result{
		State:       state,
		Ensemble:    ensemble,
		ValMetrics:  valMetrics,
		TestMetrics: testMetrics,
		TrainRows:   train.Len(),
		ValRows:     val.Len(),
		TestRows:    test.Len(),
	}, nil
}

// matrix transforms every record of a partition into feature vectors.
func matrix(state *feature.State, ds *Dataset) ([][]float64, error) {
	out := make([][]float64, ds.Len())
	for i, tx := range ds.Records {
		vec, err := state.Transform(tx)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = vec.Values
	}
	return out, nil
}
