// Talon - Card fraud detection that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/talon/internal/feature"
	"github.com/opensource-finance/talon/internal/model"
	"github.com/opensource-finance/talon/internal/training"
)

var (
	datasetPath    string
	statePath      string
	classifierPath string

	members      int
	trees        int
	depth        int
	learningRate float64
	subsample    float64
	seed         int64
	threshold    float64
)

func main() {
	root := &cobra.Command{
		Use:   "talon-train",
		Short: "Train and inspect talon fraud classifiers",
	}

	root.PersistentFlags().StringVar(&statePath, "state", "artifacts/transform_state.gob", "feature transform state path")
	root.PersistentFlags().StringVar(&classifierPath, "classifier", "artifacts/classifier.gob", "classifier path")

	trainCmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier ensemble from a labeled CSV export",
		RunE:  runTrain,
	}
	trainCmd.Flags().StringVar(&datasetPath, "dataset", "", "labeled CSV export (required)")
	trainCmd.Flags().IntVar(&members, "members", 3, "number of ensemble members")
	trainCmd.Flags().IntVar(&trees, "trees", 100, "boosting rounds per member")
	trainCmd.Flags().IntVar(&depth, "depth", 4, "maximum tree depth")
	trainCmd.Flags().Float64Var(&learningRate, "learning-rate", 0.1, "shrinkage per round")
	trainCmd.Flags().Float64Var(&subsample, "subsample", 0.8, "row sampling fraction per round")
	trainCmd.Flags().Int64Var(&seed, "seed", 42, "random seed")
	trainCmd.Flags().Float64Var(&threshold, "threshold", 0.5, "probability cutoff for metrics")
	trainCmd.MarkFlagRequired("dataset")

	evaluateCmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate saved artifacts against a labeled CSV export",
		RunE:  runEvaluate,
	}
	evaluateCmd.Flags().StringVar(&datasetPath, "dataset", "", "labeled CSV export (required)")
	evaluateCmd.Flags().Float64Var(&threshold, "threshold", 0.5, "probability cutoff for metrics")
	evaluateCmd.MarkFlagRequired("dataset")

	inspectCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Describe saved artifacts",
		RunE:  runInspect,
	}

	root.AddCommand(trainCmd, evaluateCmd, inspectCmd)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runTrain(cmd *cobra.Command, args []string) error {
	ds, err := training.LoadCSV(datasetPath)
	if err != nil {
		return err
	}

	cfg := training.DefaultConfig()
	cfg.Members = members
	cfg.Trees = trees
	cfg.Depth = depth
	cfg.LearningRate = learningRate
	cfg.Subsample = subsample
	cfg.Seed = seed
	cfg.Threshold = threshold

	result, err := training.Run(ds, cfg)
	if err != nil {
		return err
	}

	if err := result.State.Save(statePath); err != nil {
		return fmt.Errorf("save transform state: %w", err)
	}
	if err := model.SaveEnsemble(classifierPath, result.Ensemble); err != nil {
		return fmt.Errorf("save classifier: %w", err)
	}

	fmt.Printf("Trained on %d rows (val %d, test %d)\n", result.TrainRows, result.ValRows, result.TestRows)
	fmt.Printf("Ensemble members: %d, weights: %v\n", result.Ensemble.Size(), result.Ensemble.Weights())
	printMetrics("Test", result.TestMetrics)
	fmt.Printf("Artifacts written to %s and %s\n", statePath, classifierPath)
	return nil
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	state, err := feature.Load(statePath)
	if err != nil {
		return fmt.Errorf("load transform state: %w", err)
	}
	ensemble, err := model.LoadEnsemble(classifierPath)
	if err != nil {
		return fmt.Errorf("load classifier: %w", err)
	}

	ds, err := training.LoadCSV(datasetPath)
	if err != nil {
		return err
	}

	data := make([][]float64, ds.Len())
	for i, tx := range ds.Records {
		vec, err := state.Transform(tx)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		data[i] = vec.Values
	}

	metrics, err := model.Evaluate(ensemble, data, ds.Labels, threshold)
	if err != nil {
		return err
	}

	fmt.Printf("Evaluated %d rows (fraud rate %.4f)\n", ds.Len(), ds.FraudRate())
	printMetrics("Dataset", metrics)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	state, err := feature.Load(statePath)
	if err != nil {
		return fmt.Errorf("load transform state: %w", err)
	}

	fmt.Printf("Transform state: %s\n", statePath)
	fmt.Printf("  Features:        %d\n", len(state.Features))
	fmt.Printf("  Training rows:   %d\n", len(state.SortedAmounts))
	fmt.Printf("  Amount mean/std: %.2f / %.2f\n", state.AmountMean, state.AmountStd)
	fmt.Printf("  Velocity q75:    %.2f\n", state.VelocityQ75)
	fmt.Printf("  Distance q75:    %.2f\n", state.DistanceQ75)
	fmt.Printf("  Amount q95:      %.2f\n", state.AmountQ95)
	fmt.Printf("  Distance q90:    %.2f\n", state.DistanceQ90)

	ensemble, err := model.LoadEnsemble(classifierPath)
	if err != nil {
		fmt.Printf("Classifier: unavailable (%v)\n", err)
		return nil
	}

	fmt.Printf("Classifier: %s\n", classifierPath)
	fmt.Printf("  Members: %d\n", ensemble.Size())
	fmt.Printf("  Weights: %v\n", ensemble.Weights())
	return nil
}

func printMetrics(name string, m *model.Metrics) {
	fmt.Printf("%s metrics:\n", name)
	fmt.Printf("  Accuracy:  %.4f\n", m.Accuracy)
	fmt.Printf("  Precision: %.4f\n", m.Precision)
	fmt.Printf("  Recall:    %.4f\n", m.Recall)
	fmt.Printf("  F1:        %.4f\n", m.F1)
	fmt.Printf("  TP/FP/TN/FN: %d/%d/%d/%d\n", m.TruePositive, m.FalsePositive, m.TrueNegative, m.FalseNegative)
}
