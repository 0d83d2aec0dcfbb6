package bdt

import (
	"context"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBoosterHandlesConstantFeatures(t *testing.T) {
	rows := 128
	features := mat.NewDense(rows, 3, nil)
	basis := mat.NewDense(rows, 4, nil)
	label := mat.NewDense(rows, 1, nil)

	for i := 0; i < rows; i++ {
		tVal := float64(i) / float64(rows-1)
		basis.Set(i, 0, 1.0)
		basis.Set(i, 1, tVal)
		basis.Set(i, 2, math.Sin(50*tVal))
		basis.Set(i, 3, math.Cos(50*tVal))
		val := 0.3 + 0.5*tVal + 0.2*math.Sin(50*tVal) - 0.1*math.Cos(50*tVal)
		label.Set(i, 0, val)
	}

	ds := &Dataset{Features: features, Basis: basis, Label: label, RecordIds: make([]int, rows)}
	for i := range ds.RecordIds {
		ds.RecordIds[i] = i
	}

	booster, err := Train(context.Background(), Params{
		Train:           ds,
		Loss:            MseLoss{},
		NStages:         1,
		RegLambda:       1e-6,
		MaxDepth:        3,
		LearningRate:    1.0,
		Subsample:       1,
		ColsampleByTree: 1,
		ThreadsNum:      1,
	})
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if len(booster.Trees) != 1 {
		t.Fatalf("expected 1 tree, got %d", len(booster.Trees))
	}
	tree := booster.Trees[0]
	if len(tree.TreeNodes) != 1 {
		t.Fatalf("expected single node tree, got %d nodes", len(tree.TreeNodes))
	}
	node := tree.TreeNodes[0]
	if !node.NoSplit {
		t.Fatalf("expected node to be marked as NoSplit")
	}
	if node.FeatureNumber != -1 {
		t.Fatalf("expected FeatureNumber -1, got %d", node.FeatureNumber)
	}

	prediction := booster.PredictRaw(features, basis, 0)
	sumSq := 0.0
	for i := 0; i < rows; i++ {
		diff := label.At(i, 0) - prediction.At(i, 0)
		sumSq += diff * diff
	}
	rmse := math.Sqrt(sumSq / float64(rows))
	if rmse > 1e-5 {
		t.Fatalf("unexpected RMSE: %g", rmse)
	}
}
