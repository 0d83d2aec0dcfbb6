package bdt

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//BestSplit contains results of the split selection algorithm.
type BestSplit struct {
	bestValue, currentValue          float64
	gain                             float64
	featureIndex, orderIndex         int
	threshold                        float64
	deltaUp, deltaDown, deltaCurrent *mat.Dense
	coverUp, coverDown               float64
	validSplit                       bool
	numberOfObjects                  int
}

//OneStepInfo is the algorithm state after passing a cluster of equal feature values.
type OneStepInfo struct {
	deltaLoss    float64
	rawLoss      float64
	deltaWeight  *mat.Dense
	cover        float64
	InterFeature float64
}

//treeParams are the per tree settings of the split search.
type treeParams struct {
	loss           SplitLoss
	regLambda      float64
	gamma          float64
	minChildWeight float64
	maxDepth       int
	learningRate   float64
	threadsNum     int
	unbalancedLoss float64
	columns        []int
}

//splitScanner holds the weighted loss derivatives of the records of one node.
type splitScanner struct {
	ds         *Dataset
	params     *treeParams
	d          int
	der1, der2 []float64
	rawHessian *tensor.Dense
}

func newSplitScanner(ds *Dataset, bias *mat.Dense, params *treeParams) *splitScanner {
	h, _, d := ds.validatedDimensions()
	s := &splitScanner{ds: ds, params: params, d: d, der1: make([]float64, h), der2: make([]float64, h)}
	for p := 0; p < h; p++ {
		target, b, w := ds.Label.At(p, 0), bias.At(p, 0), ds.weight(p)
		s.der1[p] = w * params.loss.lossDer1(target, b)
		s.der2[p] = w * params.loss.lossDer2(target, b)
	}
	s.rawHessian = ds.allocateArrays()
	return s
}

//accumulator keeps the running gradient and hessian of a pass.
type accumulator struct {
	grad, hess, normHess, inverseHess, weight, deltaLoss *mat.Dense
	cover                                                float64
}

func newAccumulator(d int) *accumulator {
	return &accumulator{
		grad:        mat.NewDense(d, 1, nil),
		hess:        mat.NewDense(d, d, nil),
		normHess:    mat.NewDense(d, d, nil),
		inverseHess: mat.NewDense(d, d, nil),
		weight:      mat.NewDense(d, 1, nil),
		deltaLoss:   mat.NewDense(1, 1, nil),
	}
}

func (s *splitScanner) add(acc *accumulator, p int) {
	for cp := 0; cp < s.d; cp++ {
		acc.grad.Set(cp, 0, acc.grad.At(cp, 0)+s.der1[p]*s.ds.basis(p, cp))
		for cq := 0; cq < s.d; cq++ {
			element, err := s.rawHessian.At(p, cp, cq)
			HandleError(err)
			acc.hess.Set(cp, cq, acc.hess.At(cp, cq)+s.der2[p]*element.(float64))
		}
	}
	acc.cover += s.der2[p]
}

//solve computes the optimal leaf coefficients -(H+lambda*I)^-1 G and the loss change -0.5 G^T (H+lambda*I)^-1 G.
func (s *splitScanner) solve(acc *accumulator, feature float64) OneStepInfo {
	for cp := 0; cp < s.d; cp++ {
		for cq := 0; cq < s.d; cq++ {
			diagEye := 0.0
			if cp == cq {
				diagEye = s.params.regLambda
			}
			acc.normHess.Set(cp, cq, acc.hess.At(cp, cq)+diagEye)
		}
	}
	if err := acc.inverseHess.Inverse(acc.normHess); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			HandleError(err)
		}
	}
	acc.weight.Mul(acc.inverseHess, acc.grad)
	acc.deltaLoss.Mul(acc.weight.T(), acc.grad)
	acc.weight.Scale(-1.0, acc.weight)
	rawLoss := -0.5 * acc.deltaLoss.At(0, 0)
	return OneStepInfo{
		deltaLoss:    rawLoss,
		rawLoss:      rawLoss,
		deltaWeight:  mat.DenseCopyOf(acc.weight),
		cover:        acc.cover,
		InterFeature: feature,
	}
}

//wholeNode solves the node without splitting it.
func (s *splitScanner) wholeNode() OneStepInfo {
	acc := newAccumulator(s.d)
	for p := range s.der1 {
		s.add(acc, p)
	}
	return s.solve(acc, 0)
}

//IterateSplits walks the sorted records, incrementally updates the hessian and the gradient
//and solves the leaf at the end of every cluster of equal feature values. The last cluster
//is returned separately as the total.
func (s *splitScanner) IterateSplits(indRange IntIterable, featuresAs []int, q int) (passInfo []OneStepInfo, total OneStepInfo) {
	var order []int
	for indRange.HasNext() {
		order = append(order, indRange.GetNext())
	}
	acc := newAccumulator(s.d)
	for k, currentInd := range order {
		record := featuresAs[currentInd]
		s.add(acc, record)

		value := s.ds.Features.At(record, q)
		last := k == len(order)-1
		if last || value != s.ds.Features.At(featuresAs[order[k+1]], q) {
			info := s.solve(acc, value)
			info.deltaLoss += s.params.unbalancedLoss * indRange.DistToMiddle(currentInd)
			if last {
				total = info
			} else {
				passInfo = append(passInfo, info)
			}
		}
	}
	return
}

//selectTheBestSplitCluster combines the forward and the backward passes at every cluster boundary.
func (s *splitScanner) selectTheBestSplitCluster(bestSplit *BestSplit, q int, downPassInfo, upPassInfo []OneStepInfo) {
	if len(downPassInfo) != len(upPassInfo) {
		log.Panic().Int("down", len(downPassInfo)).Int("up", len(upPassInfo)).Msg("different dimensions of up and down pass infos")
	}
	h := len(downPassInfo)
	bestSplit.numberOfObjects = s.ds.Len()
	bestSplit.featureIndex = q
	firstIter := true

	for hInd := 0; hInd < h; hInd++ {
		down, up := downPassInfo[hInd], upPassInfo[h-1-hInd]
		if down.cover < s.params.minChildWeight || up.cover < s.params.minChildWeight {
			continue
		}
		gain := bestSplit.currentValue - down.rawLoss - up.rawLoss
		if gain <= s.params.gamma {
			continue
		}
		currentLossValue := down.deltaLoss + up.deltaLoss
		if firstIter || bestSplit.bestValue > currentLossValue {
			firstIter = false
			bestSplit.bestValue = currentLossValue
			bestSplit.gain = gain
			bestSplit.deltaUp = down.deltaWeight
			bestSplit.deltaDown = up.deltaWeight
			bestSplit.coverUp, bestSplit.coverDown = down.cover, up.cover
			bestSplit.threshold = (down.InterFeature + up.InterFeature) / 2.0
			if bestSplit.threshold <= down.InterFeature {
				bestSplit.threshold = up.InterFeature
			}
			bestSplit.orderIndex = hInd
		}
	}
	bestSplit.validSplit = !firstIter
}

//scanForSplitCluster argsorts a feature column, iterates through the records upside down and
//downside up and selects the best split of the column.
func (s *splitScanner) scanForSplitCluster(q int) (bestSplit BestSplit) {
	h := s.ds.Len()
	featuresAs := columnArgsort(s.ds.Features.ColView(q))

	downPassInfo, total := s.IterateSplits(NewRange(0, h, 1), featuresAs, q)
	bestSplit.currentValue = total.rawLoss
	bestSplit.deltaCurrent = total.deltaWeight

	upPassInfo, _ := s.IterateSplits(NewRange(h-1, -1, -1), featuresAs, q)
	s.selectTheBestSplitCluster(&bestSplit, q, downPassInfo, upPassInfo)
	return
}

//columnArgsort returns the record order of ascending column values, stable for ties.
func columnArgsort(col mat.Vector) []int {
	n := col.Len()
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return col.AtVec(idx[a]) < col.AtVec(idx[b]) })
	return idx
}

//TheBestSplit finds the best split of the dataset over the allowed columns.
//Columns are scanned in a worker pool when more than one thread is requested.
//It returns nil when no column has a split passing the gain and cover limits.
func TheBestSplit(ds *Dataset, bias *mat.Dense, params *treeParams) *BestSplit {
	s := newSplitScanner(ds, bias, params)
	columns := params.columns
	result := make([]BestSplit, len(columns))

	if params.threadsNum <= 1 {
		for ind, q := range columns {
			result[ind] = s.scanForSplitCluster(q)
		}
	} else {
		taskPool := NewPool(params.threadsNum)
		for ind := range columns {
			bestSplitFunc := func(localInd int) BestSplit {
				return s.scanForSplitCluster(columns[localInd])
			}
			taskPool.AddTask(&TaskFindBestSplit{result, ind, bestSplitFunc})
		}
		taskPool.Close()
		taskPool.WaitAll()
	}

	minimalLoss := 0.0
	bestIndex := 0
	firstTime := true
	for ind, currentSplit := range result {
		if currentSplit.validSplit && (firstTime || minimalLoss > currentSplit.bestValue) {
			firstTime = false
			minimalLoss = currentSplit.bestValue
			bestIndex = ind
		}
	}
	if firstTime {
		return nil
	}
	return &result[bestIndex]
}
