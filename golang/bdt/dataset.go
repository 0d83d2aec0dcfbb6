package bdt

import (
	"os"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

//Dataset holds split features, the linear leaf basis, labels and per record weights.
//A nil Basis is a single constant column, which makes leaves plain constants.
//A nil Weight means unit weights.
type Dataset struct {
	Features    *mat.Dense
	Basis       *mat.Dense
	Label       *mat.Dense
	Weight      *mat.Dense
	RecordIds   []int
	Description string
}

//NewDataset wraps a feature matrix with labels and optional weights.
func NewDataset(features *mat.Dense, label, weight []float64, description string) (*Dataset, error) {
	h, _ := features.Dims()
	if len(label) != h {
		return nil, errors.Errorf("%s: %d labels for %d records", description, len(label), h)
	}
	ds := &Dataset{Features: features, Label: mat.NewDense(h, 1, append([]float64(nil), label...)), Description: description}
	if weight != nil {
		if len(weight) != h {
			return nil, errors.Errorf("%s: %d weights for %d records", description, len(weight), h)
		}
		ds.Weight = mat.NewDense(h, 1, append([]float64(nil), weight...))
	}
	ds.RecordIds = make([]int, h)
	for p := range ds.RecordIds {
		ds.RecordIds[p] = p
	}
	return ds, nil
}

//ReadDataset reads features, basis (optional) and labels from npy files.
func ReadDataset(fileNameFeatures, fileNameBasis, fileNameLabel string) (*Dataset, error) {
	features, err := ReadNpy(fileNameFeatures)
	if err != nil {
		return nil, err
	}
	label, err := ReadNpy(fileNameLabel)
	if err != nil {
		return nil, err
	}
	ds := &Dataset{Features: features, Label: label, Description: fileNameFeatures}
	if fileNameBasis != "" {
		if ds.Basis, err = ReadNpy(fileNameBasis); err != nil {
			return nil, err
		}
	}
	ds.RecordIds = make([]int, Height(features))
	for p := range ds.RecordIds {
		ds.RecordIds[p] = p
	}
	return ds, ds.validate()
}

//ReadNpy reads a two dimensional npy file.
func ReadNpy(fileName string) (*mat.Dense, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrap(err, "open npy")
	}
	defer func() { _ = f.Close() }()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "read npy header of %s", fileName)
	}
	denseMat := &mat.Dense{}
	if err := r.Read(denseMat); err != nil {
		return nil, errors.Wrapf(err, "read npy %s", fileName)
	}
	return denseMat, nil
}

//Height is the number of rows of a matrix.
func Height(m mat.Matrix) int {
	h, _ := m.Dims()
	return h
}

//Len is the number of records.
func (ds *Dataset) Len() int {
	return Height(ds.Features)
}

func (ds *Dataset) weight(p int) float64 {
	if ds.Weight == nil {
		return 1
	}
	return ds.Weight.At(p, 0)
}

func (ds *Dataset) basis(p, q int) float64 {
	if ds.Basis == nil {
		return 1
	}
	return ds.Basis.At(p, q)
}

//BasisWidth is the number of leaf coefficients.
func (ds *Dataset) BasisWidth() int {
	if ds.Basis == nil {
		return 1
	}
	_, d := ds.Basis.Dims()
	return d
}

func (ds *Dataset) validate() error {
	h, w := ds.Features.Dims()
	if h == 0 || w == 0 {
		return errors.Errorf("%s: empty feature matrix %dx%d", ds.Description, h, w)
	}
	if ds.Basis != nil && Height(ds.Basis) != h {
		return errors.Errorf("%s: basis height %d is not equal to the feature height %d", ds.Description, Height(ds.Basis), h)
	}
	if lh, lw := ds.Label.Dims(); lh != h || lw != 1 {
		return errors.Errorf("%s: label shape %dx%d, want %dx1", ds.Description, lh, lw, h)
	}
	if ds.Weight != nil {
		if wh, ww := ds.Weight.Dims(); wh != h || ww != 1 {
			return errors.Errorf("%s: weight shape %dx%d, want %dx1", ds.Description, wh, ww, h)
		}
	}
	if len(ds.RecordIds) != h {
		return errors.Errorf("%s: %d record ids for %d records", ds.Description, len(ds.RecordIds), h)
	}
	return nil
}

//validatedDimensions returns the number of records, of features and of basis columns.
//It panics on inconsistent shapes: every caller has validated the dataset already.
func (ds *Dataset) validatedDimensions() (h, w, d int) {
	if err := ds.validate(); err != nil {
		log.Panic().Err(err).Msg("inconsistent dataset")
	}
	h, w = ds.Features.Dims()
	return h, w, ds.BasisWidth()
}

//Rows gathers the records idx into a new dataset; bias rows follow along when given.
func (ds *Dataset) Rows(idx []int, bias *mat.Dense) (*Dataset, *mat.Dense) {
	out := &Dataset{Description: ds.Description, RecordIds: make([]int, len(idx))}
	out.Features = gatherRows(ds.Features, idx)
	out.Label = gatherRows(ds.Label, idx)
	if ds.Basis != nil {
		out.Basis = gatherRows(ds.Basis, idx)
	}
	if ds.Weight != nil {
		out.Weight = gatherRows(ds.Weight, idx)
	}
	for i, p := range idx {
		out.RecordIds[i] = ds.RecordIds[p]
	}
	var outBias *mat.Dense
	if bias != nil {
		outBias = gatherRows(bias, idx)
	}
	return out, outBias
}

func gatherRows(m *mat.Dense, idx []int) *mat.Dense {
	_, w := m.Dims()
	out := mat.NewDense(len(idx), w, nil)
	for i, p := range idx {
		out.SetRow(i, m.RawRowView(p))
	}
	return out
}

//Split separates the records by the split criterion: feature < threshold goes left.
func (ds *Dataset) Split(bias *mat.Dense, split BestSplit) (left, right *Dataset, leftBias, rightBias *mat.Dense) {
	var leftIdx, rightIdx []int
	for p := 0; p < ds.Len(); p++ {
		if ds.Features.At(p, split.featureIndex) < split.threshold {
			leftIdx = append(leftIdx, p)
		} else {
			rightIdx = append(rightIdx, p)
		}
	}
	left, leftBias = ds.Rows(leftIdx, bias)
	right, rightBias = ds.Rows(rightIdx, bias)
	return
}

//allocateArrays fills the per record outer products of the basis.
func (ds *Dataset) allocateArrays() (rawHessian *tensor.Dense) {
	h := ds.Len()
	d := ds.BasisWidth()

	rawHessian = tensor.New(tensor.WithShape(h, d, d), tensor.Of(tensor.Float64))
	for p := 0; p < h; p++ {
		for q := 0; q < d; q++ {
			for r := 0; r < d; r++ {
				HandleError(rawHessian.SetAt(ds.basis(p, q)*ds.basis(p, r), p, q, r))
			}
		}
	}
	return
}

//HandleError panics on errors that indicate a programming mistake in the hot loops.
func HandleError(err error) {
	if err != nil {
		log.Panic().Err(err).Msg("booster invariant violated")
	}
}
