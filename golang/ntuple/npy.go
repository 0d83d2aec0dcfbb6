package ntuple

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sbinet/npyio"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

const npyExt = ".npy"

//ReadColumnNpy reads a one-dimensional float64 npy file.
func ReadColumnNpy(fileName string) (values []float64, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fileName)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	if err = npyio.Read(f, &values); err != nil {
		return nil, errors.Wrapf(err, "read %s", fileName)
	}
	return values, nil
}

//ReadMatrixNpy reads the content of a two-dimensional npy file.
func ReadMatrixNpy(fileName string) (denseMat *mat.Dense, err error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", fileName)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "npy header of %s", fileName)
	}
	denseMat = &mat.Dense{}
	if err = r.Read(denseMat); err != nil {
		return nil, errors.Wrapf(err, "read %s", fileName)
	}
	return denseMat, nil
}

//WriteNpy writes a column or a matrix as an npy file.
func WriteNpy(fileName string, value interface{}) (err error) {
	dst, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "create %s", fileName)
	}
	defer func() {
		if cerr := dst.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return errors.Wrapf(npyio.Write(dst, value), "write %s", fileName)
}

//LoadSampleDir reads a sample stored as a directory of npy files.
//"<column>.npy" files are flat columns, "<collection>.<var>.npy" files are per-object matrices.
func LoadSampleDir(dir, name string) (*Sample, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "sample %q", name)
	}
	sample := NewSample(name)
	collections := make(map[string]*Collection)

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != npyExt {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		stem := strings.TrimSuffix(file, npyExt)
		path := filepath.Join(dir, file)
		if collName, varName, found := strings.Cut(stem, "."); found {
			values, err := ReadMatrixNpy(path)
			if err != nil {
				return nil, err
			}
			coll, ok := collections[collName]
			if !ok {
				coll = NewCollection(collName)
				collections[collName] = coll
			}
			if err := coll.AddVar(varName, values); err != nil {
				return nil, err
			}
			continue
		}
		values, err := ReadColumnNpy(path)
		if err != nil {
			return nil, err
		}
		if err := sample.AddColumn(stem, values); err != nil {
			return nil, err
		}
	}

	for _, coll := range collections {
		if err := sample.AddCollection(coll); err != nil {
			return nil, err
		}
	}
	log.Debug().Str("sample", name).Int("events", sample.Len()).Int("columns", len(sample.order)).Msg("sample loaded")
	return sample, nil
}

//LoadSamples loads the named samples found under root concurrently.
//Samples without a directory are reported and skipped.
func LoadSamples(ctx context.Context, root string, names []string, workers int) (map[string]*Sample, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]*Sample, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			dir := filepath.Join(root, name)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				log.Warn().Str("sample", name).Str("root", root).Msg("sample not found")
				return nil
			}
			sample, err := LoadSampleDir(dir, name)
			if err != nil {
				return err
			}
			results[i] = sample
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*Sample, len(names))
	for _, sample := range results {
		if sample != nil {
			out[sample.Name] = sample
		}
	}
	return out, nil
}

//WriteSampleDir writes every flat column of a sample into dir.
func WriteSampleDir(dir string, sample *Sample) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	for _, name := range sample.order {
		if err := WriteNpy(filepath.Join(dir, name+npyExt), sample.columns[name]); err != nil {
			return err
		}
	}
	return nil
}

//ReadCSV reads a header line followed by rows of floats into a sample.
func ReadCSV(r io.Reader, name string) (*Sample, error) {
	reader := csv.NewReader(r)
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(rows) == 0 {
		return nil, errors.New("csv is empty")
	}
	header := rows[0]
	columns := make([][]float64, len(header))
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) != len(header) {
			return nil, errors.Errorf("csv row %d has %d fields, expected %d", i, len(rows[i]), len(header))
		}
		for j, field := range rows[i] {
			val, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parse %s in row %d", header[j], i)
			}
			columns[j] = append(columns[j], val)
		}
	}
	sample := NewSample(name)
	for j, col := range header {
		values := columns[j]
		if values == nil {
			values = []float64{}
		}
		if err := sample.AddColumn(strings.TrimSpace(col), values); err != nil {
			return nil, err
		}
	}
	return sample, nil
}
