package feedback

import (
	"math/rand"
	"sort"

	"github.com/wonny/limitup/internal/contracts"
)

// Dataset is a dense feature matrix built from training samples.
// Features missing on a sample are 0.
type Dataset struct {
	Columns []string
	X       [][]float64
	Y       []int
}

// NewDataset lays out samples with the base features first, then extra factor columns sorted by name
func NewDataset(samples []contracts.TrainingSample) *Dataset {
	seen := make(map[string]bool)
	for _, s := range samples {
		for k := range s.Features {
			seen[k] = true
		}
	}

	cols := make([]string, 0, len(seen))
	for _, name := range contracts.FeatureNames {
		if seen[name] {
			cols = append(cols, name)
			delete(seen, name)
		}
	}
	extra := make([]string, 0, len(seen))
	for k := range seen {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	cols = append(cols, extra...)

	d := &Dataset{Columns: cols, X: make([][]float64, len(samples)), Y: make([]int, len(samples))}
	for i, s := range samples {
		row := make([]float64, len(cols))
		for j, c := range cols {
			row[j] = s.Features[c]
		}
		d.X[i] = row
		d.Y[i] = s.Label
	}
	return d
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Column returns one feature as a vector
func (d *Dataset) Column(j int) []float64 {
	out := make([]float64, len(d.X))
	for i, row := range d.X {
		out[i] = row[j]
	}
	return out
}

// Labels returns the labels as floats
func (d *Dataset) Labels() []float64 {
	out := make([]float64, len(d.Y))
	for i, y := range d.Y {
		out[i] = float64(y)
	}
	return out
}

// ClassCounts returns (positives, negatives)
func (d *Dataset) ClassCounts() (pos, neg int) {
	for _, y := range d.Y {
		if y == 1 {
			pos++
		} else {
			neg++
		}
	}
	return pos, neg
}

// Split shuffles rows with seed and holds out testSize of them
func (d *Dataset) Split(testSize float64, seed int64) (train, test *Dataset) {
	n := d.Len()
	nTest := int(float64(n) * testSize)
	if testSize <= 0 || nTest == 0 || nTest >= n {
		return d, &Dataset{Columns: d.Columns}
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	train = &Dataset{Columns: d.Columns}
	test = &Dataset{Columns: d.Columns}
	for k, i := range perm {
		target := train
		if k < nTest {
			target = test
		}
		target.X = append(target.X, d.X[i])
		target.Y = append(target.Y, d.Y[i])
	}
	return train, test
}
