package fourier

import (
	"fmt"

	"github.com/cwbudde/algo-pk/cosmo"
)

// Indices assigns table indices to spectrum types and initial-condition
// pairs. It never changes after [New].
type Indices struct {
	// Matter and ColdBaryon are the table indices of each type, -1 when absent.
	Matter     int
	ColdBaryon int
	// Total is the canonical total-matter index; Cluster is the clustering
	// reference, falling back to Total without a cb spectrum.
	Total   int
	Cluster int
	// Size is the number of spectrum types.
	Size int

	ICSize   int
	PairSize int
	// NonZero marks pairs whose primordial cross-spectrum is non-zero for
	// at least one native wavenumber. Diagonal pairs are always set.
	NonZero []bool
}

// Pair returns the symmetric index of (ic1, ic2).
func (ix Indices) Pair(ic1, ic2 int) int {
	return cosmo.PairIndex(ic1, ic2, ix.ICSize)
}

// Index returns the table index of t.
func (ix Indices) Index(t cosmo.SpectrumType) (int, bool) {
	switch t {
	case cosmo.Matter:
		return ix.Matter, ix.Matter >= 0
	case cosmo.ColdBaryon:
		return ix.ColdBaryon, ix.ColdBaryon >= 0
	default:
		return -1, false
	}
}

// Type returns the spectrum type stored at index i.
func (ix Indices) Type(i int) cosmo.SpectrumType {
	if i == ix.ColdBaryon {
		return cosmo.ColdBaryon
	}
	return cosmo.Matter
}

func buildIndices(cfg Config, pt cosmo.Perturbations, pm cosmo.Primordial) (Indices, error) {
	ix := Indices{Matter: -1, ColdBaryon: -1}

	if cfg.HasPkM {
		ix.Matter = ix.Size
		ix.Size++
	}
	if cfg.HasPkCB && pt.HasColdBaryon() {
		ix.ColdBaryon = ix.Size
		ix.Size++
	}
	if ix.Size == 0 {
		return Indices{}, ErrNoSpectrumType
	}

	ix.Total = ix.Matter
	if ix.Total < 0 {
		ix.Total = ix.ColdBaryon
	}
	ix.Cluster = ix.ColdBaryon
	if ix.Cluster < 0 {
		ix.Cluster = ix.Total
	}

	ix.ICSize = pt.ICs()
	if ix.ICSize <= 0 {
		return Indices{}, ErrNoInitialConditions
	}
	ix.PairSize = cosmo.PairCount(ix.ICSize)
	ix.NonZero = make([]bool, ix.PairSize)

	prim := make([]float64, ix.PairSize)
	for _, k := range pt.K() {
		if err := pm.Spectrum(k, prim); err != nil {
			return Indices{}, fmt.Errorf("fourier: primordial spectrum at k=%g: %w", k, err)
		}
		for i := 0; i < ix.ICSize; i++ {
			for j := i; j < ix.ICSize; j++ {
				p := ix.Pair(i, j)
				if i == j || prim[p] != 0 {
					ix.NonZero[p] = true
				}
			}
		}
	}

	return ix, nil
}
