package export

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/fourier"
	"github.com/cwbudde/algo-pk/measure/sigma"
)

// Source is the part of *fourier.Engine an export reads.
type Source interface {
	K() []float64
	KSize() int
	PkAtZ(out fourier.Output, z float64, sel fourier.Selection, scale fourier.Scale) ([]fourier.Spectrum, error)
	Sigma(r, z float64, t cosmo.SpectrumType, o sigma.Output) (float64, error)
	KNonlinear(z float64) (float64, float64, error)
	Indices() fourier.Indices
}

// totalType is the spectrum type the engine holds for the total matter:
// P_m when computed, P_cb otherwise.
func totalType(idx fourier.Indices) cosmo.SpectrumType {
	if idx.Matter < 0 {
		return cosmo.ColdBaryon
	}
	return cosmo.Matter
}

// Request lists what to export.
type Request struct {
	Redshifts []float64
	Radii     []float64 // [Mpc]
	Outputs   []fourier.Output
	// Statistics defaults to sigma only.
	Statistics []sigma.Output
}

// Summary counts the rows written by Write.
type Summary struct {
	Spectra int
	Sigma   int
	KNL     int
	// Skipped lists outputs the engine did not compute.
	Skipped []string
}

// Write evaluates req on src and stores the results under runID. Outputs
// and nonlinear scales the engine cannot provide are skipped, not failed.
func Write(ctx context.Context, s *Store, src Source, runID string, req Request) (Summary, error) {
	var sum Summary
	k := src.K()[:src.KSize()]

	for _, out := range req.Outputs {
		var rows []SpectrumRow
		skipped := false
		for _, z := range req.Redshifts {
			spectra, err := src.PkAtZ(out, z, fourier.SelectBoth, fourier.LinearScale)
			if errors.Is(err, fourier.ErrUnavailable) {
				skipped = true
				break
			}
			if err != nil {
				return sum, fmt.Errorf("export: %s at z=%g: %w", out, z, err)
			}
			for _, sp := range spectra {
				for i, p := range sp.Values {
					rows = append(rows, SpectrumRow{Output: out.String(), Type: sp.Type.String(), Z: z, K: k[i], P: p})
				}
			}
		}
		if skipped {
			sum.Skipped = append(sum.Skipped, out.String())
			continue
		}
		if err := s.SaveSpectrum(ctx, runID, rows); err != nil {
			return sum, err
		}
		sum.Spectra += len(rows)
	}

	stats := req.Statistics
	if len(stats) == 0 {
		stats = []sigma.Output{sigma.Sigma}
	}
	total := totalType(src.Indices())
	var sigmaRows []SigmaRow
	for _, o := range stats {
		for _, z := range req.Redshifts {
			for _, r := range req.Radii {
				v, err := src.Sigma(r, z, total, o)
				if err != nil {
					return sum, fmt.Errorf("export: %s at z=%g R=%g: %w", o, z, r, err)
				}
				sigmaRows = append(sigmaRows, SigmaRow{Output: o.String(), Type: total.String(), Z: z, R: r, Value: v})
			}
		}
	}
	if err := s.SaveSigma(ctx, runID, sigmaRows); err != nil {
		return sum, err
	}
	sum.Sigma = len(sigmaRows)

	var knl []KNLRow
	for _, z := range req.Redshifts {
		m, cb, err := src.KNonlinear(z)
		if errors.Is(err, fourier.ErrUnavailable) {
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("export: k_nl at z=%g: %w", z, err)
		}
		knl = append(knl, KNLRow{Z: z, KNL: m, KNLCB: cb})
	}
	if err := s.SaveKNL(ctx, runID, knl); err != nil {
		return sum, err
	}
	sum.KNL = len(knl)

	return sum, nil
}
