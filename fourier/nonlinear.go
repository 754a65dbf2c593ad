package fourier

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-pk/pk/core"
	"github.com/cwbudde/algo-pk/pk/interp"
	"github.com/cwbudde/algo-pk/pk/nonlinear"
	"github.com/cwbudde/algo-pk/pk/table"
)

// applyNonlinear runs the strategy from the latest time backwards. The
// first time in the linear regime ends the loop; it and all earlier times
// keep a correction of exactly one.
func (e *Engine) applyNonlinear() error {
	nTau := len(e.grid.lnTau)
	e.indexTauMinNL = nTau
	if e.strategy == nil {
		return nil
	}

	nk := e.grid.kSize
	minNL := 0
	for _, s := range e.spectra {
		var err error
		if s.corr, err = table.New(nTau, nk, 1); err != nil {
			return err
		}
		if s.lnPkNL, err = table.New(nTau, nk, 1); err != nil {
			return err
		}
		s.kNL = make([]float64, nTau)

		first, err := e.correctType(s)
		if err != nil {
			return err
		}
		minNL = max(minNL, first)
	}

	// A time is nonlinear only if every type found a nonlinear scale.
	e.indexTauMinNL = minNL
	for _, s := range e.spectra {
		for r := 0; r < nTau; r++ {
			lin := s.lnPk.Slab(r)[:nk]
			corr := s.corr.Slab(r)
			nl := s.lnPkNL.Slab(r)
			if r < minNL {
				core.Fill(corr, 1)
				copy(nl, lin)
				s.kNL[r] = 0
				continue
			}
			for i := range nl {
				nl[i] = lin[i] + 2*math.Log(corr[i])
			}
		}

		if err := s.lnPkNL.SplineTime(e.grid.lnTau); err != nil {
			return typedError("spline nonlinear spectrum", s.typ, 0, err)
		}
		if err := e.splineKNL(s); err != nil {
			return err
		}
	}

	e.logger.Info("nonlinear correction done",
		"method", e.strategy.Method(), "index_tau_min_nl", minNL, "tau_size", nTau)
	return nil
}

// correctType fills the correction of s and returns the first corrected row.
func (e *Engine) correctType(s *spectrumTables) (int, error) {
	nTau := len(e.grid.lnTau)
	var nw []float64

	for r := nTau - 1; r >= 0; r-- {
		tau := math.Exp(e.grid.lnTau[r])
		state, err := e.bg.At(tau)
		if err != nil {
			return 0, typedError("background", s.typ, tau, err)
		}

		if e.lnPkNW != nil {
			nw = e.lnPkNW.Slab(r)
		}
		in := nonlinear.Input{
			LnK:          e.grid.lnK,
			LnPk:         s.lnPk.Slab(r),
			LnPkNoWiggle: nw,
			KSize:        e.grid.kSize,
			State:        state,
			Params:       e.params,
		}

		kNL, err := e.strategy.Correct(in, s.corr.Slab(r))
		if isLinearRegime(err) {
			e.logger.Debug("linear regime reached", "type", s.typ, "z", state.Z)
			return r + 1, nil
		}
		if err != nil {
			return 0, typedError("nonlinear correction", s.typ, tau, err)
		}
		s.kNL[r] = kNL
	}

	return 0, nil
}

func (e *Engine) splineKNL(s *spectrumTables) error {
	lnTau := e.grid.lnTau[e.indexTauMinNL:]
	kNL := s.kNL[e.indexTauMinNL:]
	if len(lnTau) < 2 {
		return nil
	}

	var err error
	if s.kNLSpline, err = interp.NewSpline(lnTau, kNL); err != nil {
		return typedError("spline k_nl", s.typ, 0, err)
	}
	return nil
}

// kNonlinear returns k_nl of s at lnTau.
func (e *Engine) kNonlinear(s *spectrumTables, lnTau float64) (float64, error) {
	if e.indexTauMinNL >= len(e.grid.lnTau) || lnTau < e.grid.lnTau[e.indexTauMinNL] {
		return 0, fmt.Errorf("%w: %w", ErrUnavailable, nonlinear.ErrLinearRegime)
	}
	if s.kNLSpline == nil {
		return s.kNL[e.indexTauMinNL], nil
	}
	return s.kNLSpline.At(lnTau)
}
