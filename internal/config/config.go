package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-pk/fourier"
	"github.com/cwbudde/algo-pk/internal/fiducial"
	"github.com/cwbudde/algo-pk/pk/extrap"
	"github.com/cwbudde/algo-pk/pk/nonlinear"
	"github.com/cwbudde/algo-pk/pk/window"
)

// EnvPrefix prefixes environment overrides, e.g. PKINFO_FOURIER_METHOD.
const EnvPrefix = "PKINFO"

// ErrInvalidConfig is wrapped by every name or value the loader rejects.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the on-disk run description: a fiducial cosmology and the
// engine settings.
type Config struct {
	Cosmology     Cosmology     `mapstructure:"cosmology" yaml:"cosmology"`
	Perturbations Perturbations `mapstructure:"perturbations" yaml:"perturbations"`
	Primordial    Primordial    `mapstructure:"primordial" yaml:"primordial"`
	Fourier       Fourier       `mapstructure:"fourier" yaml:"fourier"`
}

// Cosmology mirrors fiducial.Cosmology.
type Cosmology struct {
	H        float64 `mapstructure:"h" yaml:"h"`
	OmegaB   float64 `mapstructure:"omega_b" yaml:"omega_b"`
	OmegaCDM float64 `mapstructure:"omega_cdm" yaml:"omega_cdm"`
	OmegaNu  float64 `mapstructure:"omega_nu" yaml:"omega_nu"`
	NuMassEV float64 `mapstructure:"m_nu" yaml:"m_nu"`
	TCMB     float64 `mapstructure:"t_cmb" yaml:"t_cmb"`
	W0       float64 `mapstructure:"w0" yaml:"w0"`
	Wa       float64 `mapstructure:"wa" yaml:"wa"`
	NEff     float64 `mapstructure:"n_eff" yaml:"n_eff"`
}

// Perturbations mirrors fiducial.PerturbationConfig.
type Perturbations struct {
	KMin       float64 `mapstructure:"k_min" yaml:"k_min"`
	KMax       float64 `mapstructure:"k_max" yaml:"k_max"`
	KPoints    int     `mapstructure:"k_points" yaml:"k_points"`
	ZMax       float64 `mapstructure:"z_max" yaml:"z_max"`
	TauPoints  int     `mapstructure:"tau_points" yaml:"tau_points"`
	ICs        int     `mapstructure:"ics" yaml:"ics"`
	BAO        bool    `mapstructure:"bao" yaml:"bao"`
	ColdBaryon bool    `mapstructure:"cold_baryon" yaml:"cold_baryon"`
}

// Primordial mirrors fiducial.PrimordialConfig.
type Primordial struct {
	As          float64   `mapstructure:"a_s" yaml:"a_s"`
	Ns          float64   `mapstructure:"n_s" yaml:"n_s"`
	KPivot      float64   `mapstructure:"k_pivot" yaml:"k_pivot"`
	Ratios      []float64 `mapstructure:"ratios" yaml:"ratios,omitempty"`
	Correlation float64   `mapstructure:"correlation" yaml:"correlation"`
}

// Fourier holds the engine settings with enumerations spelled by name.
type Fourier struct {
	HasPkM          bool    `mapstructure:"pk_m" yaml:"pk_m"`
	HasPkCB         bool    `mapstructure:"pk_cb" yaml:"pk_cb"`
	ZMaxPk          float64 `mapstructure:"z_max_pk" yaml:"z_max_pk"`
	Method          string  `mapstructure:"method" yaml:"method"`
	Extrapolation   string  `mapstructure:"extrapolation" yaml:"extrapolation"`
	KMaxExtra       float64 `mapstructure:"k_max_extra" yaml:"k_max_extra"`
	KPerDecadeExtra float64 `mapstructure:"k_per_decade_extra" yaml:"k_per_decade_extra"`

	SigmaWindow     string  `mapstructure:"sigma_window" yaml:"sigma_window"`
	SigmaKPerDecade float64 `mapstructure:"sigma_k_per_decade" yaml:"sigma_k_per_decade"`
	SigmaRelTol     float64 `mapstructure:"sigma_rel_tol" yaml:"sigma_rel_tol"`

	AnalyticNoWiggle  bool    `mapstructure:"analytic_nowiggle" yaml:"analytic_nowiggle"`
	NumericalNoWiggle bool    `mapstructure:"numerical_nowiggle" yaml:"numerical_nowiggle"`
	NoWiggleOrder     int     `mapstructure:"nowiggle_order" yaml:"nowiggle_order"`
	NoWiggleSamples   int     `mapstructure:"nowiggle_samples" yaml:"nowiggle_samples"`
	NoWiggleWidth     float64 `mapstructure:"nowiggle_width" yaml:"nowiggle_width"`

	PkEq        bool `mapstructure:"pk_eq" yaml:"pk_eq"`
	PkEqTauSize int  `mapstructure:"pk_eq_tau_size" yaml:"pk_eq_tau_size"`

	HMcodeVersion  string  `mapstructure:"hmcode_version" yaml:"hmcode_version"`
	HMcodeFeedback string  `mapstructure:"hmcode_feedback" yaml:"hmcode_feedback"`
	HMcodeCMin     float64 `mapstructure:"hmcode_c_min" yaml:"hmcode_c_min"`
	HMcodeEta0     float64 `mapstructure:"hmcode_eta_0" yaml:"hmcode_eta_0"`
	// HMcodeLog10THeat is read by hmcode_version 2020_baryonic only.
	HMcodeLog10THeat float64 `mapstructure:"hmcode_log10_t_heat" yaml:"hmcode_log10_t_heat"`

	TiltStep float64 `mapstructure:"tilt_step" yaml:"tilt_step"`
	Workers  int     `mapstructure:"workers" yaml:"workers"`
	Verbose  int     `mapstructure:"verbose" yaml:"verbose"`
}

// DefaultConfig returns the Planck cosmology with the engine defaults.
func DefaultConfig() Config {
	c := fiducial.Planck()
	pt := fiducial.DefaultPerturbationConfig()
	pm := fiducial.DefaultPrimordialConfig()
	f := fourier.DefaultConfig()

	return Config{
		Cosmology: Cosmology{
			H: c.H, OmegaB: c.OmegaB, OmegaCDM: c.OmegaCDM, OmegaNu: c.OmegaNu,
			NuMassEV: c.NuMassEV, TCMB: c.TCMB, W0: c.W0, Wa: c.Wa, NEff: c.NEff,
		},
		Perturbations: Perturbations{
			KMin: pt.KMin, KMax: pt.KMax, KPoints: pt.KPoints,
			ZMax: pt.ZMax, TauPoints: pt.TauPoints, ICs: pt.ICs,
			BAO: pt.BAO, ColdBaryon: pt.ColdBaryon,
		},
		Primordial: Primordial{As: pm.As, Ns: pm.Ns, KPivot: pm.KPivot},
		Fourier: Fourier{
			HasPkM:            f.HasPkM,
			HasPkCB:           f.HasPkCB,
			ZMaxPk:            f.ZMaxPk,
			Method:            f.Method.String(),
			Extrapolation:     f.Extrapolation.String(),
			KMaxExtra:         f.KMaxExtra,
			KPerDecadeExtra:   f.KPerDecadeExtra,
			SigmaWindow:       f.Sigma.Window.String(),
			SigmaKPerDecade:   f.Sigma.KPerDecade,
			SigmaRelTol:       f.Sigma.RelTol,
			NoWiggleOrder:     f.NoWiggleOrder,
			NoWiggleSamples:   f.NoWiggleFilter.Samples,
			NoWiggleWidth:     f.NoWiggleFilter.Width,
			PkEqTauSize:       f.PkEqTauSize,
			HMcodeVersion:     f.HMcode.Version.String(),
			HMcodeFeedback:    f.HMcode.Feedback.String(),
			HMcodeCMin:        f.HMcode.CMin,
			HMcodeEta0:        f.HMcode.Eta0,
			HMcodeLog10THeat:  f.HMcode.Log10THeat,
			TiltStep:          f.TiltStep,
			Workers:           f.Workers,
			Verbose:           f.Verbose,
			AnalyticNoWiggle:  f.AnalyticNoWiggle,
			NumericalNoWiggle: f.NumericalNoWiggle,
		},
	}
}

// Load reads the defaults, then the file at path (if not empty), then
// PKINFO_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("encode defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("read defaults: %w", err)
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Engine converts the fourier section into an engine configuration.
func (c Config) Engine() (fourier.Config, error) {
	f := c.Fourier
	out := fourier.DefaultConfig()
	out.HasPkM = f.HasPkM
	out.HasPkCB = f.HasPkCB
	out.ZMaxPk = f.ZMaxPk
	out.KMaxExtra = f.KMaxExtra
	out.KPerDecadeExtra = f.KPerDecadeExtra
	out.AnalyticNoWiggle = f.AnalyticNoWiggle
	out.NumericalNoWiggle = f.NumericalNoWiggle
	out.NoWiggleOrder = f.NoWiggleOrder
	out.NoWiggleFilter.Samples = f.NoWiggleSamples
	out.NoWiggleFilter.Width = f.NoWiggleWidth
	out.PkEq = f.PkEq
	out.PkEqTauSize = f.PkEqTauSize
	out.HMcode.CMin = f.HMcodeCMin
	out.HMcode.Eta0 = f.HMcodeEta0
	out.HMcode.Log10THeat = f.HMcodeLog10THeat
	out.Sigma.KPerDecade = f.SigmaKPerDecade
	out.Sigma.RelTol = f.SigmaRelTol
	out.TiltStep = f.TiltStep
	out.Workers = f.Workers
	out.Verbose = f.Verbose

	var err error
	if out.Method, err = nonlinear.ParseMethod(f.Method); err != nil {
		return fourier.Config{}, fmt.Errorf("%w: fourier.method: %w", ErrInvalidConfig, err)
	}
	if out.Extrapolation, err = extrap.ParseKind(f.Extrapolation); err != nil {
		return fourier.Config{}, fmt.Errorf("%w: fourier.extrapolation: %w", ErrInvalidConfig, err)
	}
	if out.Extrapolation == extrap.UserDefined {
		return fourier.Config{}, fmt.Errorf("%w: fourier.extrapolation: %s needs a programmatic policy", ErrInvalidConfig, out.Extrapolation)
	}
	if out.Sigma.Window, err = window.Parse(f.SigmaWindow); err != nil {
		return fourier.Config{}, fmt.Errorf("%w: fourier.sigma_window: %w", ErrInvalidConfig, err)
	}
	if out.HMcode.Version, err = nonlinear.ParseHMcodeVersion(f.HMcodeVersion); err != nil {
		return fourier.Config{}, fmt.Errorf("%w: fourier.hmcode_version: %w", ErrInvalidConfig, err)
	}
	if out.HMcode.Feedback, err = nonlinear.ParseFeedback(f.HMcodeFeedback); err != nil {
		return fourier.Config{}, fmt.Errorf("%w: fourier.hmcode_feedback: %w", ErrInvalidConfig, err)
	}

	if err := out.Validate(); err != nil {
		return fourier.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return out, nil
}

// Fiducial returns the cosmology, perturbation and primordial settings.
func (c Config) Fiducial() (fiducial.Cosmology, fiducial.PerturbationConfig, fiducial.PrimordialConfig) {
	cs, pt, pm := c.Cosmology, c.Perturbations, c.Primordial
	return fiducial.Cosmology{
			H: cs.H, OmegaB: cs.OmegaB, OmegaCDM: cs.OmegaCDM, OmegaNu: cs.OmegaNu,
			NuMassEV: cs.NuMassEV, TCMB: cs.TCMB, W0: cs.W0, Wa: cs.Wa, NEff: cs.NEff,
		},
		fiducial.PerturbationConfig{
			KMin: pt.KMin, KMax: pt.KMax, KPoints: pt.KPoints,
			ZMax: pt.ZMax, TauPoints: pt.TauPoints, ICs: pt.ICs,
			BAO: pt.BAO, ColdBaryon: pt.ColdBaryon,
		},
		fiducial.PrimordialConfig{
			As: pm.As, Ns: pm.Ns, KPivot: pm.KPivot,
			Ratios: pm.Ratios, Correlation: pm.Correlation,
		}
}
