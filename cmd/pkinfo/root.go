package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pk/cosmo"
	"github.com/cwbudde/algo-pk/fourier"
	"github.com/cwbudde/algo-pk/internal/config"
	"github.com/cwbudde/algo-pk/internal/fiducial"
)

// app holds the global flags shared by every subcommand.
type app struct {
	cfgFile string
	verbose int
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "pkinfo",
		Short: "Matter power spectra for a fiducial cosmology",
		Long: `pkinfo builds linear and nonlinear matter power spectrum tables for a
flat w0waCDM cosmology with synthetic transfer functions, then answers
queries on them.

Settings come from the defaults, an optional YAML file (--config) and
PKINFO_<SECTION>_<KEY> environment variables, in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "run description file (YAML)")
	root.PersistentFlags().CountVarP(&a.verbose, "verbose", "v", "log engine progress (-v info, -vv debug)")

	root.AddCommand(
		newPkCmd(a),
		newSigmaCmd(a),
		newKNLCmd(a),
		newExportCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) load() (*config.Config, error) {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return nil, err
	}
	if a.verbose > 0 {
		cfg.Fourier.Verbose = a.verbose
	}
	return cfg, nil
}

// engine builds the fiducial collaborators of cfg and the engine on them.
func (a *app) engine(cmd *cobra.Command, cfg *config.Config) (*fourier.Engine, error) {
	ec, err := cfg.Engine()
	if err != nil {
		return nil, err
	}

	c, ptc, pmc := cfg.Fiducial()
	bg, err := fiducial.NewBackground(c, 0)
	if err != nil {
		return nil, err
	}
	pt, err := fiducial.NewPerturbations(bg, ptc)
	if err != nil {
		return nil, err
	}
	pm, err := fiducial.NewPrimordial(pmc, pt.ICs())
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		ReportTimestamp: true,
		Prefix:          "pkinfo",
	})
	return fourier.New(bg, pt, pm, ec, fourier.WithLogger(logger))
}

// withEngine loads the configuration, builds the engine and runs fn on it.
func (a *app) withEngine(cmd *cobra.Command, fn func(*fourier.Engine) error) error {
	cfg, err := a.load()
	if err != nil {
		return err
	}
	e, err := a.engine(cmd, cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(e)
}

func parseSelection(name string) (fourier.Selection, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "m", "matter":
		return fourier.SelectMatter, nil
	case "cb":
		return fourier.SelectColdBaryon, nil
	case "both":
		return fourier.SelectBoth, nil
	default:
		return 0, fmt.Errorf("unknown spectrum selection %q (m, cb, both)", name)
	}
}

func parseType(name string) (cosmo.SpectrumType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "m", "matter":
		return cosmo.Matter, nil
	case "cb":
		return cosmo.ColdBaryon, nil
	default:
		return 0, fmt.Errorf("unknown spectrum type %q (m, cb)", name)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
