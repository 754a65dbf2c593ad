package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-pk/fourier"
	"github.com/cwbudde/algo-pk/internal/config"
	"github.com/cwbudde/algo-pk/internal/export"
	"github.com/cwbudde/algo-pk/measure/sigma"
)

func newPkCmd(a *app) *cobra.Command {
	var (
		zs     []float64
		ks     []float64
		output string
		sel    string
	)
	cmd := &cobra.Command{
		Use:   "pk",
		Short: "Print P(k) [Mpc^3] at the requested redshifts",
		Long: `Print P(k) at each redshift. Without --k the native wavenumber grid is
used; with --k the spectrum is interpolated, extrapolated below the
smallest tabulated k and read from the extended tail above the largest.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out, err := fourier.ParseOutput(output)
			if err != nil {
				return err
			}
			s, err := parseSelection(sel)
			if err != nil {
				return err
			}

			return a.withEngine(cmd, func(e *fourier.Engine) error {
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintf(tw, "z\ttype\tk [1/Mpc]\tP [Mpc^3]\n")

				if len(ks) > 0 {
					grids, err := e.PkAtKZVec(out, ks, zs, s)
					if err != nil {
						return err
					}
					for _, g := range grids {
						for iz, z := range zs {
							for ik, k := range ks {
								fmt.Fprintf(tw, "%g\t%s\t%.6e\t%.6e\n", z, g.Type, k, g.Values[iz][ik])
							}
						}
					}
					return tw.Flush()
				}

				k := e.K()
				for _, z := range zs {
					spectra, err := e.PkAtZ(out, z, s, fourier.LinearScale)
					if err != nil {
						return err
					}
					for _, sp := range spectra {
						for i, p := range sp.Values {
							fmt.Fprintf(tw, "%g\t%s\t%.6e\t%.6e\n", z, sp.Type, k[i], p)
						}
					}
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Float64SliceVar(&zs, "z", []float64{0}, "redshifts")
	cmd.Flags().Float64SliceVar(&ks, "k", nil, "wavenumbers [1/Mpc]; default is the native grid")
	cmd.Flags().StringVar(&output, "output", fourier.Linear.String(), "linear, nonlinear, numerical_nowiggle or analytic_nowiggle")
	cmd.Flags().StringVar(&sel, "type", "m", "m, cb or both")
	return cmd
}

func newSigmaCmd(a *app) *cobra.Command {
	var (
		zs   []float64
		rs   []float64
		stat string
		typ  string
	)
	cmd := &cobra.Command{
		Use:   "sigma",
		Short: "Print smoothed linear statistics on radii R [Mpc]",
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := parseStatistic(stat)
			if err != nil {
				return err
			}
			t, err := parseType(typ)
			if err != nil {
				return err
			}

			return a.withEngine(cmd, func(e *fourier.Engine) error {
				s8, err := e.Sigma8(t)
				if err != nil {
					return err
				}
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintf(tw, "# sigma8 = %.5f\n", s8)
				fmt.Fprintf(tw, "z\tR [Mpc]\t%s\n", o)
				for _, z := range zs {
					for _, r := range rs {
						v, err := e.Sigma(r, z, t, o)
						if err != nil {
							return err
						}
						fmt.Fprintf(tw, "%g\t%g\t%.6e\n", z, r, v)
					}
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Float64SliceVar(&zs, "z", []float64{0}, "redshifts")
	cmd.Flags().Float64SliceVar(&rs, "r", []float64{8}, "radii [Mpc]")
	cmd.Flags().StringVar(&stat, "stat", sigma.Sigma.String(), "sigma, sigma_prime or sigma_disp")
	cmd.Flags().StringVar(&typ, "type", "m", "m or cb")
	return cmd
}

func parseStatistic(name string) (sigma.Output, error) {
	for _, o := range []sigma.Output{sigma.Sigma, sigma.SigmaPrime, sigma.SigmaDisp} {
		if o.String() == name {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown statistic %q (sigma, sigma_prime, sigma_disp)", name)
}

func newKNLCmd(a *app) *cobra.Command {
	var zs []float64
	cmd := &cobra.Command{
		Use:   "knl",
		Short: "Print the nonlinear wavenumber of the total and cb spectra",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withEngine(cmd, func(e *fourier.Engine) error {
				tw := newTable(cmd.OutOrStdout())
				fmt.Fprintf(tw, "z\tk_nl [1/Mpc]\tk_nl_cb [1/Mpc]\n")
				for _, z := range zs {
					m, cb, err := e.KNonlinear(z)
					if errors.Is(err, fourier.ErrUnavailable) && len(zs) > 1 {
						fmt.Fprintf(tw, "%g\tlinear\tlinear\n", z)
						continue
					}
					if err != nil {
						return err
					}
					fmt.Fprintf(tw, "%g\t%.6f\t%.6f\n", z, m, cb)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().Float64SliceVar(&zs, "z", []float64{0}, "redshifts")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		db      string
		zs      []float64
		rs      []float64
		outputs []string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Store spectra, sigma and k_nl of one run in a SQLite database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if db == "" {
				return errors.New("--db is required")
			}
			req := export.Request{Redshifts: zs, Radii: rs}
			for _, name := range outputs {
				o, err := fourier.ParseOutput(name)
				if err != nil {
					return err
				}
				req.Outputs = append(req.Outputs, o)
			}

			cfg, err := a.load()
			if err != nil {
				return err
			}
			text, err := config.Marshal(*cfg)
			if err != nil {
				return err
			}
			e, err := a.engine(cmd, cfg)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			store := export.NewStore(db)
			if err := store.Init(ctx); err != nil {
				return err
			}
			defer store.Close()

			run, err := store.CreateRun(ctx, cfg.Fourier.Method, string(text))
			if err != nil {
				return err
			}
			sum, err := export.Write(ctx, store, e, run.ID, req)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "run %s\n", run.ID)
			fmt.Fprintf(w, "pk rows: %d, sigma rows: %d, k_nl rows: %d\n", sum.Spectra, sum.Sigma, sum.KNL)
			for _, s := range sum.Skipped {
				fmt.Fprintf(w, "skipped %s (not computed)\n", s)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&db, "db", "", "SQLite database file")
	cmd.Flags().Float64SliceVar(&zs, "z", []float64{0}, "redshifts")
	cmd.Flags().Float64SliceVar(&rs, "r", []float64{8}, "radii [Mpc]")
	cmd.Flags().StringSliceVar(&outputs, "outputs", []string{"linear", "nonlinear"}, "spectra to store")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved run description as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.load()
			if err != nil {
				return err
			}
			if _, err := cfg.Engine(); err != nil {
				return err
			}
			text, err := config.Marshal(*cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(text)
			return err
		},
	}
}
