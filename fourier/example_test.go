package fourier_test

import (
	"fmt"

	"github.com/cwbudde/algo-pk/fourier"
	"github.com/cwbudde/algo-pk/internal/fiducial"
)

func ExampleNew() {
	bg, err := fiducial.NewBackground(fiducial.Planck(), 0)
	if err != nil {
		panic(err)
	}
	pt, err := fiducial.NewPerturbations(bg, fiducial.DefaultPerturbationConfig())
	if err != nil {
		panic(err)
	}
	pm, err := fiducial.NewPrimordial(fiducial.DefaultPrimordialConfig(), pt.ICs())
	if err != nil {
		panic(err)
	}

	e, err := fourier.New(bg, pt, pm, fourier.DefaultConfig())
	if err != nil {
		panic(err)
	}
	defer e.Close()

	fmt.Println("native k:", e.KSize())
	fmt.Println("extended k:", len(e.K()))
	fmt.Println("times:", len(e.LnTau()))

	spectra, err := e.PkAtZ(fourier.Linear, 0.5, fourier.SelectBoth, fourier.LinearScale)
	if err != nil {
		panic(err)
	}
	fmt.Println("types:", len(spectra), spectra[0].Type)
	// Output:
	// native k: 200
	// extended k: 214
	// times: 40
	// types: 1 m
}
