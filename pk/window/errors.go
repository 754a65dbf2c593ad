package window

import "fmt"

func validateGauss(sigma float64) error {
	if !(sigma > 0) || sigma > 1e6 {
		return fmt.Errorf("gauss sigma must be in (0, 1e6]: %f", sigma)
	}
	return nil
}
