package analysis

import "gonum.org/v1/gonum/integrate"

// BandPower integrates the density of psd over the bins with
// band.Low <= f <= band.High. Fewer than two bins integrate to 0.
func BandPower(band Band, psd PSD) float64 {
	var freqs, density []float64
	for i, f := range psd.Frequencies {
		if f >= band.Low && f <= band.High && i < len(psd.Density) {
			freqs = append(freqs, f)
			density = append(density, psd.Density[i])
		}
	}
	if len(freqs) < 2 {
		return 0
	}
	return integrate.Trapezoidal(freqs, density)
}

// AggregateBandPowers computes every band's power on both channels and keeps
// the mean of the two.
func AggregateBandPowers(bands []Band, psd1, psd2 PSD) BandPowers {
	out := make(BandPowers, len(bands))
	for _, b := range bands {
		out[b.Name] = (BandPower(b, psd1) + BandPower(b, psd2)) / 2
	}
	return out
}
