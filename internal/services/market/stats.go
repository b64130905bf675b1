package market

import (
	"gonum.org/v1/gonum/stat"
)

// popMeanStd returns the population mean and standard deviation.
func popMeanStd(xs []float64) (mean, std float64) {
	return stat.PopMeanStdDev(xs, nil)
}
