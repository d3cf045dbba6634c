package errors

import "math"

// CheckNumericalStability checks if values contain NaN or Inf
// and returns an error if numerical instability is detected.
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}

// LogSumExp computes log(sum(exp(values))) in a numerically stable way.
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}

	maxVal := values[0]
	for _, v := range values[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	if math.IsInf(maxVal, -1) {
		return math.Inf(-1)
	}

	sum := 0.0
	for _, v := range values {
		sum += math.Exp(v - maxVal)
	}

	return maxVal + math.Log(sum)
}
