package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithRCond sets the relative cutoff below which singular values are treated
// as zero when solving the least-squares problem.
func WithRCond(rcond float64) Option {
	return func(lr *LinearRegression) {
		lr.rcond = rcond
	}
}
