// Package model holds the ridge regressors behind driver and constructor
// predictions: fitting, scoring, evaluation and the JSON artifacts that carry
// them from training to serving.
package model

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/f1predict/f1predict/internal/errors"
)

// DefaultLambda is the ridge penalty used when none is configured.
const DefaultLambda = 1.0

// Cholesky retries with this jitter when the penalized Gram matrix is not
// positive definite.
const choleskyJitter = 1e-6

// Scaler standardizes numeric columns; columns without an entry pass through.
type Scaler struct {
	Mean  map[string]float64 `json:"mean"`
	Scale map[string]float64 `json:"scale"`
}

// Regressor is a fitted linear model over a fixed feature list.
type Regressor struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Target       string    `json:"target"`
	Features     []string  `json:"features"`
	Scaler       Scaler    `json:"scaler"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	Lambda       float64   `json:"lambda"`
	Samples      int       `json:"samples"`
	TrainedAt    time.Time `json:"trained_at"`
}

// Predict scores one feature vector laid out in Features order.
func (r *Regressor) Predict(x []float64) (float64, error) {
	if len(x) != len(r.Features) {
		return 0, errors.Newf("feature vector has %d values, model %q expects %d", len(x), r.Name, len(r.Features)).
			Component("model").
			Category(errors.CategoryModelPredict).
			Build()
	}
	score := r.Intercept
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, errors.Newf("feature %s is not finite", r.Features[i]).
				Component("model").
				Category(errors.CategoryModelPredict).
				Context("model", r.Name).
				Build()
		}
		score += r.Coefficients[i] * r.scale(r.Features[i], v)
	}
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return 0, errors.Newf("model %q produced a non-finite score", r.Name).
			Component("model").
			Category(errors.CategoryModelPredict).
			Build()
	}
	return score, nil
}

func (r *Regressor) scale(feature string, v float64) float64 {
	mean, ok := r.Scaler.Mean[feature]
	if !ok {
		return v
	}
	s := r.Scaler.Scale[feature]
	if s == 0 {
		s = 1
	}
	return (v - mean) / s
}

// validate checks a decoded or freshly fitted model is usable.
func (r *Regressor) validate() error {
	if len(r.Features) == 0 {
		return errors.Newf("model %q has no features", r.Name).
			Component("model").Category(errors.CategoryModelLoad).Build()
	}
	if len(r.Coefficients) != len(r.Features) {
		return errors.Newf("model %q has %d coefficients for %d features", r.Name, len(r.Coefficients), len(r.Features)).
			Component("model").Category(errors.CategoryModelLoad).Build()
	}
	values := append([]float64{r.Intercept}, r.Coefficients...)
	for _, m := range []map[string]float64{r.Scaler.Mean, r.Scaler.Scale} {
		for _, v := range m {
			values = append(values, v)
		}
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.Newf("model %q has non-finite parameters", r.Name).
				Component("model").Category(errors.CategoryModelLoad).Build()
		}
	}
	return nil
}

// FitOptions describe the model being fitted.
type FitOptions struct {
	Name    string
	Version string
	Target  string
	Numeric []string // columns to standardize
	Lambda  float64  // ridge penalty, intercept is not penalized
}

// Fit solves the ridge problem (ZᵀZ + λI)β = Zᵀy on centered data, where Z is
// X with the numeric columns standardized.
func Fit(x [][]float64, y []float64, features []string, opts FitOptions) (*Regressor, error) {
	n, p := len(x), len(features)
	if n == 0 || n != len(y) {
		return nil, fitError("need matching non-empty X and y, got %d rows and %d targets", n, len(y))
	}
	for i, row := range x {
		if len(row) != p {
			return nil, fitError("row %d has %d values, expected %d", i, len(row), p)
		}
	}
	lambda := opts.Lambda
	if lambda < 0 {
		return nil, fitError("negative lambda %g", lambda)
	}

	r := &Regressor{
		Name:      opts.Name,
		Version:   opts.Version,
		Target:    opts.Target,
		Features:  append([]string(nil), features...),
		Scaler:    Scaler{Mean: map[string]float64{}, Scale: map[string]float64{}},
		Lambda:    lambda,
		Samples:   n,
		TrainedAt: time.Now().UTC(),
	}

	index := make(map[string]int, p)
	for j, f := range features {
		index[f] = j
	}
	col := make([]float64, n)
	for _, name := range opts.Numeric {
		j, ok := index[name]
		if !ok {
			continue
		}
		for i := range x {
			col[i] = x[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		r.Scaler.Mean[name] = mean
		r.Scaler.Scale[name] = std
	}

	z := mat.NewDense(n, p, nil)
	for i, row := range x {
		for j, v := range row {
			z.Set(i, j, r.scale(features[j], v))
		}
	}

	// Center so the intercept drops out of the penalized system.
	zMean := make([]float64, p)
	for j := range p {
		zMean[j] = stat.Mean(mat.Col(nil, j, z), nil)
	}
	yMean := stat.Mean(y, nil)
	for i := range n {
		for j := range p {
			z.Set(i, j, z.At(i, j)-zMean[j])
		}
	}
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	var gram mat.SymDense
	gram.SymOuterK(1, z.T())
	var zty mat.VecDense
	zty.MulVec(z.T(), yc)

	beta, err := solveRidge(&gram, &zty, lambda)
	if err != nil {
		return nil, err
	}

	r.Coefficients = make([]float64, p)
	r.Intercept = yMean
	for j := range p {
		r.Coefficients[j] = beta.AtVec(j)
		r.Intercept -= beta.AtVec(j) * zMean[j]
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func solveRidge(gram *mat.SymDense, rhs *mat.VecDense, lambda float64) (*mat.VecDense, error) {
	p := gram.SymmetricDim()
	for _, extra := range []float64{0, choleskyJitter} {
		a := mat.NewSymDense(p, nil)
		a.CopySym(gram)
		for j := range p {
			a.SetSym(j, j, a.At(j, j)+lambda+extra)
		}
		var chol mat.Cholesky
		if !chol.Factorize(a) {
			continue
		}
		var beta mat.VecDense
		if err := chol.SolveVecTo(&beta, rhs); err != nil {
			continue
		}
		return &beta, nil
	}
	return nil, fitError("normal equations are singular (lambda %g)", lambda)
}

func fitError(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("model").
		Category(errors.CategoryProcessing).
		Context("operation", "fit").
		Build()
}

// Metrics summarize a model's fit on held-out data.
type Metrics struct {
	Model   string    `json:"model"`
	MAE     float64   `json:"mae"`
	RMSE    float64   `json:"rmse"`
	R2      float64   `json:"r2"`
	Samples int       `json:"samples"`
	Train   int       `json:"train_samples"`
	At      time.Time `json:"evaluated_at"`
}

// Evaluate scores r on X and reports error metrics against y.
func Evaluate(r *Regressor, x [][]float64, y []float64) (Metrics, error) {
	if len(x) != len(y) {
		return Metrics{}, fitError("evaluate: %d rows and %d targets", len(x), len(y))
	}
	m := Metrics{Model: r.Name, Samples: len(y), Train: r.Samples, At: time.Now().UTC()}
	if len(y) == 0 {
		return m, nil
	}

	pred := make([]float64, len(y))
	var absSum, sqSum float64
	for i, row := range x {
		p, err := r.Predict(row)
		if err != nil {
			return Metrics{}, err
		}
		pred[i] = p
		d := p - y[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}
	n := float64(len(y))
	m.MAE = absSum / n
	m.RMSE = math.Sqrt(sqSum / n)
	if stat.Variance(y, nil) > 0 {
		m.R2 = stat.RSquaredFrom(pred, y, nil)
	}
	return m, nil
}
