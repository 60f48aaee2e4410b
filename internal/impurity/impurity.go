// Package impurity implements the classification and regression impurity
// measures used by the split optimizer: Gini, Shannon entropy,
// classification error, and the parametrized induced/Tsallis/Renyi entropy
// families, plus the regression variance proxy.
package impurity

import "math"

// EpsFeat is the feature-value tie tolerance: values closer than this are
// treated as equal.
const EpsFeat = 1e-7

// EpsGain is the minimum useful gain floor.
const EpsGain = 1e-7

// Measure evaluates the impurity of a class-weight histogram. total is the
// sum of weights represented by hist; by definition, a zero total weight
// has zero impurity.
type Measure interface {
	Evaluate(hist []float64, total float64) float64
	// DifferentialNormal returns the differential entropy of a multivariate
	// normal with the given (already log-transformed) covariance determinant
	// and dimension. Only Shannon-family measures implement this
	// meaningfully; others fall back to 0.
	DifferentialNormal(logDet float64, dim int) float64
}

// Shannon is entropy impurity: -sum p log2 p.
type Shannon struct{}

func (Shannon) Evaluate(hist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	e := 0.0
	for _, c := range hist {
		if c > 0 {
			p := c / total
			e -= p * math.Log2(p)
		}
	}
	return e
}

func (Shannon) DifferentialNormal(logDet float64, dim int) float64 {
	// h(X) = 1/2 log((2*pi*e)^dim * det(Sigma))
	return 0.5 * (float64(dim)*math.Log2(2*math.Pi*math.E) + logDet/math.Ln2)
}

// Gini is the Gini impurity: 1 - sum p^2 (Induced with P=2).
type Gini struct{}

func (Gini) Evaluate(hist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	g := 0.0
	for _, c := range hist {
		if c > 0 {
			p := c / total
			g += p * p
		}
	}
	return 1.0 - g
}

func (Gini) DifferentialNormal(float64, int) float64 { return 0 }

// ClassificationError is 1 - max(p): the (non-differentiable) Bayes error
// proxy.
type ClassificationError struct{}

func (ClassificationError) Evaluate(hist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	maxP := 0.0
	for _, c := range hist {
		if c > 0 {
			p := c / total
			if p > maxP {
				maxP = p
			}
		}
	}
	return 1.0 - maxP
}

func (ClassificationError) DifferentialNormal(float64, int) float64 { return 0 }

// Induced is the induced entropy family: 1 - sum p^P for integer-or-real P;
// P=2 reduces to Gini.
type Induced struct{ P float64 }

func (m Induced) Evaluate(hist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	s := 0.0
	for _, c := range hist {
		if c > 0 {
			p := c / total
			s += ipow(p, m.P)
		}
	}
	return 1.0 - s
}

func (Induced) DifferentialNormal(float64, int) float64 { return 0 }

// Tsallis is the Tsallis-q entropy: (1 - sum p^q) / (q - 1), converging to
// natural-log Shannon entropy as q -> 1.
type Tsallis struct{ Q float64 }

func (m Tsallis) Evaluate(hist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	if m.Q == 1 {
		return Shannon{}.Evaluate(hist, total) * math.Ln2
	}
	s := 0.0
	for _, c := range hist {
		if c > 0 {
			p := c / total
			s += ipow(p, m.Q)
		}
	}
	return (1.0 - s) / (m.Q - 1.0)
}

func (Tsallis) DifferentialNormal(float64, int) float64 { return 0 }

// Renyi is the Renyi-alpha entropy: log(sum p^alpha) / (1 - alpha),
// converging to natural-log Shannon entropy as alpha -> 1.
type Renyi struct{ Alpha float64 }

func (m Renyi) Evaluate(hist []float64, total float64) float64 {
	if total <= 0 {
		return 0
	}
	if m.Alpha == 1 {
		return Shannon{}.Evaluate(hist, total) * math.Ln2
	}
	s := 0.0
	for _, c := range hist {
		if c > 0 {
			p := c / total
			s += ipow(p, m.Alpha)
		}
	}
	if s <= 0 {
		return 0
	}
	return math.Log(s) / (1.0 - m.Alpha)
}

func (Renyi) DifferentialNormal(float64, int) float64 { return 0 }

// ipow takes a square-and-multiply path when exp is a small non-negative
// integer, falling back to math.Pow otherwise.
func ipow(base, exp float64) float64 {
	if exp == math.Trunc(exp) && exp >= 0 && exp < 64 {
		n := int(exp)
		r := 1.0
		b := base
		for n > 0 {
			if n&1 == 1 {
				r *= b
			}
			b *= b
			n >>= 1
		}
		return r
	}
	return math.Pow(base, exp)
}

// VarianceProxy computes the regression variance-proxy impurity directly
// from running sums: H = trace(sum y*y^T)/w - ||sum y||^2 / w^2, summed
// per output.
func VarianceProxy(sumY, sumYY []float64, totalWeight float64) float64 {
	if totalWeight <= 0 {
		return 0
	}
	h := 0.0
	for k := range sumY {
		mean := sumY[k] / totalWeight
		h += sumYY[k]/totalWeight - mean*mean
	}
	return h
}
