package render

import (
	"math"

	mandel "github.com/marben/histomandel"
)

// minRadiusSqr keeps the classic |z| = 2 boundary inside the escape circle.
const minRadiusSqr = 4

// Record is the escape measurement of one sample point.
type Record struct {
	// Iterations is in [1, MaxIterations]; MaxIterations means the point never escaped.
	Iterations int
	// Modulus is |z| when the loop stopped.
	Modulus float64
	// Smooth is the continuous escape value, >= 1.
	// Non-escaping points carry exactly MaxIterations.
	Smooth float64
}

// Evaluator runs the escape-time loop for a fixed iteration cap and radius.
type Evaluator struct {
	maxIter int
	rsqr    float64
	logR    float64
}

// NewEvaluator validates the parameters and floors the squared radius at 4.
func NewEvaluator(maxIterations int, escapeRadius float64) (*Evaluator, error) {
	p := mandel.Params{MaxIterations: maxIterations, EscapeRadius: escapeRadius}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	rsqr := math.Max(escapeRadius*escapeRadius, minRadiusSqr)
	return &Evaluator{
		maxIter: maxIterations,
		rsqr:    rsqr,
		logR:    0.5 * math.Log(rsqr),
	}, nil
}

func (e *Evaluator) MaxIterations() int { return e.maxIter }

// RadiusSqr is the effective squared escape radius.
func (e *Evaluator) RadiusSqr() float64 { return e.rsqr }

// Escape iterates z <- z² + c starting from z = c, iter = 1, while
// iter < MaxIterations and |z|² <= rsqr. A point exactly on the circle has
// not escaped yet.
func (e *Evaluator) Escape(c complex128) Record {
	cr, ci := real(c), imag(c)
	zr, zi := cr, ci
	// explicit conversions forbid fused multiply-add, keeping the loop
	// bit-identical to the plain (a²-b²) + 2abi recurrence.
	r2, i2 := float64(zr*zr), float64(zi*zi)
	iter := 1
	for iter < e.maxIter && r2+i2 <= e.rsqr {
		zi = float64(2*zr*zi) + ci
		zr = r2 - i2 + cr
		r2, i2 = float64(zr*zr), float64(zi*zi)
		iter++
	}

	rec := Record{Iterations: iter, Modulus: math.Sqrt(r2 + i2)}
	if iter < e.maxIter {
		nu := math.Log2(math.Log(rec.Modulus) / e.logR)
		rec.Smooth = math.Max(float64(iter)+1-nu, 1)
	} else {
		rec.Smooth = float64(e.maxIter)
	}
	return rec
}
