// Package locator computes an emitter position from its distances to three
// known stations.
//
// Each station i defines a circle (x-xi)² + (y-yi)² = di². Subtracting the
// equation of station i from station i+1 removes the quadratic terms and leaves
//
//	2(x₂-x₁)x + 2(y₂-y₁)y = x₂²-x₁² + y₂²-y₁² + d₁²-d₂²
//
// Two such equations (kenobi->skywalker, skywalker->sato) form a 2x2 system
// that is solved by least squares through a QR factorisation.
package locator

import (
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/quasar/internal/types"
	"gonum.org/v1/gonum/mat"
)

// MaxCondition is the largest condition number of the linearised system that
// is still treated as solvable.
const MaxCondition = 1e12

// ErrOverflow is returned when the distances are too large for the solve to
// stay within float64 range.
var ErrOverflow = errors.New("arithmetic overflow while solving the emitter position")

// Locate returns the emitter position for distances and positions given in the
// same station order. It returns a *types.GeometryError when the stations do not
// pin down a unique point.
func Locate(distances [3]float64, positions [3]types.Point) (types.Point, error) {
	for i, d := range distances {
		if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
			return types.Point{}, &types.ValidationError{
				Field:   "distance",
				Message: fmt.Sprintf("distance %d must be a finite, non-negative number", i),
			}
		}
	}

	a, b := linearise(distances, positions)
	for i := 0; i < b.Len(); i++ {
		if !finite(b.AtVec(i)) {
			return types.Point{}, ErrOverflow
		}
	}

	var qr mat.QR
	qr.Factorize(a)

	cond := qr.Cond()
	if math.IsNaN(cond) || cond > MaxCondition {
		return types.Point{}, &types.GeometryError{
			Reason: fmt.Sprintf("station geometry is degenerate (condition number %g); stations may be collinear", cond),
		}
	}

	solution := mat.NewVecDense(2, nil)
	if err := qr.SolveVecTo(solution, false, b); err != nil {
		return types.Point{}, &types.GeometryError{Reason: err.Error()}
	}

	p := types.Point{X: solution.AtVec(0), Y: solution.AtVec(1)}
	if !finite(p.X) || !finite(p.Y) {
		return types.Point{}, ErrOverflow
	}

	return p, nil
}

// linearise builds the coefficient matrix and constant vector from adjacent
// station pairs.
func linearise(distances [3]float64, positions [3]types.Point) (*mat.Dense, *mat.VecDense) {
	a := mat.NewDense(2, 2, nil)
	b := mat.NewVecDense(2, nil)

	for i := 1; i < len(positions); i++ {
		p1, p2 := positions[i-1], positions[i]
		d1, d2 := distances[i-1], distances[i]

		a.Set(i-1, 0, 2*(p2.X-p1.X))
		a.Set(i-1, 1, 2*(p2.Y-p1.Y))
		b.SetVec(i-1, p2.X*p2.X-p1.X*p1.X+p2.Y*p2.Y-p1.Y*p1.Y+d1*d1-d2*d2)
	}

	return a, b
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
