// Package policy holds the Q-table, its read-only deployment view and the
// action-selection strategies.
package policy

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
)

// grid carries the read accessors shared by Table and View.
type grid struct {
	actions ActionSet
	q       *mat.Dense
}

func (g grid) Actions() ActionSet {
	return g.actions.Clone()
}

func (g grid) Shape() (states, actions int) {
	return g.q.Dims()
}

func (g grid) Value(state, action int) float64 {
	return g.q.At(state, action)
}

// Values returns a copy of the estimates for a state.
func (g grid) Values(state int) []float64 {
	return append([]float64(nil), g.q.RawRowView(state)...)
}

// Best returns the action with the highest estimate; ties go to the lowest index.
func (g grid) Best(state int) int {
	return floats.MaxIdx(g.q.RawRowView(state))
}

func (g grid) Max(state int) float64 {
	return floats.Max(g.q.RawRowView(state))
}

// Table is the mutable Q-table owned by a single trainer.
type Table struct {
	grid
}

// NewTable allocates a zeroed table of quantize.NumStates rows.
func NewTable(actions ActionSet) (*Table, error) {
	if err := actions.Validate(); err != nil {
		return nil, err
	}
	return &Table{grid{
		actions: actions.Clone(),
		q:       mat.NewDense(quantize.NumStates, len(actions), nil),
	}}, nil
}

// Update applies the temporal-difference rule
// Q[s,a] += alpha * (r + gamma*max Q[next] - Q[s,a]) and returns the TD error.
func (t *Table) Update(state, action int, reward float64, next int, alpha, gamma float64) float64 {
	current := t.q.At(state, action)
	tdError := reward + gamma*t.Max(next) - current
	t.q.Set(state, action, current+alpha*tdError)
	return tdError
}

// Choose lets a selector pick an action for state. Only the owning table
// hands out its row; a View always copies.
func (t *Table) Choose(sel Selector, state int) int {
	return sel.Select(t.q.RawRowView(state))
}

// Freeze snapshots the table into an immutable View. Later updates to the
// table do not leak into the view.
func (t *Table) Freeze() *View {
	return &View{grid{
		actions: t.actions.Clone(),
		q:       mat.DenseCopyOf(t.q),
	}}
}

// View is the read-only table used during deployment.
type View struct {
	grid
}

// NewView wraps a copy of the given values. Rows must equal
// quantize.NumStates and columns the action count.
func NewView(actions ActionSet, values [][]float64) (*View, error) {
	if err := actions.Validate(); err != nil {
		return nil, err
	}
	if len(values) != quantize.NumStates {
		return nil, fmt.Errorf("%w: got %d rows, want %d", ErrShapeMismatch, len(values), quantize.NumStates)
	}
	q := mat.NewDense(quantize.NumStates, len(actions), nil)
	for s, row := range values {
		if len(row) != len(actions) {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, s, len(row), len(actions))
		}
		q.SetRow(s, row)
	}
	return &View{grid{actions: actions.Clone(), q: q}}, nil
}
