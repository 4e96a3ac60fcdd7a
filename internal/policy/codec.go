package policy

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ParthSatpute25/intelligent-braking-qlearning/internal/quantize"
)

var ErrShapeMismatch = errors.New("policy table shape mismatch")

// MarshalBinary encodes every cell of the table as a gonum dense matrix blob.
func (g grid) MarshalBinary() ([]byte, error) {
	return g.q.MarshalBinary()
}

// DecodeView loads a persisted table for deployment. The stored shape must
// be exactly quantize.NumStates x len(actions); anything else is rejected.
func DecodeView(data []byte, actions ActionSet) (*View, error) {
	if err := actions.Validate(); err != nil {
		return nil, err
	}
	q, err := decodeDense(data)
	if err != nil {
		return nil, err
	}
	if err := checkShape(q, len(actions)); err != nil {
		return nil, err
	}
	return &View{grid{actions: actions.Clone(), q: q}}, nil
}

// DecodeTable loads a persisted table as a mutable handle, for continued training.
func DecodeTable(data []byte, actions ActionSet) (*Table, error) {
	view, err := DecodeView(data, actions)
	if err != nil {
		return nil, err
	}
	return &Table{view.grid}, nil
}

func decodeDense(data []byte) (*mat.Dense, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrShapeMismatch)
	}
	var q mat.Dense
	if err := q.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("decode policy table: %w", err)
	}
	return &q, nil
}

func checkShape(q *mat.Dense, actions int) error {
	rows, cols := q.Dims()
	if rows != quantize.NumStates || cols != actions {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", ErrShapeMismatch, rows, cols, quantize.NumStates, actions)
	}
	return nil
}
