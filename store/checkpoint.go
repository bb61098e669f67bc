// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/katalvlaran/causalid/matrix"
)

// State is a parameter snapshot: one matrix per parameter, in model order.
type State []*matrix.Dense

// number is a float64 whose JSON form also covers non-finite values:
// NaN and ±Inf travel as the strings "NaN", "+Inf" and "-Inf".
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	switch {
	case math.IsNaN(v):
		return []byte(`"NaN"`), nil
	case math.IsInf(v, 1):
		return []byte(`"+Inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-Inf"`), nil
	}

	return json.Marshal(v)
}

func (n *number) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "NaN":
			*n = number(math.NaN())
		case "+Inf":
			*n = number(math.Inf(1))
		case "-Inf":
			*n = number(math.Inf(-1))
		default:
			return fmt.Errorf("%q: %w", s, ErrBadNumber)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = number(v)

	return nil
}

type wireMatrix struct {
	Rows int      `json:"rows"`
	Cols int      `json:"cols"`
	Data []number `json:"data"`
}

func encode(m *matrix.Dense) wireMatrix {
	r, c := m.Shape()
	data := make([]number, len(m.Data()))
	for i, v := range m.Data() {
		data[i] = number(v)
	}

	return wireMatrix{Rows: r, Cols: c, Data: data}
}

func (w wireMatrix) decode() (*matrix.Dense, error) {
	data := make([]float64, len(w.Data))
	for i, v := range w.Data {
		data[i] = float64(v)
	}

	return matrix.NewFromData(w.Rows, w.Cols, data)
}

func decodeJSON(blob string) (*matrix.Dense, error) {
	var w wireMatrix
	if err := json.Unmarshal([]byte(blob), &w); err != nil {
		return nil, err
	}

	return w.decode()
}

// Save stores state under filename for this run, replacing an earlier
// checkpoint of the same name.
func (s *Store) Save(ctx context.Context, state State, filename string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	wire := make([]wireMatrix, len(state))
	for i, m := range state {
		if m == nil {
			return fmt.Errorf("store.Save: param %d: %w", i, matrix.ErrNilMatrix)
		}
		wire[i] = encode(m)
	}
	blob, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("store.Save: %w", err)
	}
	if _, err = db.ExecContext(ctx,
		"INSERT OR REPLACE INTO checkpoints(run_id, filename, saved, state) VALUES(?, ?, ?, ?)",
		s.runID, filename, now(), string(blob)); err != nil {
		return fmt.Errorf("store.Save: %w", err)
	}

	return nil
}

// Load returns the state saved under filename for this run.
// Errors: ErrNotFound.
func (s *Store) Load(ctx context.Context, filename string) (State, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var blob string
	err = db.QueryRowContext(ctx, "SELECT state FROM checkpoints WHERE run_id = ? AND filename = ?",
		s.runID, filename).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store.Load: %q: %w", filename, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store.Load: %w", err)
	}
	var wire []wireMatrix
	if err = json.Unmarshal([]byte(blob), &wire); err != nil {
		return nil, fmt.Errorf("store.Load: %w", err)
	}
	state := make(State, len(wire))
	for i, w := range wire {
		if state[i], err = w.decode(); err != nil {
			return nil, fmt.Errorf("store.Load: param %d: %w", i, err)
		}
	}

	return state, nil
}
