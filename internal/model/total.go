package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// Total is an unbounded byte accumulator. It never wraps.
type Total struct {
	v big.Int
}

func NewTotal(n uint64) Total {
	var t Total
	t.v.SetUint64(n)
	return t
}

func (t *Total) Add(delta uint64) {
	var d big.Int
	d.SetUint64(delta)
	t.v.Add(&t.v, &d)
}

func (t Total) Cmp(o Total) int {
	return t.v.Cmp(&o.v)
}

// Uint64 returns the low 64 bits. IsUint64 reports whether that is exact.
func (t Total) Uint64() uint64 {
	return t.v.Uint64()
}

func (t Total) IsUint64() bool {
	return t.v.IsUint64()
}

func (t Total) Float64() float64 {
	f, _ := new(big.Float).SetInt(&t.v).Float64()
	return f
}

func (t Total) String() string {
	return t.v.String()
}

// Big returns a copy of the value.
func (t Total) Big() *big.Int {
	return new(big.Int).Set(&t.v)
}

func (t Total) Clone() Total {
	var c Total
	c.v.Set(&t.v)
	return c
}

func (t Total) MarshalJSON() ([]byte, error) {
	return []byte(t.v.String()), nil
}

func (t *Total) UnmarshalJSON(data []byte) error {
	var raw json.Number
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode total: %w", err)
	}
	if _, ok := t.v.SetString(raw.String(), 10); !ok {
		return fmt.Errorf("decode total: invalid integer %q", raw)
	}
	return nil
}
