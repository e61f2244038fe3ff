package report

import (
	"encoding/json"
	"fmt"
)

// Value is a count that may have been censored by small-cell suppression.
// Censored values render as the fixed marker, never as a number.
type Value struct {
	Count    int
	Censored bool
	marker   string
}

func (v Value) String() string {
	if v.Censored {
		return v.marker
	}
	return fmt.Sprintf("%d", v.Count)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Censored {
		return json.Marshal(v.marker)
	}
	return json.Marshal(v.Count)
}

// Suppressor implements small-cell disclosure control for confidential
// programs: counts below the threshold are replaced with a censored marker
// so low counts cannot re-identify individuals.
type Suppressor struct {
	threshold int
}

func NewSuppressor(threshold int) *Suppressor {
	return &Suppressor{threshold: threshold}
}

func (s *Suppressor) Threshold() int {
	return s.threshold
}

// Marker is the fixed censored string, e.g. "< 10".
func (s *Suppressor) Marker() string {
	return fmt.Sprintf("< %d", s.threshold)
}

// Suppress censors count when the owning program is confidential and the
// count falls below the threshold. Non-confidential programs always pass
// through unchanged.
func (s *Suppressor) Suppress(count int, confidential bool) Value {
	if confidential && count < s.threshold {
		return Value{Count: count, Censored: true, marker: s.Marker()}
	}
	return Value{Count: count}
}

// Total sums cells into one value. If any constituent cell was censored the
// total is censored too: an exact total would let a reader back-compute a
// suppressed sub-count by subtraction. Suppression propagates upward only;
// sibling cells at or above the threshold stay visible.
func (s *Suppressor) Total(cells ...Value) Value {
	sum := 0
	censored := false
	for _, cell := range cells {
		sum += cell.Count
		if cell.Censored {
			censored = true
		}
	}
	if censored {
		return Value{Count: sum, Censored: true, marker: s.Marker()}
	}
	return Value{Count: sum}
}
