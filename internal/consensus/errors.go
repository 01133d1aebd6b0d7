package consensus

import "fmt"

const KindInvariantError = "ConsensusInvariantError"

// InvariantError reports a score outside its valid range. Scores are never clamped.
type InvariantError struct {
	Field    string
	Value    float64
	Min, Max float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s = %v outside valid range [%v, %v]", e.Field, e.Value, e.Min, e.Max)
}

func (e *InvariantError) Kind() string { return KindInvariantError }
