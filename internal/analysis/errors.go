package analysis

import (
	"errors"
	"fmt"
)

const KindGatewayError = "GatewayError"

// ErrCircuitOpen is returned without calling the engine while the breaker is open.
var ErrCircuitOpen = errors.New("scoring engine circuit open")

// GatewayError is any failed, timed out or malformed scoring engine call. It is
// never interpreted as a score.
type GatewayError struct {
	Operation  string // "market" or "fraud"
	StatusCode int
	Message    string
	Underlying error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s analysis: %s", e.Operation, e.Message)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Underlying != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Underlying)
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Underlying }

func (e *GatewayError) Kind() string { return KindGatewayError }
