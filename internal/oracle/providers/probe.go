// Package providers holds the simulated evidence probes and what they share.
package providers

import (
	"context"
	"time"
)

// Settle blocks for the simulated probe latency or until ctx is done.
func Settle(ctx context.Context, latency time.Duration) error {
	if latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ClampConfidence keeps a configured confidence inside [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
