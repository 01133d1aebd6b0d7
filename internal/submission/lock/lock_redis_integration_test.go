//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"proptoken/internal/submission/lock"
	"proptoken/pkg/testutil/containers"
)

func TestRedisLockerAgainstServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &LockerSuite{setup: func(t *testing.T) (locker, func(time.Duration)) {
		if err := rc.FlushAll(context.Background()); err != nil {
			t.Fatalf("flush redis: %v", err)
		}
		return lock.NewRedis(rc.Client.Client), time.Sleep
	}})
}
