package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// Pinger is anything with a context-aware Ping, e.g. a pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabasePingCheck probes database connectivity. Intended as a readiness
// probe: an unreachable database should take the service out of rotation.
func DatabasePingCheck(db Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(db.Ping(ctx), "database ping")
	}
}

// GoroutineCountCheck fails once the process exceeds threshold goroutines.
// Intended as a liveness probe for leak detection.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when any recorded GC pause exceeds threshold, which
// usually means the heap has grown past what the deployment can handle.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}
