package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

type dbPinger interface {
	Ping(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis
// connectivity concurrently; 200 if both respond, 503 otherwise.
func HealthHandlerFunc(db dbPinger, redis redisPinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		var dbErr, redisErr error

		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			dbErr = db.Ping(gCtx)
			return nil
		})
		g.Go(func() error {
			redisErr = redis.Ping(gCtx)
			return nil
		})
		_ = g.Wait()

		status := http.StatusOK
		overall, dbStatus, redisStatus := "ok", "ok", "ok"

		if dbErr != nil {
			log.Error("health check: db ping failed", "err", dbErr)
			dbStatus = "error"
		}
		if redisErr != nil {
			log.Error("health check: redis ping failed", "err", redisErr)
			redisStatus = "error"
		}
		if dbErr != nil || redisErr != nil {
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
