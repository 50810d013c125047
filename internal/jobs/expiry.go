// Package jobs runs periodic maintenance next to the HTTP server.
package jobs

import (
	"context"
	"time"

	"vmxio.com/skillforge/internal/config"
	"vmxio.com/skillforge/internal/logger"
	"vmxio.com/skillforge/internal/metrics"
)

type CertificateExpirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

type ExamExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type Expiry struct {
	Certificates CertificateExpirer
	Exams        ExamExpirer
	ExamTTL      time.Duration
	Timeout      time.Duration
	Log          *logger.Logger
}

// RunOnce expires due certificates and stale exams as of now. Both steps
// run even when the first fails; the first error is returned.
func (e Expiry) RunOnce(ctx context.Context, now time.Time) error {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var firstErr error
	certs, err := e.Certificates.ExpireDue(ctx, now)
	if err != nil {
		e.Log.Error("certificate expiry failed", "error", err)
		firstErr = err
	} else if certs > 0 {
		metrics.ExpiredRows.WithLabelValues("certificate").Add(float64(certs))
		e.Log.Info("certificates expired", "count", certs)
	}

	if e.ExamTTL > 0 {
		exams, err := e.Exams.ExpireStale(ctx, now.Add(-e.ExamTTL))
		if err != nil {
			e.Log.Error("exam expiry failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		} else if exams > 0 {
			metrics.ExpiredRows.WithLabelValues("exam").Add(float64(exams))
			e.Log.Info("exams expired", "count", exams)
		}
	}
	return firstErr
}

// StartExpiryJob runs e on every tick of EXPIRY_JOB_INTERVAL until ctx is
// done. It returns immediately when the job is disabled.
func StartExpiryJob(ctx context.Context, cfg config.Config, e Expiry) {
	if !cfg.ExpiryJobEnabled {
		e.Log.Info("expiry job disabled")
		return
	}
	interval := cfg.ExpiryJobInterval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = e.RunOnce(ctx, time.Now().UTC())
			}
		}
	}()
}
