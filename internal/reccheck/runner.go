package reccheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	workerpool "github.com/okian/sessionrec/internal/adapters/mq/worker"
	"github.com/okian/sessionrec/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// ErrViolations is returned when any result broke an invariant.
var ErrViolations = errors.New("invariant violations found")

// Run executes the complete check and returns the per-visitor outcomes.
func Run(ctx context.Context, cfg *Config) ([]Outcome, *Stats, error) {
	log := logger.Named("reccheck")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting recommendation check",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("limit", cfg.Limit),
		logger.Int("workers", cfg.Workers),
		logger.Bool("useLLM", cfg.UseLLM))

	client := NewHTTPClient(cfg.BaseURL, cfg.Timeout)

	if err := client.Health(ctx); err != nil {
		return nil, stats, fmt.Errorf("service health check failed: %w", err)
	}

	visitors, err := client.Visitors(ctx)
	if err != nil {
		return nil, stats, fmt.Errorf("visitor listing failed: %w", err)
	}
	if cfg.Limit > 0 && len(visitors) > cfg.Limit {
		visitors = visitors[:cfg.Limit]
	}
	stats.Visitors = len(visitors)

	outcomes := make([]Outcome, len(visitors))
	var requested, succeeded, notFound, failed, violations, empty atomic.Int64
	pool := workerpool.NewPool(cfg.Workers, workerpool.WithName("reccheck"), workerpool.WithLogger(log))
	err = pool.Run(ctx, len(visitors), func(ctx context.Context, i int) error {
		badge := visitors[i].BadgeID
		requested.Add(1)
		res, status, err := client.Recommendations(ctx, badge, cfg)
		o := Outcome{BadgeID: badge, Status: status, Result: res}
		switch {
		case err != nil:
			o.Err = err.Error()
			failed.Add(1)
		case status == http.StatusNotFound:
			notFound.Add(1)
		case status != http.StatusOK:
			failed.Add(1)
		default:
			succeeded.Add(1)
			if len(res.FilteredRecommendations) == 0 {
				empty.Add(1)
			}
		}
		if err == nil {
			o.Violations = Verify(res, cfg.Max)
			violations.Add(int64(len(o.Violations)))
			if cfg.Verbose {
				for _, v := range o.Violations {
					log.Warn(ctx, "invariant violated", logger.String("badge_id", badge), logger.String("violation", v))
				}
			}
		}
		outcomes[i] = o
		return nil
	})
	if err != nil {
		return nil, stats, fmt.Errorf("requests failed: %w", err)
	}

	stats.Requested = int(requested.Load())
	stats.Succeeded = int(succeeded.Load())
	stats.NotFound = int(notFound.Load())
	stats.Failed = int(failed.Load())
	stats.Violations = int(violations.Load())
	stats.Empty = int(empty.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if cfg.OutputFile != "" {
		if err := SaveReport(cfg.OutputFile, outcomes); err != nil {
			log.Warn(ctx, "failed to save report", logger.Error(err))
		}
	}
	displayFinalStats(ctx, log, stats)

	if stats.Violations > 0 {
		return outcomes, stats, fmt.Errorf("%w: %d", ErrViolations, stats.Violations)
	}
	return outcomes, stats, nil
}

// SaveReport writes outcomes as indented JSON to filename.
func SaveReport(filename string, outcomes []Outcome) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(outcomes, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Requested) / stats.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("visitors", stats.Visitors),
		logger.Int("requested", stats.Requested),
		logger.Int("succeeded", stats.Succeeded),
		logger.Int("notFound", stats.NotFound),
		logger.Int("failed", stats.Failed),
		logger.Int("empty", stats.Empty),
		logger.Int("violations", stats.Violations),
		logger.Duration("duration", stats.Duration),
		logger.Float64("requestsPerSecond", perSecond))
}
