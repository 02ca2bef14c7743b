package zcheck

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/okian/zcalc/pkg/logger"
)

// Run checks every percentile of every table against the service at cfg.BaseURL.
// It returns the stats and ErrMismatch when any case failed.
func Run(ctx context.Context, cfg *Config, log logger.Logger) (*Stats, error) {
	applyDefaults(cfg)
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting z-score check",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("attribute", string(cfg.Attribute)),
		logger.Int("tables", len(cfg.Tables)),
		logger.Int("workers", cfg.Workers),
		logger.Float64("tolerance", cfg.Tolerance))

	client := NewClient(cfg.BaseURL, cfg.Timeout)
	if err := client.Healthy(ctx); err != nil {
		return stats, err
	}

	var cases []Case
	for _, path := range cfg.Tables {
		tc, err := loadTable(cfg, path)
		if err != nil {
			return stats, err
		}
		log.Debug(ctx, "table loaded", logger.String("path", path), logger.Int("cases", len(tc)))
		cases = append(cases, tc...)
	}
	if len(cases) == 0 {
		return stats, ErrNoCases
	}

	for _, o := range check(ctx, client, cases, cfg.Workers) {
		stats.Cases++
		switch {
		case o.Err != nil:
			stats.Errored++
			log.Warn(ctx, "request failed",
				logger.String("key", o.Key.String()),
				logger.Float64("percentile", o.Percentile),
				logger.Error(o.Err))
		case o.Passed(cfg.Tolerance):
			stats.Passed++
			if cfg.Verbose {
				log.Info(ctx, "ok",
					logger.String("key", o.Key.String()),
					logger.Float64("percentile", o.Percentile),
					logger.Float64("z", o.Got))
			}
		default:
			stats.Failed++
			log.Warn(ctx, "z-score outside tolerance",
				logger.String("key", o.Key.String()),
				logger.Float64("percentile", o.Percentile),
				logger.Float64("expected", o.Expected),
				logger.Float64("got", o.Got))
		}
		if o.Err == nil {
			stats.MaxDelta = math.Max(stats.MaxDelta, math.Abs(o.Got-o.Expected))
		}
	}
	stats.Duration = time.Since(stats.StartTime)

	log.Info(ctx, "z-score check finished",
		logger.Int("cases", stats.Cases),
		logger.Int("passed", stats.Passed),
		logger.Int("failed", stats.Failed),
		logger.Int("errored", stats.Errored),
		logger.Float64("maxDelta", stats.MaxDelta),
		logger.String("duration", stats.Duration.String()))

	if stats.Failed > 0 || stats.Errored > 0 {
		return stats, fmt.Errorf("%w: %d failed, %d errored of %d", ErrMismatch, stats.Failed, stats.Errored, stats.Cases)
	}
	return stats, nil
}

func applyDefaults(cfg *Config) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
}

func loadTable(cfg *Config, path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cases, err := GenerateCases(cfg.Attribute, f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cases, nil
}

// check sends the cases through a fixed pool of workers. Outcomes keep the input order.
func check(ctx context.Context, client *Client, cases []Case, workers int) []Outcome {
	out := make([]Outcome, len(cases))
	idx := make(chan int, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range idx {
				z, status, err := client.ZScore(ctx, cases[i])
				out[i] = Outcome{Case: cases[i], Got: z, Status: status, Err: err}
			}
		}()
	}

	go func() {
		defer close(idx)
		for i := range cases {
			select {
			case <-ctx.Done():
				return
			case idx <- i:
			}
		}
	}()
	wg.Wait()

	for i := range out {
		if out[i].Err == nil && out[i].Status == 0 {
			out[i] = Outcome{Case: cases[i], Err: ctx.Err()}
		}
	}
	return out
}
