// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	repository "github.com/okian/zcalc/internal/adapters/repository"
	"github.com/okian/zcalc/internal/domain/model"
	"github.com/okian/zcalc/internal/domain/scoring"
	"github.com/okian/zcalc/pkg/logger"
	"github.com/okian/zcalc/pkg/metrics"
)

// Service owns the reference store and the score orchestrator built on it.
type Service struct {
	mu sync.RWMutex

	// Core components
	store  repository.ReadWriteStore
	scorer scoring.Scorer

	// Configuration
	driver        string
	dsn           string
	table         string
	keyPrefix     string
	seedCSV       string
	seedAttribute model.Attribute
	injected      bool

	// State
	started   bool
	startedAt time.Time
	seeded    int
	scored    atomic.Int64
	failed    atomic.Int64

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStoreDriver selects the reference store backend and its DSN.
func WithStoreDriver(driver, dsn string) Option {
	return func(s *Service) {
		if driver != "" {
			s.driver = driver
			s.dsn = dsn
		}
	}
}

// WithTable sets the SQL table holding reference rows.
func WithTable(table string) Option {
	return func(s *Service) {
		if table != "" {
			s.table = table
		}
	}
}

// WithKeyPrefix sets the Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithSeedCSV imports the reference table at path under attribute on Start.
func WithSeedCSV(path string, attribute model.Attribute) Option {
	return func(s *Service) {
		s.seedCSV = path
		s.seedAttribute = attribute
	}
}

// WithStore uses an already opened store instead of opening one on Start.
// The Service closes it on Stop.
func WithStore(store repository.ReadWriteStore) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
			s.injected = true
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		driver:        repository.DriverMemory,
		seedAttribute: model.HeadCircumference,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start opens the reference store, seeds it when configured, and builds the
// orchestrator. Calling Start on a started service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting z-score service...", logger.String("driver", s.driver))

	if !s.injected {
		store, err := repository.Open(ctx, s.driver, s.dsn, s.storeOptions()...)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStoreOpen, err)
		}
		s.store = store
	}

	if s.seedCSV != "" {
		n, err := s.seed(ctx)
		if err != nil {
			s.closeStore(ctx)
			return err
		}
		s.seeded = n
		s.logger.Info(ctx, "reference table imported",
			logger.String("path", s.seedCSV),
			logger.String("attribute", string(s.seedAttribute)),
			logger.Int("rows", n),
		)
	}

	s.scorer = scoring.New(s.store, scoring.WithLogger(s.logger.Named("scoring")))
	metrics.SetStoreInfo(s.store.Name())

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "z-score service started", logger.String("source", s.store.Name()))

	return nil
}

func (s *Service) storeOptions() []repository.Option {
	opts := []repository.Option{
		repository.WithTable(s.table),
		repository.WithKeyPrefix(s.keyPrefix),
	}
	// A fresh sqlite file has no table; postgres only gets one when we are about to write.
	if s.driver == repository.DriverSQLite || s.seedCSV != "" {
		opts = append(opts, repository.WithEnsureSchema())
	}
	return opts
}

func (s *Service) seed(ctx context.Context) (int, error) {
	f, err := os.Open(s.seedCSV)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSeed, err)
	}
	defer f.Close()

	n, err := repository.ImportCSV(ctx, s.store, s.seedAttribute, f)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrSeed, s.seedCSV, err)
	}
	return n, nil
}

func (s *Service) closeStore(ctx context.Context) {
	if s.store == nil {
		return
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing reference store", logger.Error(err))
	}
	s.store = nil
}

// Stop closes the reference store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping z-score service...")
	s.closeStore(ctx)
	s.scorer = nil
	s.started = false
	s.logger.Info(ctx, "z-score service stopped")
}

// ZScore scores the patient's measurement for attribute.
func (s *Service) ZScore(ctx context.Context, patient model.Patient, attribute model.Attribute) (model.ZScoreResult, error) {
	s.mu.RLock()
	scorer := s.scorer
	s.mu.RUnlock()

	if scorer == nil {
		return model.ZScoreResult{}, ErrNotStarted
	}

	res, err := scorer.ScoreFor(ctx, patient, attribute)
	if err != nil {
		s.failed.Add(1)
		return model.ZScoreResult{}, err
	}
	s.scored.Add(1)
	return res, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started": s.started,
		"driver":  s.driver,
		"scored":  s.scored.Load(),
		"failed":  s.failed.Load(),
	}

	if s.started {
		stats["source"] = s.store.Name()
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())
		if s.seedCSV != "" {
			stats["seededRows"] = s.seeded
		}
		if counter, ok := s.store.(interface{ Len() int }); ok {
			stats["referenceRows"] = counter.Len()
		}
	}

	return stats
}
