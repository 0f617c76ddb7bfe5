package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

// RegistryService dispatches save/load calls to the backend selected by the
// configured model target. The target is resolved on every call, so a bad
// value surfaces as an error from Save/Load rather than at startup.
type RegistryService struct {
	target   string
	stamp    *domain.Timestamper
	mu       sync.RWMutex
	backends map[domain.ModelTarget]ports.ModelRegistry
}

func NewRegistryService(target string, stamp *domain.Timestamper) *RegistryService {
	if stamp == nil {
		stamp = domain.NewTimestamper(time.Now)
	}
	return &RegistryService{
		target:   target,
		stamp:    stamp,
		backends: make(map[domain.ModelTarget]ports.ModelRegistry),
	}
}

// Register adds the backend serving target.
func (s *RegistryService) Register(target domain.ModelTarget, backend ports.ModelRegistry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[target] = backend
}

// Target returns the raw configured target.
func (s *RegistryService) Target() string {
	return s.target
}

func (s *RegistryService) resolve() (domain.ModelTarget, ports.ModelRegistry, error) {
	target, err := domain.ParseModelTarget(s.target)
	if err != nil {
		return "", nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.backends[target]
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", domain.ErrBackendNotConfigured, target)
	}
	return target, b, nil
}

// Save persists whichever of model, params and metrics are non-nil and
// returns the timestamp they were stored under.
func (s *RegistryService) Save(ctx context.Context, model domain.Model, params domain.Params, metrics domain.Metrics) (domain.Timestamp, error) {
	target, backend, err := s.resolve()
	if err != nil {
		return "", err
	}

	ts := s.stamp.Next()
	start := time.Now()

	if err := backend.Save(ctx, ts, model, params, metrics); err != nil {
		registrySaves.WithLabelValues(string(target), "error").Inc()
		return "", fmt.Errorf("save to %s: %w", target, err)
	}
	registrySaves.WithLabelValues(string(target), "ok").Inc()

	log.WithFields(log.Fields{
		"target":      target,
		"timestamp":   ts,
		"has_model":   model != nil,
		"has_params":  params != nil,
		"has_metrics": metrics != nil,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("model saved")

	return ts, nil
}

// Load returns the latest model of the configured backend, or nil when there is none.
func (s *RegistryService) Load(ctx context.Context) (domain.Model, error) {
	target, backend, err := s.resolve()
	if err != nil {
		return nil, err
	}

	model, err := backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load from %s: %w", target, err)
	}
	if model == nil {
		log.WithField("target", target).Info("no model found")
	}
	return model, nil
}

// RequireModel is Load for callers that cannot continue without a model.
func (s *RegistryService) RequireModel(ctx context.Context) (domain.Model, error) {
	model, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if model == nil {
		return nil, domain.ErrModelNotFound
	}
	return model, nil
}

// GetVersion returns the latest version number in stage. Only the tracking
// backend knows about versions; for the others found is always false.
func (s *RegistryService) GetVersion(ctx context.Context, stage domain.Stage) (version int, found bool, err error) {
	_, backend, err := s.resolve()
	if err != nil {
		return 0, false, err
	}

	versioned, ok := backend.(ports.VersionedRegistry)
	if !ok {
		return 0, false, nil
	}

	version, found = versioned.GetVersion(ctx, stage)
	return version, found, nil
}
