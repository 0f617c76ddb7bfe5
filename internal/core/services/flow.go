package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

// FlowConfig names the flow and the experiment passed down to the steps.
type FlowConfig struct {
	Name       string
	Experiment string
}

// FlowService runs the retraining workflow:
// preprocess -> evaluate -> retrain -> notify.
type FlowService struct {
	cfg      FlowConfig
	steps    ports.StepRunner
	notifier ports.Notifier
	runs     ports.FlowRunRepository
	registry *RegistryService
	now      func() time.Time

	mu     sync.Mutex
	active *domain.FlowRun
}

func NewFlowService(
	cfg FlowConfig,
	steps ports.StepRunner,
	notifier ports.Notifier,
	runs ports.FlowRunRepository,
	registry *RegistryService,
) *FlowService {
	return &FlowService{
		cfg:      cfg,
		steps:    steps,
		notifier: notifier,
		runs:     runs,
		registry: registry,
		now:      time.Now,
	}
}

// ============================================================================
// Task graph
// ============================================================================

type flowTask struct {
	name string
	run  func(ctx context.Context, run *domain.FlowRun) error
}

// tasks returns the workflow in execution order. evaluate and retrain only
// depend on preprocess; notify needs both of their results.
func (s *FlowService) tasks() []flowTask {
	return []flowTask{
		{name: "preprocess", run: s.preprocess},
		{name: "evaluate", run: s.evaluate},
		{name: "retrain", run: s.retrain},
		{name: "notify", run: s.notify},
	}
}

func (s *FlowService) step(name domain.StepName, source domain.DataSource) domain.Step {
	return domain.Step{Name: name, Source: source, Experiment: s.cfg.Experiment}
}

func (s *FlowService) preprocess(ctx context.Context, _ *domain.FlowRun) error {
	for _, src := range []domain.DataSource{domain.SourceTrain, domain.SourceVal} {
		if _, err := s.steps.Run(ctx, s.step(domain.StepPreprocess, src)); err != nil {
			return err
		}
	}
	return nil
}

func (s *FlowService) evaluate(ctx context.Context, run *domain.FlowRun) error {
	if s.registry != nil {
		version, found, err := s.registry.GetVersion(ctx, domain.StageProduction)
		if err != nil {
			log.WithError(err).Warn("lookup production version failed")
		} else if found {
			run.ProductionVersion = &version
		}
	}

	res, err := s.steps.Run(ctx, s.step(domain.StepEvaluate, ""))
	if err != nil {
		return err
	}
	mae, err := res.MAE()
	if err != nil {
		return err
	}
	run.EvalMAE = &mae
	return nil
}

func (s *FlowService) retrain(ctx context.Context, run *domain.FlowRun) error {
	res, err := s.steps.Run(ctx, s.step(domain.StepTrain, ""))
	if err != nil {
		return err
	}
	mae, err := res.MAE()
	if err != nil {
		return err
	}
	run.TrainMAE = &mae
	return nil
}

func (s *FlowService) notify(ctx context.Context, run *domain.FlowRun) error {
	if run.EvalMAE == nil || run.TrainMAE == nil {
		return fmt.Errorf("%w: %s", domain.ErrMissingMetric, domain.MetricMAE)
	}
	return s.notifier.Notify(ctx, domain.Notification{
		Content: domain.NewMAEReport(*run.EvalMAE, *run.TrainMAE),
	})
}

// ============================================================================
// Execution
// ============================================================================

func (s *FlowService) acquire(ctx context.Context) (*domain.FlowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, domain.ErrFlowRunInProgress
	}

	run := domain.NewFlowRun(s.cfg.Name, s.cfg.Experiment, s.now())
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create flow run: %w", err)
	}
	s.active = run
	return run, nil
}

func (s *FlowService) release() {
	s.mu.Lock()
	s.active = nil
	s.mu.Unlock()
}

func (s *FlowService) persist(ctx context.Context, run *domain.FlowRun) {
	if err := s.runs.Update(ctx, run); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Error("update flow run failed")
	}
}

func (s *FlowService) execute(ctx context.Context, run *domain.FlowRun) error {
	defer s.release()

	logger := log.WithFields(log.Fields{
		"run_id":     run.ID,
		"flow":       s.cfg.Name,
		"experiment": s.cfg.Experiment,
	})

	run.Status = domain.FlowRunRunning
	s.persist(ctx, run)
	logger.Info("flow run started")

	var runErr error
	for _, t := range s.tasks() {
		start := time.Now()
		err := t.run(ctx, run)
		flowStepDuration.WithLabelValues(t.name).Observe(time.Since(start).Seconds())

		if err != nil {
			runErr = fmt.Errorf("task %s: %w", t.name, err)
			break
		}
		logger.WithFields(log.Fields{
			"task":        t.name,
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("task completed")
		s.persist(ctx, run)
	}

	run.Finish(runErr, s.now())
	// the run context may be cancelled by now; the record must still land
	s.persist(context.WithoutCancel(ctx), run)
	flowRunsTotal.WithLabelValues(s.cfg.Name, string(run.Status)).Inc()

	if runErr != nil {
		logger.WithError(runErr).Error("flow run failed")
		return runErr
	}

	flowLastMAE.WithLabelValues(s.cfg.Name, "eval").Set(*run.EvalMAE)
	flowLastMAE.WithLabelValues(s.cfg.Name, "train").Set(*run.TrainMAE)
	logger.WithFields(log.Fields{
		"eval_mae":  *run.EvalMAE,
		"train_mae": *run.TrainMAE,
	}).Info("flow run succeeded")
	return nil
}

// Run executes the flow synchronously.
func (s *FlowService) Run(ctx context.Context) (*domain.FlowRun, error) {
	run, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	err = s.execute(ctx, run)
	return run, err
}

// Start launches the flow in the background and returns the pending run.
// The run outlives ctx; its outcome is read back through Get.
func (s *FlowService) Start(ctx context.Context) (*domain.FlowRun, error) {
	run, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := *run

	go func() {
		_ = s.execute(context.WithoutCancel(ctx), run)
	}()

	return &snapshot, nil
}

func (s *FlowService) Get(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	if id == uuid.Nil {
		return nil, domain.ErrInvalidFlowRunID
	}
	return s.runs.GetByID(ctx, id)
}

func (s *FlowService) List(ctx context.Context, filter ports.FlowRunListFilter) ([]*domain.FlowRun, int, error) {
	return s.runs.List(ctx, filter.Normalized())
}
