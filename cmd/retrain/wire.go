package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"model-retrain-service/internal/adapters/secondary/chat"
	"model-retrain-service/internal/adapters/secondary/cloud"
	"model-retrain-service/internal/adapters/secondary/gcs"
	"model-retrain-service/internal/adapters/secondary/localfs"
	"model-retrain-service/internal/adapters/secondary/mlflow"
	"model-retrain-service/internal/adapters/secondary/postgres"
	"model-retrain-service/internal/adapters/secondary/sqlite"
	"model-retrain-service/internal/adapters/secondary/steps"
	"model-retrain-service/internal/config"
	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
	"model-retrain-service/internal/core/services"
)

// buildRegistry wires only the backend MODEL_TARGET selects. An unknown
// target still yields a service; its calls fail with ErrUnknownModelTarget.
func buildRegistry(ctx context.Context, cfg *config.Config) (*services.RegistryService, func(), error) {
	svc := services.NewRegistryService(cfg.Registry.Target, nil)
	cleanup := func() {}

	target, err := domain.ParseModelTarget(cfg.Registry.Target)
	if err != nil {
		log.WithField("target", cfg.Registry.Target).Warn("unknown model target, registry calls will fail")
		return svc, cleanup, nil
	}

	local := localfs.NewRegistry(cfg.Registry.LocalPath)
	switch target {
	case domain.TargetLocal:
		svc.Register(target, local)

	case domain.TargetGCS:
		if cfg.Registry.BucketName == "" {
			return nil, nil, fmt.Errorf("BUCKET_NAME is required for model target %s", target)
		}
		bucket, err := gcs.NewBucket(ctx, cfg.Registry.BucketName)
		if err != nil {
			return nil, nil, err
		}
		svc.Register(target, cloud.NewRegistry(local, bucket))
		cleanup = func() { bucket.Close() }

	case domain.TargetMLflow:
		client, err := mlflow.New(cfg.Tracking.URI, cfg.Tracking.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("create tracking client: %w", err)
		}
		svc.Register(target, mlflow.NewRegistry(client, cfg.Tracking.Experiment, cfg.Tracking.ModelName, cfg.Registry.LocalPath))
	}

	log.WithField("target", target).Info("model registry configured")
	return svc, cleanup, nil
}

func buildStepRunner(cfg *config.Config) (ports.StepRunner, error) {
	switch cfg.Steps.Runner {
	case config.RunnerExec, "":
		return steps.NewExecRunner(cfg.Steps.Command, cfg.Steps.Timeout)
	case config.RunnerKubernetes:
		client, err := steps.NewJobClient(&cfg.Kubernetes)
		if err != nil {
			return nil, err
		}
		return steps.NewKubeRunner(client, &cfg.Kubernetes, cfg.Steps.Command, cfg.Steps.Timeout)
	default:
		return nil, fmt.Errorf("unknown step runner %q", cfg.Steps.Runner)
	}
}

func buildNotifier(cfg *config.Config) ports.Notifier {
	if !cfg.Notify.Enabled {
		return chat.LogNotifier{}
	}
	return chat.NewNotifier(cfg.Notify.BaseURL, cfg.Notify.Channel, cfg.Notify.Author, cfg.Notify.Timeout)
}

// runStore is the flow run history plus what serve needs to probe and close it.
type runStore struct {
	ports.FlowRunRepository
	ping  func(ctx context.Context) error
	close func()
}

func buildRunStore(ctx context.Context, cfg *config.Config) (*runStore, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite, "":
		repo, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		return &runStore{
			FlowRunRepository: repo,
			ping:              repo.Ping,
			close:             func() { repo.Close() },
		}, nil

	case config.DriverPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("parse db config: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxOpenConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("create db pool: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &runStore{
			FlowRunRepository: postgres.NewFlowRunRepository(pool),
			ping:              pool.Ping,
			close:             pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}

// app holds every wired component a command may need.
type app struct {
	registry *services.RegistryService
	flow     *services.FlowService
	runs     *runStore
	cleanup  func()
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	registry, closeRegistry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	runner, err := buildStepRunner(cfg)
	if err != nil {
		closeRegistry()
		return nil, err
	}

	runs, err := buildRunStore(ctx, cfg)
	if err != nil {
		closeRegistry()
		return nil, err
	}

	flow := services.NewFlowService(
		services.FlowConfig{Name: cfg.Flow.Name, Experiment: cfg.Tracking.Experiment},
		runner, buildNotifier(cfg), runs, registry,
	)

	return &app{
		registry: registry,
		flow:     flow,
		runs:     runs,
		cleanup: func() {
			runs.close()
			closeRegistry()
		},
	}, nil
}
