package testutil

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

// MockFlowRunRepo is a mock of FlowRunRepository.
type MockFlowRunRepo struct {
	mock.Mock
}

func (m *MockFlowRunRepo) Create(ctx context.Context, run *domain.FlowRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockFlowRunRepo) Update(ctx context.Context, run *domain.FlowRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockFlowRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FlowRun, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FlowRun), args.Error(1)
}

func (m *MockFlowRunRepo) List(ctx context.Context, filter ports.FlowRunListFilter) ([]*domain.FlowRun, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.FlowRun), args.Int(1), args.Error(2)
}

// MockStepRunner is a mock of StepRunner.
type MockStepRunner struct {
	mock.Mock
}

func (m *MockStepRunner) Run(ctx context.Context, step domain.Step) (*domain.StepResult, error) {
	args := m.Called(ctx, step)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StepResult), args.Error(1)
}

// MockNotifier is a mock of Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockModelRegistry is a mock of ModelRegistry.
type MockModelRegistry struct {
	mock.Mock
}

func (m *MockModelRegistry) Save(ctx context.Context, ts domain.Timestamp, model domain.Model, params domain.Params, metrics domain.Metrics) error {
	args := m.Called(ctx, ts, model, params, metrics)
	return args.Error(0)
}

func (m *MockModelRegistry) Load(ctx context.Context) (domain.Model, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Model), args.Error(1)
}

// MockVersionedRegistry is a mock of VersionedRegistry.
type MockVersionedRegistry struct {
	MockModelRegistry
}

func (m *MockVersionedRegistry) GetVersion(ctx context.Context, stage domain.Stage) (int, bool) {
	args := m.Called(ctx, stage)
	return args.Int(0), args.Bool(1)
}

// MockObjectStore is a mock of ObjectStore.
type MockObjectStore struct {
	mock.Mock
}

func (m *MockObjectStore) Upload(ctx context.Context, key, localPath string) error {
	args := m.Called(ctx, key, localPath)
	return args.Error(0)
}

// Compile-time interface checks.
var (
	_ ports.FlowRunRepository = (*MockFlowRunRepo)(nil)
	_ ports.StepRunner        = (*MockStepRunner)(nil)
	_ ports.Notifier          = (*MockNotifier)(nil)
	_ ports.ModelRegistry     = (*MockModelRegistry)(nil)
	_ ports.VersionedRegistry = (*MockVersionedRegistry)(nil)
	_ ports.ObjectStore       = (*MockObjectStore)(nil)
)
