package domain

import "errors"

// ============================================================================
// Registry Errors
// ============================================================================

var (
	ErrUnknownModelTarget     = errors.New("unknown model target")
	ErrBackendNotConfigured   = errors.New("model target has no configured backend")
	ErrModelNotFound          = errors.New("no model could be loaded from the configured target")
	ErrInvalidStage           = errors.New("invalid stage")
	ErrUnsupportedArtifactURI = errors.New("unsupported artifact uri")
	ErrModelPathNotFound      = errors.New("model path does not exist")
	ErrModelPathOutsideUpload = errors.New("model path is outside the upload directory")
)

// ============================================================================
// Flow Errors
// ============================================================================

// Not found errors
var (
	ErrFlowRunNotFound = errors.New("flow run not found")
)

// Business rule errors
var (
	ErrFlowRunInProgress = errors.New("a flow run is already in progress")
	ErrMissingMetric     = errors.New("step result is missing a required metric")
	ErrInvalidStepOutput = errors.New("step output is not a metrics object")
)

// Validation errors
var (
	ErrInvalidFlowRunID = errors.New("flow run ID is required")
	ErrInvalidStep      = errors.New("unknown step")
)

// ============================================================================
// Notification Errors
// ============================================================================

var (
	ErrNotificationRejected = errors.New("notification rejected by chat bridge")
)
