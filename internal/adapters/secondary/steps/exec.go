package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"model-retrain-service/internal/core/domain"
	ports "model-retrain-service/internal/core/ports/output"
)

// waitDelay bounds how long output pipes may stay open after the process is killed.
const waitDelay = 2 * time.Second

// ExecRunner runs each step as a local process:
//
//	<command...> <step> [--source <src>]
//
// with EXPERIMENT set in its environment.
type ExecRunner struct {
	command []string
	timeout time.Duration
}

var _ ports.StepRunner = (*ExecRunner)(nil)

func NewExecRunner(command string, timeout time.Duration) (*ExecRunner, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("step command is empty")
	}
	return &ExecRunner{command: fields, timeout: timeout}, nil
}

func (r *ExecRunner) Run(ctx context.Context, step domain.Step) (*domain.StepResult, error) {
	if !step.Name.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStep, step.Name)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := append(append([]string{}, r.command[1:]...), step.Args()...)
	cmd := exec.CommandContext(ctx, r.command[0], args...)
	cmd.Env = append(os.Environ(), "EXPERIMENT="+step.Experiment)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger := log.WithField("step", step.String())
	logger.WithField("args", args).Debug("starting step process")

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return nil, fmt.Errorf("step %s: %w: %s", step, err, tail(stderr.Bytes(), 512))
	}

	logger.WithField("duration", time.Since(start).String()).Debug("step process finished")
	return ParseOutput(stdout.Bytes())
}
