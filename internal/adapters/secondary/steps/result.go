package steps

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"model-retrain-service/internal/core/domain"
)

// ParseOutput reads the metrics a step reports on its last non-empty output
// line. Output that does not end in a JSON object carries no metrics.
func ParseOutput(out []byte) (*domain.StepResult, error) {
	last := lastLine(out)
	if !strings.HasPrefix(last, "{") {
		return &domain.StepResult{}, nil
	}

	var metrics domain.Metrics
	if err := json.Unmarshal([]byte(last), &metrics); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidStepOutput, err)
	}
	return &domain.StepResult{Metrics: metrics}, nil
}

func lastLine(out []byte) string {
	var last string
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	return last
}

// tail returns at most n trailing bytes of out, for error messages.
func tail(out []byte, n int) string {
	s := strings.TrimSpace(string(out))
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
