package pcba

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"linetest/internal/routing"
)

var (
	ErrTesterNotFound = errors.New("PCBA tester program not found")
	ErrStageTimeout   = errors.New("test execution timeout")
	ErrStageFailed    = errors.New("test execution failed")
	ErrInvalidOutput  = errors.New("invalid test output")
)

// Tester runs the station's tester program once per stage:
// <path> <stage> <serial>, which prints one JSON stage event on stdout.
type Tester struct {
	Path    string
	Timeout time.Duration
}

func NewTester(path string, timeout time.Duration) *Tester {
	return &Tester{Path: path, Timeout: timeout}
}

// Check reports ErrTesterNotFound when the program is missing
func (t *Tester) Check() error {
	info, err := os.Stat(t.Path)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", ErrTesterNotFound, t.Path)
	}
	return nil
}

// Run executes one stage and decodes its output
func (t *Tester) Run(ctx context.Context, stage, serial string) (routing.StageEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.Path, stage, serial)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second // stop waiting on pipes held open by grandchildren

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return routing.StageEvent{}, fmt.Errorf("%w: stage %s after %s", ErrStageTimeout, stage, t.Timeout)
		}
		return routing.StageEvent{}, fmt.Errorf("%w: stage %s: %v: %s",
			ErrStageFailed, stage, err, strings.TrimSpace(stderr.String()))
	}

	var ev routing.StageEvent
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &ev); err != nil {
		return routing.StageEvent{}, fmt.Errorf("%w: stage %s: %v", ErrInvalidOutput, stage, err)
	}
	return ev, nil
}
