package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

// stderrTailBytes bounds how much of the program's stderr ends up in a
// fault message.
const stderrTailBytes = 2048

// Runner executes generated programs inside one-shot docker containers.
// The container is the isolation boundary: no network, no env passthrough,
// capped memory/cpu/pids, and the per-task workspace as the only mount.
type Runner struct {
	Image     string
	BaseDir   string
	Memory    string
	CPUs      string
	PidsLimit int

	log *logrus.Logger
}

func NewRunner(image, baseDir, memory, cpus string, pidsLimit int, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	return &Runner{
		Image:     image,
		BaseDir:   baseDir,
		Memory:    memory,
		CPUs:      cpus,
		PidsLimit: pidsLimit,
		log:       log,
	}
}

// Execute runs the program against the context bindings and produces exactly
// one ExecutionOutcome. The ctx deadline is the wall-clock budget: on expiry
// the container is force-removed so no work survives the deadline.
func (r *Runner) Execute(ctx context.Context, program domain.GeneratedProgram, env *domain.ExecutionContext) (domain.ExecutionOutcome, error) {
	workDir, err := os.MkdirTemp(r.BaseDir, "analysis-")
	if err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("create workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	if err := writeWorkspace(workDir, program, env); err != nil {
		return domain.ExecutionOutcome{}, fmt.Errorf("write workspace: %w", err)
	}

	name := "analysis-" + uuid.New().String()
	cmd := exec.CommandContext(ctx, "docker", r.runArgs(name, workDir)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if ctx.Err() != nil {
		// CommandContext only kills the docker CLI; the container itself
		// must be reaped or the work keeps running past the deadline.
		r.reap(name)
		r.log.WithField("container", name).Warn("execution timed out, container removed")
		return domain.TimedOut(), nil
	}

	return r.collect(workDir, runErr, stderr.String())
}

func (r *Runner) runArgs(name, workDir string) []string {
	return []string{
		"run", "--rm",
		"--name", name,
		"--network", "none",
		"--memory", r.Memory,
		"--cpus", r.CPUs,
		"--pids-limit", strconv.Itoa(r.PidsLimit),
		"--cap-drop", "ALL",
		"--security-opt", "no-new-privileges",
		"-v", fmt.Sprintf("%s:/workspace", workDir),
		"-w", "/workspace",
		r.Image,
		"python", "harness.py",
	}
}

// reap force-removes the container with a fresh command; the expired ctx
// must not cancel the cleanup itself.
func (r *Runner) reap(name string) {
	if err := exec.Command("docker", "rm", "-f", name).Run(); err != nil {
		r.log.WithField("container", name).WithError(err).Warn("container cleanup failed")
	}
}

// collect turns the workspace state after a run into an outcome. Priority:
// an explicit fault file beats the exit code, the exit code beats a missing
// result, and only a clean run with result.json is a success.
func (r *Runner) collect(workDir string, runErr error, stderr string) (domain.ExecutionOutcome, error) {
	if fault, ok := readFault(workDir); ok {
		return fault, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			return domain.Fault(domain.FaultRuntime, "execution failed: "+tail(stderr, stderrTailBytes)), nil
		}
		// docker binary missing, daemon down, etc. — host failure, not a
		// program fault
		return domain.ExecutionOutcome{}, fmt.Errorf("run container: %w", runErr)
	}

	raw, err := os.ReadFile(filepath.Join(workDir, "result.json"))
	if err != nil {
		return domain.Fault(domain.FaultNoResult, "program did not set the reserved result variable"), nil
	}

	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return domain.Fault(domain.FaultRuntime, "result slot holds invalid JSON: "+err.Error()), nil
	}
	return domain.Success(wrapper.Value), nil
}

func readFault(workDir string) (domain.ExecutionOutcome, bool) {
	raw, err := os.ReadFile(filepath.Join(workDir, "fault.json"))
	if err != nil {
		return domain.ExecutionOutcome{}, false
	}
	var f struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &f); err != nil || f.Kind == "" {
		return domain.Fault(domain.FaultRuntime, "program faulted"), true
	}
	return domain.Fault(f.Kind, f.Message), true
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "no stderr output"
	}
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
