package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/arkananta/data-analyst-agent/internal/application"
	domain "github.com/arkananta/data-analyst-agent/internal/domain/analysis"
)

// Budgets fixes the deadline split for one request. Generation + Execution
// + Slack must stay under Overall so normalization and persistence always
// have room; Slack also bounds the audit write after an expired request.
type Budgets struct {
	Overall    time.Duration
	Generation time.Duration
	Execution  time.Duration
	Slack      time.Duration

	// MaxGenerationRetries bounds transient generation retries per cycle.
	MaxGenerationRetries int
	// MaxCycles bounds fresh generate+execute cycles after a fault or
	// timeout. The same program is never executed twice.
	MaxCycles int
}

// Service implements the analysis use case: decode context, generate a
// program, execute it in the sandbox, normalize the result, and audit every
// attempt. The caller always receives a ResponseEnvelope within Overall.
type Service struct {
	Repo       domain.Repository
	Context    domain.ContextBuilder
	Prompts    domain.PromptBuilder
	Generator  domain.Generator
	Sandbox    domain.Sandbox
	Normalizer domain.Normalizer
	Artifacts  domain.ArtifactStore // optional
	Clock      application.Clock
	Budgets    Budgets
	Log        *logrus.Logger
}

// NewRequest mints a fresh AnalysisRequest. Every submission gets its own
// task id; identical resubmissions share nothing.
func NewRequest(question string, attachments []domain.AttachmentRef, now time.Time) *domain.AnalysisRequest {
	return &domain.AnalysisRequest{
		TaskID:      domain.TaskID(uuid.New().String()),
		Question:    question,
		Attachments: attachments,
		ReceivedAt:  now,
	}
}

// Analyze runs the full pipeline under the overall deadline and always
// returns an envelope, never an error.
func (s *Service) Analyze(ctx context.Context, req *domain.AnalysisRequest) *domain.ResponseEnvelope {
	start := s.Clock.Now()
	deadline := start.Add(s.Budgets.Overall)

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	log := s.logger().WithField("task_id", req.TaskID)

	env, decodeFailures := s.Context.Build(req.Attachments)
	for _, df := range decodeFailures {
		// recorded and excluded, never fatal to the request
		log.WithField("attachment", df.Identifier).WithError(df.Err).Warn("attachment decode failed")
	}

	prompt := s.Prompts.Build(req.Question, env.Manifest)

	var envelope *domain.ResponseEnvelope
	for attempt := 1; attempt <= s.maxCycles(); attempt++ {
		program, err := s.generate(ctx, prompt, deadline)
		if err != nil {
			envelope = s.errorEnvelope(req, start, err.Error())
			s.audit(req, attempt, domain.GeneratedProgram{}, envelope)
			return envelope
		}

		outcome, err := s.execute(ctx, program, env, deadline)
		if err != nil {
			log.WithError(err).Error("execution host failure")
			envelope = s.errorEnvelope(req, start, "execution failed: "+err.Error())
			s.audit(req, attempt, program, envelope)
			return envelope
		}

		switch outcome.Tag {
		case domain.OutcomeSuccess:
			value, err := s.Normalizer.Normalize(outcome.Value)
			if err != nil {
				envelope = s.errorEnvelope(req, start, err.Error())
			} else {
				envelope = &domain.ResponseEnvelope{
					TaskID:        req.TaskID,
					Status:        domain.StatusOK,
					Result:        value,
					ExecutionTime: s.elapsed(start),
				}
			}
			s.audit(req, attempt, program, envelope)
			return envelope

		case domain.OutcomeTimedOut:
			envelope = s.errorEnvelope(req, start,
				fmt.Sprintf("execution timed out after %s", s.Budgets.Execution))
		case domain.OutcomeFault:
			envelope = s.errorEnvelope(req, start, faultMessage(outcome))
		}

		s.audit(req, attempt, program, envelope)

		// A faulted or timed-out program is never re-executed. A fresh
		// cycle runs only when the remaining budget fits a whole one.
		if attempt < s.maxCycles() && s.cycleFits(deadline) {
			log.WithField("attempt", attempt).Info("retrying with a fresh program")
			continue
		}
		return envelope
	}
	return envelope
}

// generate calls the provider with its own sub-timeout, retrying transient
// failures while the budget allows. Terminal failures surface immediately.
func (s *Service) generate(ctx context.Context, prompt domain.Prompt, deadline time.Time) (domain.GeneratedProgram, error) {
	var lastErr error
	for try := 0; try <= s.Budgets.MaxGenerationRetries; try++ {
		budget := s.stageBudget(s.Budgets.Generation, deadline)
		if budget <= 0 {
			return domain.GeneratedProgram{}, domain.ErrDeadlineExceeded
		}

		gctx, cancel := context.WithTimeout(ctx, budget)
		program, err := s.Generator.Generate(gctx, prompt)
		cancel()

		if err == nil {
			return program, nil
		}
		lastErr = err

		var genErr *domain.GenerationError
		if !errors.As(err, &genErr) || !genErr.Transient {
			return domain.GeneratedProgram{}, err
		}
	}
	return domain.GeneratedProgram{}, lastErr
}

func (s *Service) execute(ctx context.Context, program domain.GeneratedProgram, env *domain.ExecutionContext, deadline time.Time) (domain.ExecutionOutcome, error) {
	budget := s.stageBudget(s.Budgets.Execution, deadline)
	if budget <= 0 {
		return domain.ExecutionOutcome{}, domain.ErrDeadlineExceeded
	}

	ectx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()
	return s.Sandbox.Execute(ectx, program, env)
}

// stageBudget caps a stage budget by what is left before the overall
// deadline, always keeping Slack back for normalization and persistence.
func (s *Service) stageBudget(want time.Duration, deadline time.Time) time.Duration {
	remaining := deadline.Sub(s.Clock.Now()) - s.Budgets.Slack
	if remaining < want {
		return remaining
	}
	return want
}

// cycleFits reports whether a full generate+execute cycle still fits.
func (s *Service) cycleFits(deadline time.Time) bool {
	remaining := deadline.Sub(s.Clock.Now())
	return remaining >= s.Budgets.Generation+s.Budgets.Execution+s.Budgets.Slack
}

// audit writes exactly one append-only record per attempt. The request
// deadline may already be spent, so persistence gets its own short context.
func (s *Service) audit(req *domain.AnalysisRequest, attempt int, program domain.GeneratedProgram, envelope *domain.ResponseEnvelope) {
	files := make([]string, 0, len(req.Attachments))
	for _, att := range req.Attachments {
		files = append(files, att.Filename)
	}

	rec := &domain.AuditRecord{
		ID:            fmt.Sprintf("%s-%d", req.TaskID, attempt),
		TaskID:        req.TaskID,
		Attempt:       attempt,
		Question:      req.Question,
		Files:         files,
		Status:        envelope.Status,
		ErrorDetail:   envelope.Error,
		GeneratedCode: program.Source,
		ExecutionTime: envelope.ExecutionTime,
		CreatedAt:     s.Clock.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.persistBudget())
	defer cancel()

	if s.Artifacts != nil && program.Source != "" {
		key := fmt.Sprintf("%s/attempt-%d/user_code.py", req.TaskID, attempt)
		url, err := s.Artifacts.Upload(ctx, key, []byte(program.Source), "text/x-python")
		if err != nil {
			s.logger().WithField("task_id", req.TaskID).WithError(err).Warn("artifact upload failed")
		} else {
			rec.ArtifactURL = url
		}
	}

	if err := s.Repo.Save(ctx, rec); err != nil {
		s.logger().WithField("task_id", req.TaskID).WithError(err).Error("audit write failed")
	}
}

func (s *Service) errorEnvelope(req *domain.AnalysisRequest, start time.Time, message string) *domain.ResponseEnvelope {
	return &domain.ResponseEnvelope{
		TaskID:        req.TaskID,
		Status:        domain.StatusError,
		Error:         message,
		ExecutionTime: s.elapsed(start),
	}
}

func (s *Service) elapsed(start time.Time) float64 {
	return s.Clock.Now().Sub(start).Seconds()
}

func (s *Service) maxCycles() int {
	if s.Budgets.MaxCycles <= 0 {
		return 1
	}
	return s.Budgets.MaxCycles
}

func (s *Service) persistBudget() time.Duration {
	if s.Budgets.Slack > 0 {
		return s.Budgets.Slack
	}
	return 5 * time.Second
}

func (s *Service) logger() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}

func faultMessage(outcome domain.ExecutionOutcome) string {
	msg := outcome.Message
	if msg == "" {
		msg = "generated program faulted"
	}
	if outcome.FaultKind != "" {
		return fmt.Sprintf("%s: %s", outcome.FaultKind, msg)
	}
	return msg
}

// Get returns the most recent audit record for a task.
func (s *Service) Get(ctx context.Context, id domain.TaskID) (*domain.AuditRecord, error) {
	return s.Repo.Get(ctx, id)
}

// Latest lists recent audit records.
func (s *Service) Latest(ctx context.Context, limit int) ([]*domain.AuditRecord, error) {
	return s.Repo.Latest(ctx, limit)
}
