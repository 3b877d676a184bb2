package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"

	"judger/internal/judge/model"
	"judger/internal/judge/repository"
	"judger/internal/judge/sandbox"
	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/workspace"
	"judger/pkg/utils/contextkey"
	"judger/pkg/utils/logger"
)

const (
	defaultCallbackPoolSize = 100
	defaultPublishTimeout   = 5 * time.Second
)

// Judger runs the judge pipeline for one job.
type Judger interface {
	Judge(ctx context.Context, job sandbox.Job) result.Verdict
}

// Deliverer hands a verdict to the backend.
type Deliverer interface {
	Deliver(ctx context.Context, verdict result.Verdict)
}

// Service accepts submissions and drives them through the judge and
// callback pools.
type Service struct {
	judger     Judger
	deliverer  Deliverer
	publisher  repository.VerdictEventPublisher
	tmpRoot    string
	jobTimeout time.Duration

	judgePool    *Pool
	callbackPool *Pool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// Config holds service dependencies and settings.
type Config struct {
	Judger           Judger
	Deliverer        Deliverer
	Publisher        repository.VerdictEventPublisher
	TmpRoot          string
	JudgePoolSize    int
	CallbackPoolSize int
	JobTimeout       time.Duration
}

// NewService creates a new judge service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Judger == nil {
		return nil, fmt.Errorf("judger is required")
	}
	if cfg.Deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if cfg.TmpRoot == "" {
		return nil, fmt.Errorf("tmp root is required")
	}
	judgeSize := cfg.JudgePoolSize
	if judgeSize <= 0 {
		judgeSize = runtime.NumCPU() + 1
	}
	callbackSize := cfg.CallbackPoolSize
	if callbackSize <= 0 {
		callbackSize = defaultCallbackPoolSize
	}
	judgePool, err := NewPool("judge", judgeSize)
	if err != nil {
		return nil, err
	}
	callbackPool, err := NewPool("callback", callbackSize)
	if err != nil {
		_ = judgePool.Shutdown(context.Background())
		return nil, err
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &Service{
		judger:       cfg.Judger,
		deliverer:    cfg.Deliverer,
		publisher:    cfg.Publisher,
		tmpRoot:      cfg.TmpRoot,
		jobTimeout:   cfg.JobTimeout,
		judgePool:    judgePool,
		callbackPool: callbackPool,
		baseCtx:      baseCtx,
		cancel:       cancel,
	}, nil
}

// Submit validates a request, prepares its working directory and enqueues
// the judge job. It returns once the job is queued.
func (s *Service) Submit(ctx context.Context, req model.JudgeRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	layout, err := workspace.Prepare(s.tmpRoot, req.SubmitID, req.Src, req.Source)
	if err != nil {
		return err
	}
	job := sandbox.Job{
		SubmitID:             req.SubmitID,
		ProblemID:            req.ProblemID,
		WorkDir:              layout.WorkDir,
		CompileCommand:       req.CompileCommand,
		RunCommand:           req.RunCommand,
		MaxCPUTime:           req.MaxCPUTime,
		MaxMemory:            req.MaxMemory,
		SeccompRule:          req.SeccompRuleName(),
		MemoryLimitCheckOnly: bool(req.MemoryLimitCheckOnly),
	}

	jobCtx := s.baseCtx
	if traceID := ctx.Value(contextkey.TraceID); traceID != nil {
		jobCtx = context.WithValue(jobCtx, contextkey.TraceID, traceID)
	}
	if err := s.judgePool.Submit(func() { s.runJob(jobCtx, job) }); err != nil {
		return err
	}
	logger.Info(ctx, "judge job queued",
		zap.Int64("submit_id", job.SubmitID),
		zap.Int64("problem_id", job.ProblemID),
		zap.Int("queued", s.judgePool.Queued()),
	)
	return nil
}

func (s *Service) runJob(ctx context.Context, job sandbox.Job) {
	judgeCtx := ctx
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		judgeCtx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	verdict := s.judger.Judge(judgeCtx, job)

	if err := s.callbackPool.Submit(func() { s.deliverer.Deliver(ctx, verdict) }); err != nil {
		logger.Error(ctx, "enqueue callback failed", zap.Int64("submit_id", verdict.SubmitID), zap.Error(err))
	}
	if s.publisher != nil {
		if err := s.callbackPool.Submit(func() { s.publish(ctx, verdict) }); err != nil {
			logger.Warn(ctx, "enqueue verdict mirror failed", zap.Int64("submit_id", verdict.SubmitID), zap.Error(err))
		}
	}
}

func (s *Service) publish(ctx context.Context, verdict result.Verdict) {
	ctx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	if err := s.publisher.PublishVerdict(ctx, verdict); err != nil {
		logger.Warn(ctx, "mirror verdict failed", zap.Int64("submit_id", verdict.SubmitID), zap.Error(err))
	}
}

// Stats reports pool occupancy.
type Stats struct {
	JudgeWorkers    int `json:"judge_workers"`
	JudgeRunning    int `json:"judge_running"`
	JudgeQueued     int `json:"judge_queued"`
	CallbackRunning int `json:"callback_running"`
	CallbackQueued  int `json:"callback_queued"`
}

// Stats returns a snapshot of pool occupancy.
func (s *Service) Stats() Stats {
	return Stats{
		JudgeWorkers:    s.judgePool.Cap(),
		JudgeRunning:    s.judgePool.Running(),
		JudgeQueued:     s.judgePool.Queued(),
		CallbackRunning: s.callbackPool.Running(),
		CallbackQueued:  s.callbackPool.Queued(),
	}
}

// Shutdown drains the judge pool, then the callback pool. Deliveries still
// waiting when ctx ends are cancelled.
func (s *Service) Shutdown(ctx context.Context) error {
	defer s.cancel()
	judgeErr := s.judgePool.Shutdown(ctx)
	callbackErr := s.callbackPool.Shutdown(ctx)
	return errors.Join(judgeErr, callbackErr)
}
