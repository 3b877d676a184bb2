package sandbox

import (
	"context"
	"path/filepath"
	"time"

	"judger/internal/judge/dataset"
	"judger/internal/judge/sandbox/observer"
	"judger/internal/judge/sandbox/profile"
	"judger/internal/judge/sandbox/result"
	"judger/internal/judge/sandbox/runner"
	"judger/internal/judge/sandbox/workspace"
	appErr "judger/pkg/errors"
	"judger/pkg/utils/contextkey"
	"judger/pkg/utils/logger"

	"go.uber.org/zap"
)

// Worker is the sandbox scheduling unit.
// It compiles a submission once and runs it against every case of its problem.
type Worker struct {
	runner   runner.Runner
	resolver *profile.Resolver
	datasets dataset.Source
	metrics  observer.MetricsRecorder
}

// NewWorker creates a new worker with required dependencies.
func NewWorker(r runner.Runner, resolver *profile.Resolver, datasets dataset.Source, metrics observer.MetricsRecorder) *Worker {
	if resolver == nil {
		resolver = profile.NewResolver(nil)
	}
	if metrics == nil {
		metrics = observer.NoopMetricsRecorder{}
	}
	return &Worker{
		runner:   r,
		resolver: resolver,
		datasets: datasets,
		metrics:  metrics,
	}
}

// Judge runs the whole pipeline and always yields a verdict. Faults are
// logged and reported as system verdicts.
func (w *Worker) Judge(ctx context.Context, job Job) (verdict result.Verdict) {
	ctx = context.WithValue(ctx, contextkey.SubmitID, job.SubmitID)
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error(ctx, "judge pipeline panicked", zap.Any("panic", rec), zap.Stack("stack"))
			verdict = systemVerdict(job.SubmitID, result.ClassSystemBroken, result.InfoSystemBroken)
		}
		w.metrics.ObserveVerdict(ctx, string(verdict.Class), time.Since(start))
		logger.Info(ctx, "judge finished",
			zap.Int64("problem_id", job.ProblemID),
			zap.String("class", string(verdict.Class)),
			zap.Int("cases", len(verdict.Results)),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	compileRes, err := w.runner.Compile(ctx, runner.CompileRequest{
		Command: job.CompileCommand,
		WorkDir: job.WorkDir,
	})
	if err != nil {
		logger.Error(ctx, "compile stage failed", zap.Error(err))
		return systemVerdict(job.SubmitID, result.ClassSystemBroken, result.InfoSystemBroken)
	}
	if !compileRes.OK {
		return compileErrorVerdict(job.SubmitID, compileRes.Message)
	}

	ds, err := w.datasets.Open(ctx, job.ProblemID)
	if err != nil {
		logger.Error(ctx, "open dataset failed", zap.Int64("problem_id", job.ProblemID), zap.Error(err))
		return systemVerdict(job.SubmitID, result.ClassSystemBroken, result.InfoSystemBroken)
	}

	results, err := w.ExecuteTests(ctx, w.Plan(job), ds)
	if err != nil {
		if appErr.Is(err, appErr.SpecialJudgeMissing) {
			logger.Error(ctx, "special judge missing", zap.String("data_dir", ds.Dir), zap.Error(err))
			return systemVerdict(job.SubmitID, result.ClassSpecialJudgeMissing, result.InfoSpecialJudgeMissing)
		}
		logger.Error(ctx, "execute tests failed", zap.Error(err))
		return systemVerdict(job.SubmitID, result.ClassSystemBroken, result.InfoSystemBroken)
	}
	if len(results) == 0 {
		logger.Warn(ctx, "no test data", zap.Int64("problem_id", job.ProblemID), zap.String("data_dir", ds.Dir))
		return systemVerdict(job.SubmitID, result.ClassNoTestData, result.InfoNoData)
	}
	return result.Verdict{
		SubmitID: job.SubmitID,
		Results:  results,
		Class:    result.ClassFromResults(results),
	}
}

// Plan resolves the per-case limits and arguments of a job.
func (w *Worker) Plan(job Job) Plan {
	return Plan{
		WorkDir:     job.WorkDir,
		RunCommand:  job.RunCommand,
		ExtraArgs:   w.resolver.ExtraArgs(job.RunCommand, job.MaxMemory),
		SeccompRule: job.SeccompRule,
		Limits:      w.resolver.RunLimits(job.RunCommand, job.MaxCPUTime, job.MaxMemory, job.MemoryLimitCheckOnly),
	}
}

// ExecuteTests runs the cases of ds in order and stops at the first failure.
// The returned slice holds every executed case, the failing one last.
func (w *Worker) ExecuteTests(ctx context.Context, plan Plan, ds dataset.Dataset) ([]result.CaseResult, error) {
	results := make([]result.CaseResult, 0, len(ds.Cases))
	for _, tc := range ds.Cases {
		outcome, err := w.runner.Run(ctx, runner.RunRequest{
			Command:     plan.RunCommand,
			ExtraArgs:   plan.ExtraArgs,
			WorkDir:     plan.WorkDir,
			InputPath:   tc.InputPath,
			OutputPath:  workspace.CaseOutput(tc.Stem),
			ErrorPath:   workspace.CaseError(tc.Stem),
			LogPath:     workspace.JudgerLog,
			SeccompRule: plan.SeccompRule,
			Limits:      plan.Limits,
		})
		if err != nil {
			return results, appErr.Wrapf(err, appErr.JudgeSystemError, "run case %s failed", tc.Stem)
		}

		caseRes := result.CaseResult{TestCase: tc.Stem, Outcome: outcome}
		if outcome.Result != result.StatusSuccess {
			logger.Debug(ctx, "case failed in sandbox", zap.String("test_case", tc.Stem), zap.String("status", outcome.Result.String()))
			return append(results, caseRes), nil
		}

		ok, err := w.check(ctx, plan, ds, tc)
		if err != nil {
			return results, err
		}
		if !ok {
			logger.Debug(ctx, "wrong answer", zap.String("test_case", tc.Stem))
			caseRes.Result = result.StatusWrongAnswer
			return append(results, caseRes), nil
		}
		results = append(results, caseRes)
	}
	return results, nil
}

func (w *Worker) check(ctx context.Context, plan Plan, ds dataset.Dataset, tc dataset.Case) (bool, error) {
	if ds.SpecialJudged {
		return w.runner.SpecialJudge(ctx, runner.SpecialJudgeRequest{
			DataDir:  ds.Dir,
			WorkDir:  plan.WorkDir,
			CaseStem: tc.Stem,
		})
	}
	return runner.Compare(tc.AnswerPath, filepath.Join(plan.WorkDir, workspace.CaseOutput(tc.Stem))), nil
}

func compileErrorVerdict(submitID int64, message string) result.Verdict {
	return result.Verdict{
		SubmitID: submitID,
		Err:      result.ErrCompile,
		Info:     message,
		Class:    result.ClassCompileError,
	}
}

func systemVerdict(submitID int64, class result.Class, info string) result.Verdict {
	return result.Verdict{
		SubmitID: submitID,
		Err:      result.ErrSystem,
		Info:     info,
		Class:    class,
	}
}
