package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"judger/internal/judge/model"
	"judger/internal/judge/sandbox"
	"judger/internal/judge/sandbox/result"
	"judger/pkg/utils/contextkey"

	appErr "judger/pkg/errors"
)

type recordingJudger struct {
	mu   sync.Mutex
	jobs []sandbox.Job
	seen []any
}

func (j *recordingJudger) Judge(ctx context.Context, job sandbox.Job) result.Verdict {
	j.mu.Lock()
	j.jobs = append(j.jobs, job)
	j.seen = append(j.seen, ctx.Value(contextkey.TraceID))
	j.mu.Unlock()
	return result.Verdict{SubmitID: job.SubmitID, Class: result.ClassAccepted}
}

type channelDeliverer struct {
	verdicts chan result.Verdict
}

func (d *channelDeliverer) Deliver(ctx context.Context, verdict result.Verdict) {
	d.verdicts <- verdict
}

type recordingPublisher struct {
	published chan result.Verdict
}

func (p *recordingPublisher) PublishVerdict(ctx context.Context, verdict result.Verdict) error {
	p.published <- verdict
	return nil
}

func validRequest(submitID int64) model.JudgeRequest {
	return model.JudgeRequest{
		SubmitID:       submitID,
		ProblemID:      3,
		MaxCPUTime:     1000,
		MaxMemory:      64 << 20,
		Src:            "main.cpp",
		RunCommand:     "./main",
		CompileCommand: "/usr/bin/g++ main.cpp -o main",
		Source:         "int main(){}",
	}
}

func newTestService(t *testing.T, judger Judger, deliverer Deliverer, cfg Config) *Service {
	t.Helper()
	cfg.Judger = judger
	cfg.Deliverer = deliverer
	if cfg.TmpRoot == "" {
		cfg.TmpRoot = t.TempDir()
	}
	if cfg.JudgePoolSize == 0 {
		cfg.JudgePoolSize = 2
	}
	if cfg.CallbackPoolSize == 0 {
		cfg.CallbackPoolSize = 2
	}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("new service failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc
}

func waitVerdict(t *testing.T, ch <-chan result.Verdict) result.Verdict {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for verdict")
	}
	return result.Verdict{}
}

func TestSubmitDeliversVerdict(t *testing.T) {
	t.Parallel()
	judger := &recordingJudger{}
	deliverer := &channelDeliverer{verdicts: make(chan result.Verdict, 1)}
	tmp := t.TempDir()
	svc := newTestService(t, judger, deliverer, Config{TmpRoot: tmp})

	ctx := context.WithValue(context.Background(), contextkey.TraceID, "trace-1")
	if err := svc.Submit(ctx, validRequest(7)); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	verdict := waitVerdict(t, deliverer.verdicts)
	if verdict.SubmitID != 7 || verdict.Class != result.ClassAccepted {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}

	judger.mu.Lock()
	defer judger.mu.Unlock()
	job := judger.jobs[0]
	if job.WorkDir != filepath.Join(tmp, "7") {
		t.Fatalf("unexpected work dir: %s", job.WorkDir)
	}
	if job.ProblemID != 3 || job.MaxCPUTime != 1000 || job.RunCommand != "./main" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if judger.seen[0] != "trace-1" {
		t.Fatalf("expected trace id to reach the job, got %v", judger.seen[0])
	}
	source, err := os.ReadFile(filepath.Join(tmp, "7", "main.cpp"))
	if err != nil || string(source) != "int main(){}" {
		t.Fatalf("expected source written, got %q err=%v", source, err)
	}
}

// blockingJudger holds every job inside Judge until release is closed.
type blockingJudger struct {
	entered chan sandbox.Job
	release chan struct{}
}

func (j *blockingJudger) Judge(ctx context.Context, job sandbox.Job) result.Verdict {
	j.entered <- job
	<-j.release
	// The job keeps using its directory after a re-submission wiped it.
	_ = os.WriteFile(filepath.Join(job.WorkDir, "1.out"), []byte("3\n"), 0644)
	return result.Verdict{SubmitID: job.SubmitID, Class: result.ClassAccepted}
}

func TestSubmitSameIDWhileRunning(t *testing.T) {
	t.Parallel()
	judger := &blockingJudger{entered: make(chan sandbox.Job, 2), release: make(chan struct{})}
	deliverer := &channelDeliverer{verdicts: make(chan result.Verdict, 2)}
	svc := newTestService(t, judger, deliverer, Config{JudgePoolSize: 2})

	if err := svc.Submit(context.Background(), validRequest(11)); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	select {
	case <-judger.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("first job never started")
	}

	if err := svc.Submit(context.Background(), validRequest(11)); err != nil {
		t.Fatalf("re-submit while running failed: %v", err)
	}
	select {
	case <-judger.entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("second job never started")
	}
	close(judger.release)

	for i := 0; i < 2; i++ {
		if v := waitVerdict(t, deliverer.verdicts); v.SubmitID != 11 {
			t.Fatalf("unexpected verdict: %+v", v)
		}
	}
	select {
	case v := <-deliverer.verdicts:
		t.Fatalf("expected exactly two verdicts, got extra %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubmitRejectsInvalidRequest(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &recordingJudger{}, &channelDeliverer{verdicts: make(chan result.Verdict, 1)}, Config{})

	cases := []struct {
		name string
		mut  func(r *model.JudgeRequest)
		code appErr.ErrorCode
	}{
		{name: "missing run command", mut: func(r *model.JudgeRequest) { r.RunCommand = "" }, code: appErr.ValidationFailed},
		{name: "escaping src", mut: func(r *model.JudgeRequest) { r.Src = "../main.cpp" }, code: appErr.ValidationFailed},
		{name: "oversized source", mut: func(r *model.JudgeRequest) { r.Source = string(make([]byte, model.MaxSourceBytes+1)) }, code: appErr.CodeTooLarge},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest(1)
			tc.mut(&req)
			err := svc.Submit(context.Background(), req)
			if !appErr.Is(err, tc.code) {
				t.Fatalf("expected code %d, got %v", tc.code, err)
			}
		})
	}
}

func TestSubmitMirrorsVerdict(t *testing.T) {
	t.Parallel()
	deliverer := &channelDeliverer{verdicts: make(chan result.Verdict, 1)}
	publisher := &recordingPublisher{published: make(chan result.Verdict, 1)}
	svc := newTestService(t, &recordingJudger{}, deliverer, Config{Publisher: publisher})

	if err := svc.Submit(context.Background(), validRequest(5)); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	waitVerdict(t, deliverer.verdicts)
	if v := waitVerdict(t, publisher.published); v.SubmitID != 5 {
		t.Fatalf("unexpected mirrored verdict: %+v", v)
	}
}

func TestSubmitAfterShutdown(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, &recordingJudger{}, &channelDeliverer{verdicts: make(chan result.Verdict, 1)}, Config{})
	if err := svc.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if err := svc.Submit(context.Background(), validRequest(1)); !appErr.Is(err, appErr.JudgeQueueClosed) {
		t.Fatalf("expected queue closed, got %v", err)
	}
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	t.Parallel()
	if _, err := NewService(Config{Deliverer: &channelDeliverer{}, TmpRoot: "/tmp"}); err == nil {
		t.Fatalf("expected missing judger error")
	}
	if _, err := NewService(Config{Judger: &recordingJudger{}, TmpRoot: "/tmp"}); err == nil {
		t.Fatalf("expected missing deliverer error")
	}
}
