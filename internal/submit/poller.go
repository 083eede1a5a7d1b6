// Package submit sends a solution to the judge and waits for its verdict.
package submit

import (
	"context"
	"time"

	"lcterm/internal/judge"
	"lcterm/internal/telemetry"
)

const (
	DefaultMaxAttempts  = 10
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxDelay     = 4 * time.Second
	DefaultFactor       = 1.6
)

type Judge interface {
	Submit(ctx context.Context, p judge.Problem, source, lang string) (judge.SubmissionHandle, error)
	RunCode(ctx context.Context, p judge.Problem, source, lang string) (judge.SubmissionHandle, error)
	PollSubmission(ctx context.Context, h judge.SubmissionHandle) (judge.Submission, error)
}

// Progress is reported after every poll.
type Progress struct {
	Handle      judge.SubmissionHandle
	Attempt     int
	MaxAttempts int
	Verdict     judge.Verdict
}

type Poller struct {
	Judge        Judge
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Factor       float64
	Logger       *telemetry.Logger
	OnProgress   func(Progress)

	after func(time.Duration) <-chan time.Time
}

// SubmitAndAwait submits source and polls until the verdict is terminal.
// When attempts run out the submission comes back with VerdictTimeout.
// Cancelling ctx only stops the local wait; the judge keeps grading.
func (p *Poller) SubmitAndAwait(ctx context.Context, problem judge.Problem, source, lang string) (judge.Submission, error) {
	return p.startAndAwait(ctx, p.Judge.Submit, problem, source, lang)
}

// RunAndAwait runs source against the example cases and waits for the
// answers the same way SubmitAndAwait waits for a verdict.
func (p *Poller) RunAndAwait(ctx context.Context, problem judge.Problem, source, lang string) (judge.Submission, error) {
	return p.startAndAwait(ctx, p.Judge.RunCode, problem, source, lang)
}

type startFunc func(ctx context.Context, p judge.Problem, source, lang string) (judge.SubmissionHandle, error)

func (p *Poller) startAndAwait(ctx context.Context, start startFunc, problem judge.Problem, source, lang string) (judge.Submission, error) {
	h, err := start(ctx, problem, source, lang)
	if err != nil {
		return judge.Submission{}, err
	}
	p.Logger.Info("submit.queued", map[string]any{"problem": problem.ID, "submission": h.ID, "run": h.Run})
	sub, err := p.Await(ctx, h)
	sub.Source = source
	sub.Language = lang
	sub.Run = h.Run
	if sub.Run && sub.Input == "" {
		sub.Input = problem.ExampleTestcase
	}
	if sub.ProblemID == "" {
		sub.ProblemID = problem.ID
	}
	return sub, err
}

// Await polls an already submitted job.
func (p *Poller) Await(ctx context.Context, h judge.SubmissionHandle) (judge.Submission, error) {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	delay := p.InitialDelay
	if delay <= 0 {
		delay = DefaultInitialDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	factor := p.Factor
	if factor < 1 {
		factor = DefaultFactor
	}
	after := p.after
	if after == nil {
		after = time.After
	}

	last := judge.Submission{ProblemID: h.ProblemID, Handle: h, Verdict: judge.VerdictPending}
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			p.Logger.Info("submit.wait_cancelled", map[string]any{"submission": h.ID, "attempt": attempt})
			return last, ctx.Err()
		case <-after(delay):
		}

		sub, err := p.Judge.PollSubmission(ctx, h)
		if err != nil {
			return last, err
		}
		sub.Attempts = attempt
		last = sub
		if p.OnProgress != nil {
			p.OnProgress(Progress{Handle: h, Attempt: attempt, MaxAttempts: attempts, Verdict: sub.Verdict})
		}
		if sub.Verdict.Terminal() {
			p.Logger.Info("submit.verdict", map[string]any{"submission": h.ID, "verdict": string(sub.Verdict), "attempts": attempt})
			return sub, nil
		}

		delay = time.Duration(float64(delay) * factor)
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	p.Logger.Warn("submit.timeout", map[string]any{"submission": h.ID, "attempts": attempts})
	last.Verdict = judge.VerdictTimeout
	last.Attempts = attempts
	return last, nil
}
