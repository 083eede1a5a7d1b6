package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/time/rate"

	"lcterm/internal/common"
	"lcterm/internal/credentials"
	"lcterm/internal/markup"
	"lcterm/internal/telemetry"
)

const (
	DefaultBaseURL     = "https://leetcode.com"
	defaultMaxAttempts = 3
	defaultBackoff     = 250 * time.Millisecond
	defaultTimeout     = 15 * time.Second
	defaultRate        = 5
	categoryAll        = "all-code-essentials"
	maxDetailBytes     = 4 << 20
	snippetWidth       = 160
)

type Options struct {
	BaseURL    string
	Session    credentials.Session
	HTTPClient *http.Client
	// MaxAttempts bounds retries of transport failures. Zero means 3.
	MaxAttempts int
	Backoff     time.Duration
	// RatePerSecond paces outgoing requests; negative disables pacing.
	RatePerSecond float64
	Logger        *telemetry.Logger
	// Render turns description HTML into text. Defaults to markup.ToText.
	Render func(string) string
}

// Client talks to the judge's single GraphQL endpoint.
type Client struct {
	base        string
	session     credentials.Session
	http        *http.Client
	maxAttempts int
	backoff     time.Duration
	limiter     *rate.Limiter
	logger      *telemetry.Logger
	render      func(string) string
}

// ProblemPage is one page of the problem set plus the size of the whole
// filtered set.
type ProblemPage struct {
	Problems []ProblemSummary
	Total    int
}

func NewClient(opts Options) *Client {
	c := &Client{
		base:        strings.TrimRight(opts.BaseURL, "/"),
		session:     opts.Session,
		http:        opts.HTTPClient,
		maxAttempts: opts.MaxAttempts,
		backoff:     opts.Backoff,
		logger:      opts.Logger,
		render:      opts.Render,
	}
	if c.base == "" {
		c.base = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: defaultTimeout}
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.backoff <= 0 {
		c.backoff = defaultBackoff
	}
	switch {
	case opts.RatePerSecond < 0:
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	case opts.RatePerSecond == 0:
		c.limiter = rate.NewLimiter(rate.Limit(defaultRate), defaultRate)
	default:
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), max(1, int(opts.RatePerSecond)))
	}
	if c.render == nil {
		c.render = markup.ToText
	}
	return c
}

func (c *Client) HasSession() bool { return c.session.Present() }

// ProblemURL is the canonical page of a problem.
func (c *Client) ProblemURL(slug string) string {
	return c.base + "/problems/" + slug + "/"
}

type listQuestion struct {
	FrontendQuestionID string  `json:"frontendQuestionId"`
	Title              string  `json:"title"`
	TitleSlug          string  `json:"titleSlug"`
	Difficulty         string  `json:"difficulty"`
	AcRate             float64 `json:"acRate"`
	IsPaidOnly         bool    `json:"isPaidOnly"`
	Status             *string `json:"status"`
	TopicTags          []struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	} `json:"topicTags"`
}

func (q listQuestion) summary() ProblemSummary {
	tags := make([]string, 0, len(q.TopicTags))
	for _, t := range q.TopicTags {
		tags = append(tags, t.Name)
	}
	return ProblemSummary{
		ID:         q.FrontendQuestionID,
		Slug:       q.TitleSlug,
		Title:      q.Title,
		Difficulty: ParseDifficulty(q.Difficulty),
		Status:     parseStatus(q.Status),
		Tags:       tags,
		PaidOnly:   q.IsPaidOnly,
		AcRate:     q.AcRate,
	}
}

func (c *Client) FetchProblemList(ctx context.Context, filter ListFilter) (ProblemPage, error) {
	filter = filter.Normalize()
	vars := map[string]any{
		"categorySlug": categoryAll,
		"skip":         filter.Skip,
		"limit":        filter.Limit,
		"filters":      listFilters(filter),
	}
	var data struct {
		List *struct {
			Total     int            `json:"total"`
			Questions []listQuestion `json:"questions"`
		} `json:"problemsetQuestionList"`
	}
	if err := c.do(ctx, opProblemList, problemListQuery, vars, "/problemset/", false, &data); err != nil {
		return ProblemPage{}, err
	}
	if data.List == nil {
		return ProblemPage{}, common.Errorf(common.ErrRemoteRejected, opProblemList, "empty problem list")
	}
	page := ProblemPage{Total: data.List.Total, Problems: make([]ProblemSummary, 0, len(data.List.Questions))}
	for _, q := range data.List.Questions {
		page.Problems = append(page.Problems, q.summary())
	}
	return page, nil
}

func listFilters(f ListFilter) map[string]any {
	out := map[string]any{}
	if f.Difficulty != "" {
		out["difficulty"] = strings.ToUpper(string(f.Difficulty))
	}
	switch f.Status {
	case StatusSolved:
		out["status"] = "AC"
	case StatusAttempted:
		out["status"] = "TRIED"
	case StatusUntouched:
		out["status"] = "NOT_STARTED"
	}
	if f.Search != "" {
		out["searchKeywords"] = f.Search
	}
	if len(f.Tags) > 0 {
		out["tags"] = f.Tags
	}
	return out
}

// FetchProblemDetail loads one problem by its URL slug.
func (c *Client) FetchProblemDetail(ctx context.Context, slug string) (Problem, error) {
	var data struct {
		Question *struct {
			listQuestion
			QuestionID   string  `json:"questionId"`
			Content      *string `json:"content"`
			CodeSnippets []struct {
				Lang     string `json:"lang"`
				LangSlug string `json:"langSlug"`
				Code     string `json:"code"`
			} `json:"codeSnippets"`
			Hints            []string `json:"hints"`
			ExampleTestcases string   `json:"exampleTestcases"`
		} `json:"question"`
	}
	vars := map[string]any{"titleSlug": slug}
	if err := c.do(ctx, opQuestionDetail, questionDetailQuery, vars, "/problems/"+slug+"/", false, &data); err != nil {
		return Problem{}, err
	}
	q := data.Question
	if q == nil {
		return Problem{}, common.Errorf(common.ErrNotFound, opQuestionDetail, "%s", slug)
	}
	s := q.summary()
	p := Problem{
		ID:              s.ID,
		QuestionID:      q.QuestionID,
		Slug:            s.Slug,
		Title:           s.Title,
		Difficulty:      s.Difficulty,
		Status:          s.Status,
		Tags:            s.Tags,
		PaidOnly:        s.PaidOnly,
		AcRate:          s.AcRate,
		Hints:           q.Hints,
		ExampleTestcase: q.ExampleTestcases,
	}
	if q.Content != nil {
		p.Description = c.render(*q.Content)
		p.Examples = ExtractExamples(p.Description)
	}
	for _, sn := range q.CodeSnippets {
		p.Snippets = append(p.Snippets, CodeSnippet{Lang: sn.Lang, LangSlug: sn.LangSlug, Code: sn.Code})
	}
	return p, nil
}

// Submit queues source for grading. It never touches the network without a
// session.
func (c *Client) Submit(ctx context.Context, p Problem, source, lang string) (SubmissionHandle, error) {
	if !c.session.Present() {
		return SubmissionHandle{}, setupRequired(opSubmitSolution)
	}
	vars := map[string]any{
		"titleSlug":  p.Slug,
		"questionId": p.QuestionID,
		"lang":       lang,
		"typedCode":  source,
	}
	var data struct {
		Submit *struct {
			SubmissionID json.Number `json:"submissionId"`
		} `json:"submitSolution"`
	}
	if err := c.do(ctx, opSubmitSolution, submitSolutionMutation, vars, "/problems/"+p.Slug+"/", true, &data); err != nil {
		return SubmissionHandle{}, err
	}
	if data.Submit == nil || data.Submit.SubmissionID == "" {
		return SubmissionHandle{}, common.Errorf(common.ErrRemoteRejected, opSubmitSolution, "no submission id returned")
	}
	c.logger.Info("judge.submitted", map[string]any{"problem": p.ID, "submission": data.Submit.SubmissionID.String(), "lang": lang})
	return SubmissionHandle{ID: data.Submit.SubmissionID.String(), ProblemID: p.ID}, nil
}

// RunCode runs source against the problem's example cases without recording
// a submission. Poll the handle like a submission.
func (c *Client) RunCode(ctx context.Context, p Problem, source, lang string) (SubmissionHandle, error) {
	if !c.session.Present() {
		return SubmissionHandle{}, setupRequired(opRunCode)
	}
	if strings.TrimSpace(p.ExampleTestcase) == "" {
		return SubmissionHandle{}, common.Errorf(common.ErrRemoteRejected, opRunCode, "problem %s has no example cases to run", p.ID)
	}
	vars := map[string]any{
		"titleSlug":  p.Slug,
		"questionId": p.QuestionID,
		"lang":       lang,
		"typedCode":  source,
		"dataInput":  p.ExampleTestcase,
	}
	var data struct {
		Run *struct {
			InterpretID string `json:"interpretId"`
		} `json:"interpretSolution"`
	}
	if err := c.do(ctx, opRunCode, interpretSolutionMutation, vars, "/problems/"+p.Slug+"/", true, &data); err != nil {
		return SubmissionHandle{}, err
	}
	if data.Run == nil || data.Run.InterpretID == "" {
		return SubmissionHandle{}, common.Errorf(common.ErrRemoteRejected, opRunCode, "no run id returned")
	}
	c.logger.Info("judge.run_queued", map[string]any{"problem": p.ID, "run": data.Run.InterpretID, "lang": lang})
	return SubmissionHandle{ID: data.Run.InterpretID, ProblemID: p.ID, Run: true}, nil
}

// PollSubmission asks once for the current state of a graded job.
func (c *Client) PollSubmission(ctx context.Context, h SubmissionHandle) (Submission, error) {
	if h.Run {
		return c.pollRun(ctx, h)
	}
	if !c.session.Present() {
		return Submission{}, setupRequired(opSubmissionStatus)
	}
	var data struct {
		Status *struct {
			State          string `json:"state"`
			StatusMsg      string `json:"statusMsg"`
			StatusRuntime  string `json:"statusRuntime"`
			RuntimeMs      *int   `json:"runtimeMs"`
			Memory         *int64 `json:"memory"`
			TotalCorrect   *int   `json:"totalCorrect"`
			TotalTestcases *int   `json:"totalTestcases"`
			CompileError   string `json:"compileError"`
			RuntimeError   string `json:"runtimeError"`
			LastTestcase   string `json:"lastTestcase"`
			ExpectedOutput string `json:"expectedOutput"`
			CodeOutput     string `json:"codeOutput"`
		} `json:"submissionStatus"`
	}
	vars := map[string]any{"submissionId": h.ID}
	if err := c.do(ctx, opSubmissionStatus, submissionStatusQuery, vars, "/submissions/detail/"+h.ID+"/", true, &data); err != nil {
		return Submission{}, err
	}
	sub := Submission{ProblemID: h.ProblemID, Handle: h, Verdict: VerdictPending}
	st := data.Status
	if st == nil {
		return sub, nil
	}
	sub.Verdict = parseVerdict(st.State, st.StatusMsg)
	if !sub.Verdict.Terminal() {
		return sub, nil
	}
	if st.RuntimeMs != nil {
		sub.Runtime = time.Duration(*st.RuntimeMs) * time.Millisecond
	} else if ms, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(st.StatusRuntime), " ms")); err == nil {
		sub.Runtime = time.Duration(ms) * time.Millisecond
	}
	if st.Memory != nil && *st.Memory > 0 {
		sub.MemoryBytes = uint64(*st.Memory)
	}
	if st.TotalCorrect != nil {
		sub.TotalCorrect = *st.TotalCorrect
	}
	if st.TotalTestcases != nil {
		sub.TotalTestcases = *st.TotalTestcases
	}
	sub.CompileError = st.CompileError
	sub.RuntimeError = st.RuntimeError
	sub.LastTestcase = st.LastTestcase
	sub.ExpectedOutput = st.ExpectedOutput
	sub.CodeOutput = st.CodeOutput
	return sub, nil
}

func (c *Client) pollRun(ctx context.Context, h SubmissionHandle) (Submission, error) {
	if !c.session.Present() {
		return Submission{}, setupRequired(opRunStatus)
	}
	var data struct {
		Status *struct {
			State          string   `json:"state"`
			StatusMsg      string   `json:"statusMsg"`
			StatusRuntime  string   `json:"statusRuntime"`
			RuntimeMs      *int     `json:"runtimeMs"`
			Memory         *int64   `json:"memory"`
			TotalCorrect   *int     `json:"totalCorrect"`
			TotalTestcases *int     `json:"totalTestcases"`
			CompileError   string   `json:"compileError"`
			RuntimeError   string   `json:"runtimeError"`
			CorrectAnswer  *bool    `json:"correctAnswer"`
			CodeAnswer     []string `json:"codeAnswer"`
			Expected       []string `json:"expectedCodeAnswer"`
		} `json:"interpretStatus"`
	}
	vars := map[string]any{"interpretId": h.ID}
	if err := c.do(ctx, opRunStatus, interpretStatusQuery, vars, "/submissions/detail/"+h.ID+"/check/", true, &data); err != nil {
		return Submission{}, err
	}
	sub := Submission{ProblemID: h.ProblemID, Handle: h, Verdict: VerdictPending, Run: true}
	st := data.Status
	if st == nil {
		return sub, nil
	}
	sub.Verdict = parseVerdict(st.State, st.StatusMsg)
	if !sub.Verdict.Terminal() {
		return sub, nil
	}
	// A run that executes cleanly reports "Accepted" even when the answers
	// differ from the expected ones.
	if sub.Verdict == VerdictAccepted && st.CorrectAnswer != nil && !*st.CorrectAnswer {
		sub.Verdict = VerdictWrongAnswer
	}
	if st.RuntimeMs != nil {
		sub.Runtime = time.Duration(*st.RuntimeMs) * time.Millisecond
	} else if ms, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(st.StatusRuntime), " ms")); err == nil {
		sub.Runtime = time.Duration(ms) * time.Millisecond
	}
	if st.Memory != nil && *st.Memory > 0 {
		sub.MemoryBytes = uint64(*st.Memory)
	}
	if st.TotalCorrect != nil {
		sub.TotalCorrect = *st.TotalCorrect
	}
	if st.TotalTestcases != nil {
		sub.TotalTestcases = *st.TotalTestcases
	}
	sub.CompileError = st.CompileError
	sub.RuntimeError = st.RuntimeError
	sub.Outputs = st.CodeAnswer
	sub.Expected = st.Expected
	return sub, nil
}

type difficultyCount struct {
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

// FetchUserStats reports the signed-in user's solved counts per difficulty.
func (c *Client) FetchUserStats(ctx context.Context) (UserStats, error) {
	if !c.session.Present() {
		return UserStats{}, setupRequired(opUserStatus)
	}
	var who struct {
		Status *struct {
			Username   string `json:"username"`
			IsSignedIn bool   `json:"isSignedIn"`
		} `json:"userStatus"`
	}
	if err := c.do(ctx, opUserStatus, userStatusQuery, map[string]any{}, "/problemset/", true, &who); err != nil {
		return UserStats{}, err
	}
	if who.Status == nil || !who.Status.IsSignedIn || who.Status.Username == "" {
		return UserStats{}, &common.Error{Kind: common.ErrAuth, Op: opUserStatus, Detail: "session is not signed in"}
	}
	name := who.Status.Username

	var data struct {
		All  []difficultyCount `json:"allQuestionsCount"`
		User *struct {
			Stats struct {
				Accepted []difficultyCount `json:"acSubmissionNum"`
			} `json:"submitStatsGlobal"`
		} `json:"matchedUser"`
	}
	vars := map[string]any{"username": name}
	if err := c.do(ctx, opUserProgress, userProgressQuery, vars, "/u/"+name+"/", true, &data); err != nil {
		return UserStats{}, err
	}
	if data.User == nil {
		return UserStats{}, common.Errorf(common.ErrRemoteRejected, opUserProgress, "no profile for %s", name)
	}
	stats := UserStats{Username: name}
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		stats.Counts = append(stats.Counts, DifficultyCount{
			Difficulty: d,
			Solved:     countFor(data.User.Stats.Accepted, d),
			Total:      countFor(data.All, d),
		})
	}
	solved, total := stats.Solved()
	c.logger.Debug("judge.user_stats", map[string]any{"user": name, "solved": solved, "total": total})
	return stats, nil
}

func countFor(counts []difficultyCount, d Difficulty) int {
	for _, c := range counts {
		if ParseDifficulty(c.Difficulty) == d {
			return c.Count
		}
	}
	return 0
}

func setupRequired(op string) error {
	return &common.Error{Kind: common.ErrAuth, Op: op, Detail: "no session tokens configured", Err: common.ErrSetupRequired}
}

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// do sends one operation, retrying transport failures with exponential
// backoff. Everything else is returned on the first attempt.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, referer string, auth bool, out any) error {
	body, err := json.Marshal(gqlRequest{OperationName: op, Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}
	var last error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return ctxErr(ctx, err)
		}
		last = c.once(ctx, op, body, referer, auth, out)
		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !common.Retryable(last) || attempt == c.maxAttempts {
			break
		}
		wait := c.backoff << (attempt - 1)
		c.logger.Warn("judge.retry", map[string]any{"op": op, "attempt": attempt, "wait": wait.String(), "error": last.Error()})
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	c.logger.Error("judge.failed", map[string]any{"op": op, "error": last.Error()})
	return last
}

func (c *Client) once(ctx context.Context, op string, body []byte, referer string, auth bool, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/graphql", bytes.NewReader(body))
	if err != nil {
		return common.Wrap(common.ErrRemoteRejected, op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", c.base+referer)
	req.Header.Set("Origin", c.base)
	if c.session.Present() {
		req.AddCookie(&http.Cookie{Name: credentials.SessionCookie, Value: c.session.ID})
		req.AddCookie(&http.Cookie{Name: credentials.CSRFCookie, Value: c.session.CSRF})
		req.Header.Set("x-csrftoken", c.session.CSRF)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return common.Wrap(common.ErrTransport, op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))
	if err != nil {
		return common.Wrap(common.ErrTransport, op, err)
	}
	c.logger.Debug("judge.response", map[string]any{"op": op, "status": resp.StatusCode, "elapsed_ms": time.Since(start).Milliseconds()})

	switch {
	case resp.StatusCode >= 500:
		return &common.Error{Kind: common.ErrTransport, Op: op, Status: resp.StatusCode, Detail: snippet(raw)}
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return &common.Error{Kind: common.ErrAuth, Op: op, Status: resp.StatusCode, Detail: "session rejected"}
	case resp.StatusCode >= 400:
		return &common.Error{Kind: common.ErrRemoteRejected, Op: op, Status: resp.StatusCode, Detail: rejectDetail(resp.StatusCode, raw)}
	}

	var env gqlResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return &common.Error{Kind: common.ErrRemoteRejected, Op: op, Status: resp.StatusCode, Detail: "malformed response", Err: err}
	}
	if len(env.Errors) > 0 {
		msgs := make([]string, 0, len(env.Errors))
		for _, e := range env.Errors {
			msgs = append(msgs, e.Message)
		}
		msg := strings.Join(msgs, "; ")
		if authMessage(msg) {
			return &common.Error{Kind: common.ErrAuth, Op: op, Detail: msg}
		}
		return &common.Error{Kind: common.ErrRemoteRejected, Op: op, Detail: msg}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		if auth {
			return &common.Error{Kind: common.ErrAuth, Op: op, Detail: "empty response for authenticated request"}
		}
		return &common.Error{Kind: common.ErrRemoteRejected, Op: op, Detail: "empty response"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &common.Error{Kind: common.ErrRemoteRejected, Op: op, Detail: "unexpected response shape", Err: err}
	}
	return nil
}

func authMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "not logged in") ||
		strings.Contains(m, "authenticat") ||
		strings.Contains(m, "permission")
}

func rejectDetail(status int, raw []byte) string {
	var env gqlResponse
	if json.Unmarshal(raw, &env) == nil && len(env.Errors) > 0 {
		return env.Errors[0].Message
	}
	if status == http.StatusTooManyRequests {
		return "rate limited, try again shortly"
	}
	if s := snippet(raw); s != "" {
		return s
	}
	return http.StatusText(status)
}

// snippet is a short, printable excerpt of a response body for status lines.
func snippet(raw []byte) string {
	s := strings.ToValidUTF8(strings.TrimSpace(string(raw)), "")
	return ansi.Truncate(ansi.Strip(s), snippetWidth, "...")
}

func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.Wrap(common.ErrTransport, "rate", err)
	}
	return err
}
