package devtools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gosimple/slug"

	"lcterm/internal/credentials"
	"lcterm/internal/telemetry"
)

var langNames = map[string]string{
	"rust":    "Rust",
	"golang":  "Go",
	"python3": "Python3",
	"cpp":     "C++",
}

type Options struct {
	Catalog Catalog
	// PendingPolls is how many status polls answer PENDING before the verdict.
	PendingPolls int
	Logger       *telemetry.Logger
}

// Judge answers the same GraphQL operations as the real judge from an
// in-memory catalog. Grading is deterministic: an empty source fails to
// compile, an untouched stub is a wrong answer, anything else is accepted.
type Judge struct {
	catalog Catalog
	pending int
	logger  *telemetry.Logger

	mu     sync.Mutex
	status map[string]string
	subs   map[string]*submission
	nextID int
	calls  map[string]int
}

type submission struct {
	problem Problem
	polls   int
	result  map[string]any
}

func New(opts Options) *Judge {
	return &Judge{
		catalog: opts.Catalog,
		pending: max(opts.PendingPolls, 0),
		logger:  opts.Logger,
		status:  map[string]string{},
		subs:    map[string]*submission{},
		nextID:  1000,
		calls:   map[string]int{},
	}
}

// Calls reports how many requests an operation has received.
func (j *Judge) Calls(op string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls[op]
}

func (j *Judge) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/graphql", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			OperationName string          `json:"operationName"`
			Variables     json.RawMessage `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"message": "invalid json"}}})
			return
		}
		j.mu.Lock()
		j.calls[req.OperationName]++
		j.mu.Unlock()
		j.logger.Debug("demo.request", map[string]any{"op": req.OperationName})

		switch req.OperationName {
		case "problemsetQuestionList":
			j.serveList(w, req.Variables)
		case "questionDetail":
			j.serveDetail(w, req.Variables)
		case "submitSolution":
			if !authorized(r) {
				writeJSON(w, http.StatusForbidden, map[string]any{"errors": []map[string]string{{"message": "User is not logged in"}}})
				return
			}
			j.serveSubmit(w, req.Variables)
		case "submissionStatus":
			if !authorized(r) {
				writeJSON(w, http.StatusForbidden, map[string]any{"errors": []map[string]string{{"message": "User is not logged in"}}})
				return
			}
			j.serveStatus(w, req.Variables)
		case "interpretSolution":
			if !authorized(r) {
				writeJSON(w, http.StatusForbidden, map[string]any{"errors": []map[string]string{{"message": "User is not logged in"}}})
				return
			}
			j.serveRun(w, req.Variables)
		case "interpretStatus":
			if !authorized(r) {
				writeJSON(w, http.StatusForbidden, map[string]any{"errors": []map[string]string{{"message": "User is not logged in"}}})
				return
			}
			j.serveRunStatus(w, req.Variables)
		case "globalData":
			j.serveUserStatus(w, authorized(r))
		case "userProblemsSolved":
			j.serveProgress(w, req.Variables)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"message": "unknown operation " + req.OperationName}}})
		}
	})
	mux.HandleFunc("/__dev/ready", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		j.mu.Lock()
		calls := make(map[string]int, len(j.calls))
		for k, v := range j.calls {
			calls[k] = v
		}
		j.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "problems": len(j.catalog.Problems), "calls": calls})
	})
	return mux
}

// Serve listens on addr ("127.0.0.1:0" picks a free port) until ctx is done
// and returns the base URL to point a client at.
func Serve(ctx context.Context, addr string, j *Judge) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("demo judge listen: %w", err)
	}
	srv := &http.Server{Handler: j.Handler()}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			j.logger.Error("demo.serve_failed", map[string]any{"error": err.Error(), "addr": addr})
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
	url := "http://" + ln.Addr().String()
	j.logger.Info("demo.listening", map[string]any{"url": url})
	return url, nil
}

func authorized(r *http.Request) bool {
	sess, err := r.Cookie(credentials.SessionCookie)
	if err != nil || sess.Value == "" {
		return false
	}
	csrf, err := r.Cookie(credentials.CSRFCookie)
	if err != nil || csrf.Value == "" {
		return false
	}
	return r.Header.Get("x-csrftoken") == csrf.Value
}

// DemoUser is the account every authorized demo session is signed in as.
const DemoUser = "demo"

func (j *Judge) serveUserStatus(w http.ResponseWriter, signedIn bool) {
	status := map[string]any{"username": "", "isSignedIn": false}
	if signedIn {
		status = map[string]any{"username": DemoUser, "isSignedIn": true}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"userStatus": status}})
}

func (j *Judge) serveProgress(w http.ResponseWriter, raw json.RawMessage) {
	var vars struct {
		Username string `json:"username"`
	}
	_ = json.Unmarshal(raw, &vars)
	j.mu.Lock()
	defer j.mu.Unlock()

	all := map[string]int{}
	solved := map[string]int{}
	for _, p := range j.catalog.Problems {
		all[p.Difficulty]++
		if j.status[p.ID] == "ac" {
			solved[p.Difficulty]++
		}
	}
	counts := func(m map[string]int) []map[string]any {
		out := []map[string]any{{"difficulty": "All", "count": m["Easy"] + m["Medium"] + m["Hard"]}}
		for _, d := range []string{"Easy", "Medium", "Hard"} {
			out = append(out, map[string]any{"difficulty": d, "count": m[d]})
		}
		return out
	}
	var user any
	if vars.Username == DemoUser {
		user = map[string]any{"submitStatsGlobal": map[string]any{"acSubmissionNum": counts(solved)}}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"allQuestionsCount": counts(all),
		"matchedUser":       user,
	}})
}

func (j *Judge) serveList(w http.ResponseWriter, raw json.RawMessage) {
	var vars struct {
		Skip    int `json:"skip"`
		Limit   int `json:"limit"`
		Filters struct {
			Difficulty     string   `json:"difficulty"`
			Status         string   `json:"status"`
			SearchKeywords string   `json:"searchKeywords"`
			Tags           []string `json:"tags"`
		} `json:"filters"`
	}
	if err := json.Unmarshal(raw, &vars); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"message": "invalid variables"}}})
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	matched := make([]Problem, 0, len(j.catalog.Problems))
	for _, p := range j.catalog.Problems {
		f := vars.Filters
		if f.Difficulty != "" && !strings.EqualFold(f.Difficulty, p.Difficulty) {
			continue
		}
		if f.Status != "" && statusFilter(j.status[p.ID]) != f.Status {
			continue
		}
		if q := strings.ToLower(strings.TrimSpace(f.SearchKeywords)); q != "" &&
			!strings.Contains(strings.ToLower(p.Title), q) && p.ID != q {
			continue
		}
		if !hasTags(p.Tags, f.Tags) {
			continue
		}
		matched = append(matched, p)
	}
	total := len(matched)
	from := min(max(vars.Skip, 0), total)
	to := total
	if vars.Limit > 0 {
		to = min(from+vars.Limit, total)
	}
	questions := make([]map[string]any, 0, to-from)
	for _, p := range matched[from:to] {
		questions = append(questions, j.summary(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"problemsetQuestionList": map[string]any{"total": total, "questions": questions},
	}})
}

func (j *Judge) serveDetail(w http.ResponseWriter, raw json.RawMessage) {
	var vars struct {
		TitleSlug string `json:"titleSlug"`
	}
	_ = json.Unmarshal(raw, &vars)
	j.mu.Lock()
	defer j.mu.Unlock()

	p, ok := j.bySlug(vars.TitleSlug)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"question": nil}})
		return
	}
	q := j.summary(p)
	q["questionId"] = p.QuestionID
	q["hints"] = nonNil(p.Hints)
	q["exampleTestcases"] = p.ExampleTestcases
	if p.PaidOnly {
		q["content"] = nil
		q["codeSnippets"] = []any{}
	} else {
		q["content"] = p.ContentHTML
		snippets := make([]map[string]string, 0, len(p.Snippets))
		for _, lang := range []string{"cpp", "golang", "python3", "rust"} {
			if code, ok := p.Snippets[lang]; ok {
				snippets = append(snippets, map[string]string{"lang": langNames[lang], "langSlug": lang, "code": code})
			}
		}
		q["codeSnippets"] = snippets
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"question": q}})
}

func (j *Judge) serveSubmit(w http.ResponseWriter, raw json.RawMessage) {
	var vars struct {
		TitleSlug  string `json:"titleSlug"`
		QuestionID string `json:"questionId"`
		Lang       string `json:"lang"`
		TypedCode  string `json:"typedCode"`
	}
	_ = json.Unmarshal(raw, &vars)
	j.mu.Lock()
	defer j.mu.Unlock()

	p, ok := j.bySlug(vars.TitleSlug)
	if !ok || p.QuestionID != vars.QuestionID {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "question not found"}}})
		return
	}
	if _, ok := langNames[vars.Lang]; !ok {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "unsupported language " + vars.Lang}}})
		return
	}
	if p.PaidOnly {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "premium question"}}})
		return
	}
	j.nextID++
	id := strconv.Itoa(j.nextID)
	result := grade(p, vars.Lang, vars.TypedCode)
	j.subs[id] = &submission{problem: p, result: result}
	if result["statusMsg"] == "Accepted" {
		j.status[p.ID] = "ac"
	} else if j.status[p.ID] != "ac" {
		j.status[p.ID] = "notac"
	}
	j.logger.Info("demo.submitted", map[string]any{"problem": p.ID, "submission": id, "verdict": result["statusMsg"]})
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"submitSolution": map[string]any{"submissionId": j.nextID},
	}})
}

func (j *Judge) serveStatus(w http.ResponseWriter, raw json.RawMessage) {
	var vars struct {
		SubmissionID string `json:"submissionId"`
	}
	_ = json.Unmarshal(raw, &vars)
	j.mu.Lock()
	defer j.mu.Unlock()

	sub, ok := j.subs[vars.SubmissionID]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "submission not found"}}})
		return
	}
	sub.polls++
	if sub.polls <= j.pending {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"submissionStatus": map[string]any{"state": "PENDING"},
		}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"submissionStatus": sub.result}})
}

func (j *Judge) serveRun(w http.ResponseWriter, raw json.RawMessage) {
	var vars struct {
		TitleSlug  string `json:"titleSlug"`
		QuestionID string `json:"questionId"`
		Lang       string `json:"lang"`
		TypedCode  string `json:"typedCode"`
		DataInput  string `json:"dataInput"`
	}
	_ = json.Unmarshal(raw, &vars)
	j.mu.Lock()
	defer j.mu.Unlock()

	p, ok := j.bySlug(vars.TitleSlug)
	if !ok || p.QuestionID != vars.QuestionID {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "question not found"}}})
		return
	}
	if _, ok := langNames[vars.Lang]; !ok {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "unsupported language " + vars.Lang}}})
		return
	}
	if strings.TrimSpace(vars.DataInput) == "" {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "dataInput is required"}}})
		return
	}
	j.nextID++
	id := "runcode_" + strconv.Itoa(j.nextID)
	j.subs[id] = &submission{problem: p, result: gradeRun(p, vars.Lang, vars.TypedCode)}
	j.logger.Info("demo.run", map[string]any{"problem": p.ID, "run": id})
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"interpretSolution": map[string]any{"interpretId": id},
	}})
}

func (j *Judge) serveRunStatus(w http.ResponseWriter, raw json.RawMessage) {
	var vars struct {
		InterpretID string `json:"interpretId"`
	}
	_ = json.Unmarshal(raw, &vars)
	j.mu.Lock()
	defer j.mu.Unlock()

	run, ok := j.subs[vars.InterpretID]
	if !ok || !strings.HasPrefix(vars.InterpretID, "runcode_") {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "run not found"}}})
		return
	}
	run.polls++
	if run.polls <= j.pending {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{
			"interpretStatus": map[string]any{"state": "STARTED"},
		}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"interpretStatus": run.result}})
}

// gradeRun answers a run of the example cases. It uses the same rules as
// grade; a wrong answer still executes, so it reports "Accepted" with
// correctAnswer false the way the real judge does.
func gradeRun(p Problem, lang, source string) map[string]any {
	expected := nonNil(p.ExampleOutputs)
	cases := max(len(expected), 1)
	out := map[string]any{"state": "SUCCESS", "totalTestcases": cases, "expectedCodeAnswer": expected}
	switch {
	case strings.TrimSpace(source) == "":
		out["statusMsg"] = "Compile Error"
		out["compileError"] = "Line 1: expected item, found end of file"
		out["codeAnswer"] = []string{}
		out["totalCorrect"] = 0
	case untouched(p.Snippets[lang], source):
		answers := make([]string, cases)
		for i := range answers {
			answers[i] = "[]"
		}
		out["statusMsg"] = "Accepted"
		out["correctAnswer"] = false
		out["codeAnswer"] = answers
		out["totalCorrect"] = 0
	default:
		out["statusMsg"] = "Accepted"
		out["correctAnswer"] = true
		out["codeAnswer"] = expected
		out["totalCorrect"] = cases
		out["runtimeMs"] = 1 + len(source)%5
	}
	return out
}

func grade(p Problem, lang, source string) map[string]any {
	total := 40 + len(p.Title)
	out := map[string]any{"state": "SUCCESS", "totalTestcases": total}
	first, _, _ := strings.Cut(p.ExampleTestcases, "\n")
	switch {
	case strings.TrimSpace(source) == "":
		out["statusMsg"] = "Compile Error"
		out["compileError"] = "Line 1: expected item, found end of file"
		out["totalCorrect"] = 0
	case untouched(p.Snippets[lang], source):
		out["statusMsg"] = "Wrong Answer"
		out["totalCorrect"] = 0
		out["lastTestcase"] = first
		out["expectedOutput"] = "[0,1]"
		out["codeOutput"] = "[]"
	default:
		out["statusMsg"] = "Accepted"
		out["totalCorrect"] = total
		out["runtimeMs"] = 1 + len(source)%9
		out["memory"] = 2_000_000 + 97*len(source)
	}
	return out
}

// untouched reports whether source is still the stub, ignoring whitespace
// and the "pass" a scaffold adds to an empty python method.
func untouched(stub, source string) bool {
	if stub == "" {
		return false
	}
	norm := func(s string) string {
		return strings.Join(strings.Fields(strings.ReplaceAll(s, "pass", "")), "")
	}
	return norm(stub) == norm(source)
}

func (j *Judge) summary(p Problem) map[string]any {
	tags := make([]map[string]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, map[string]string{"name": t, "slug": slug.Make(t)})
	}
	var status any
	if s, ok := j.status[p.ID]; ok {
		status = s
	}
	return map[string]any{
		"frontendQuestionId": p.ID,
		"title":              p.Title,
		"titleSlug":          p.Slug,
		"difficulty":         p.Difficulty,
		"acRate":             p.AcRate,
		"isPaidOnly":         p.PaidOnly,
		"status":             status,
		"topicTags":          tags,
	}
}

func (j *Judge) bySlug(s string) (Problem, bool) {
	for _, p := range j.catalog.Problems {
		if p.Slug == s {
			return p, true
		}
	}
	return Problem{}, false
}

func statusFilter(marker string) string {
	switch marker {
	case "ac":
		return "AC"
	case "notac":
		return "TRIED"
	default:
		return "NOT_STARTED"
	}
}

func hasTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if slug.Make(h) == slug.Make(w) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
