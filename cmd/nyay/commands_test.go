package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Nit2312/NyaySarthi/internal/backend"
	"github.com/Nit2312/NyaySarthi/internal/config"
	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

type recordedRequest struct {
	Method      string
	Path        string
	Body        string
	Auth        string
	ContentType string
}

type testServer struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			Method:      r.Method,
			Path:        r.URL.RequestURI(),
			Body:        body.String(),
			Auth:        r.Header.Get("Authorization"),
			ContentType: r.Header.Get("Content-Type"),
		})
		ts.mu.Unlock()

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

func (ts *testServer) recorded() []recordedRequest {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]recordedRequest(nil), ts.requests...)
}

// runCommand executes rootCmd against ts and returns stdout.
func runCommand(t *testing.T, ts *testServer, args ...string) (string, error) {
	t.Helper()
	oldClient := newAPIClient
	oldColor := noColor
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() {
		newAPIClient = oldClient
		noColor = oldColor
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetIn(nil)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

var ctx = context.Background()

func TestSearchCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /precedents/search": `[
			{"id":"2","title":"K.S. Puttaswamy v. Union of India","court":"Supreme Court of India","date":"2017-08-24","similarity":0.93,"summary":"Privacy is a fundamental right.","is_favorite":true},
			{"id":"1","title":"Kharak Singh v. State of U.P.","similarity":0.41}
		]`,
	})

	out, err := runCommand(t, ts, "search", "right", "to", "privacy", "--court", "Supreme Court of India", "--limit", "2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(out, "K.S. Puttaswamy v. Union of India") || !strings.Contains(out, "[0.93]") {
		t.Errorf("output missing first result:\n%s", out)
	}
	if strings.Index(out, "Puttaswamy") > strings.Index(out, "Kharak") {
		t.Errorf("results printed out of order:\n%s", out)
	}
	if !strings.Contains(out, "★") {
		t.Errorf("favorite marker missing:\n%s", out)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(r.Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["query"] != "right to privacy" {
		t.Errorf("body.query = %v", body["query"])
	}
	if body["court"] != "Supreme Court of India" {
		t.Errorf("body.court = %v", body["court"])
	}
	if body["limit"] != float64(2) {
		t.Errorf("body.limit = %v", body["limit"])
	}
}

func TestSearchCommand_MissingArgs(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := runCommand(t, ts, "search")
	if err == nil {
		t.Fatal("expected error for missing query")
	}
	if len(ts.recorded()) != 0 {
		t.Error("no request should be sent without a query")
	}
}

func TestSearchCommand_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":{"message":"backend unreachable","type":"transport"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "t", httpClient: ts.Client()}
	resp, err := client.post(ctx, "/precedents/search", map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	err = decodeJSON(resp, &[]domain.Precedent{})
	if err == nil {
		t.Fatal("expected error for 502")
	}
	for _, want := range []string{"502", "transport", "backend unreachable"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error = %q, want it to contain %q", err.Error(), want)
		}
	}
}

func TestFavoriteCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /precedents/42/favorite": `{"id":"42","title":"Vishaka v. State of Rajasthan","is_favorite":true}`,
	})

	if _, err := runCommand(t, ts, "favorite", "42"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reqs := ts.recorded()
	if len(reqs) != 1 || reqs[0].Path != "/precedents/42/favorite" {
		t.Fatalf("unexpected requests: %+v", reqs)
	}
}

func TestPrecedentCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /precedents/7": `{"id":"7","title":"Maneka Gandhi v. Union of India","court":"Supreme Court of India",
			"judges":["M.H. Beg","Y.V. Chandrachud"],"parties":{"respondent":"Union of India","petitioner":"Maneka Gandhi"},
			"key_points":["Procedure must be fair, just and reasonable"]}`,
	})

	out, err := runCommand(t, ts, "precedent", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"Maneka Gandhi v. Union of India", "M.H. Beg, Y.V. Chandrachud", "Procedure must be fair"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "petitioner") > strings.Index(out, "respondent") {
		t.Errorf("parties should be printed in sorted order:\n%s", out)
	}
}

func TestChatCommand_SingleMessage(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /sessions": `{"session":{"id":"s-1","pending":false}}`,
		"POST /sessions/s-1/messages": `{"message":{"id":"m1","role":"user","content":"What is bail?"},
			"reply":{"id":"m2","role":"assistant","content":"Bail is conditional release.","sources":[{"id":"src","title":"CrPC s.437"}]}}`,
	})

	out, err := runCommand(t, ts, "chat", "What", "is", "bail?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "nyay> Bail is conditional release.") {
		t.Errorf("reply missing:\n%s", out)
	}
	if !strings.Contains(out, "[1] CrPC s.437") {
		t.Errorf("sources missing:\n%s", out)
	}

	reqs := ts.recorded()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(reqs[1].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["content"] != "What is bail?" || body["wait"] != true {
		t.Errorf("unexpected send body %v", body)
	}
}

func TestChatCommand_ScopedPrintsGreeting(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /sessions":             `{"session":{"id":"s-2","precedent_id":"7"},"precedent":{"id":"7","title":"Maneka Gandhi"}}`,
		"GET /sessions/s-2/messages": `[{"id":"g","role":"assistant","content":"Let's discuss Maneka Gandhi."}]`,
	})

	rootCmd.SetIn(strings.NewReader("\n"))

	out, err := runCommand(t, ts, "chat", "--precedent", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Let's discuss Maneka Gandhi.") {
		t.Errorf("greeting missing:\n%s", out)
	}

	reqs := ts.recorded()
	if len(reqs) == 0 || !strings.Contains(reqs[0].Body, `"precedent_id":"7"`) {
		t.Errorf("open request should carry precedent_id: %+v", reqs)
	}
}

func TestUploadCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /jobs": `{"id":"job-1","filename":"order.txt","status":"uploading"}`,
	})

	path := filepath.Join(t.TempDir(), "order.txt")
	if err := os.WriteFile(path, []byte("The appeal is allowed."), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := runCommand(t, ts, "upload", path, "--ref", "ref-9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := ts.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	r := reqs[0]
	if !strings.HasPrefix(r.ContentType, "multipart/form-data") {
		t.Errorf("content type = %q", r.ContentType)
	}
	for _, want := range []string{`filename="order.txt"`, "The appeal is allowed.", "ref-9"} {
		if !strings.Contains(r.Body, want) {
			t.Errorf("multipart body missing %q", want)
		}
	}
}

func TestWaitForJob(t *testing.T) {
	var calls int
	var mu sync.Mutex
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		status := "processing"
		if n >= 3 {
			status = "completed"
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.UploadJob{ID: "job-1", Status: domain.JobStatus(status)})
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "t", httpClient: ts.Client()}
	job, err := waitForJob(ctx, client, "job-1", time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Status != domain.JobCompleted {
		t.Errorf("status = %q, want completed", job.Status)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestJobsStatsCommand(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /jobs/stats": `{"total":3,"completed":1,"failed":1,"in_flight":1,"total_bytes":3072,"processed_bytes":1024}`,
	})
	if _, err := runCommand(t, ts, "jobs", "stats"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestJobsRemoveCommand_NotFound(t *testing.T) {
	ts := newTestServer(t, nil)
	_, err := runCommand(t, ts, "jobs", "rm", "missing")
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Errorf("error = %q, want it to contain 404", err.Error())
	}
	reqs := ts.recorded()
	if len(reqs) != 1 || reqs[0].Method != http.MethodDelete {
		t.Errorf("unexpected requests: %+v", reqs)
	}
}

func TestWatchJobs(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var gotQuery, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("access_token")
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(jobs.Event{
			JobID: "job-1",
			From:  domain.JobUploading,
			To:    domain.JobProcessing,
			Job:   domain.UploadJob{ID: "job-1", Filename: "order.pdf", Status: domain.JobProcessing},
			At:    time.Now(),
		})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer ts.Close()

	old := noColor
	noColor = true
	defer func() { noColor = old }()

	var out bytes.Buffer
	client := &apiClient{baseURL: ts.URL, token: "ws-token", httpClient: ts.Client()}
	if err := watchJobs(ctx, client, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotQuery != "ws-token" || gotAuth != "Bearer ws-token" {
		t.Errorf("token not sent: query=%q auth=%q", gotQuery, gotAuth)
	}
	if !strings.Contains(out.String(), "uploading → processing") || !strings.Contains(out.String(), "order.pdf") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestEventsURL(t *testing.T) {
	got, err := eventsURL("http://127.0.0.1:4100", "a b")
	if err != nil {
		t.Fatal(err)
	}
	if got != "ws://127.0.0.1:4100/jobs/events?access_token=a+b" {
		t.Errorf("eventsURL = %q", got)
	}
	got, _ = eventsURL("https://example.org/base/", "t")
	if got != "wss://example.org/base/jobs/events?access_token=t" {
		t.Errorf("eventsURL = %q", got)
	}
}

func TestServerNotRunning(t *testing.T) {
	client := &apiClient{
		baseURL:    "http://127.0.0.1:1",
		token:      "t",
		httpClient: &http.Client{Timeout: time.Second},
	}
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestLoginCommand(t *testing.T) {
	var form string
	backendSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/token":
			b, _ := io.ReadAll(r.Body)
			form = string(b)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"access_token":"issued","token_type":"bearer"}`))
		case "/auth/me":
			if r.Header.Get("Authorization") != "Bearer issued" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":1,"email":"adv@example.com","name":"Advocate"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer backendSrv.Close()

	secrets := config.OpenSecrets(filepath.Join(t.TempDir(), "secrets.json"))
	old := newBackendClient
	newBackendClient = func() (*backend.Client, error) {
		return backend.NewClientWithBaseURL(backendSrv.URL, secrets), nil
	}
	defer func() { newBackendClient = old }()

	rootCmd.SetIn(strings.NewReader("s3cret\n"))
	if _, err := runCommand(t, newTestServer(t, nil), "login", "-u", "adv@example.com"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(form, "password=s3cret") || !strings.Contains(form, "username=adv%40example.com") {
		t.Errorf("unexpected token form %q", form)
	}
	tok, err := secrets.Token()
	if err != nil || tok != "issued" {
		t.Fatalf("stored token = %q (%v), want issued", tok, err)
	}

	out, err := runCommand(t, newTestServer(t, nil), "whoami")
	if err != nil {
		t.Fatalf("whoami failed: %v", err)
	}
	if !strings.Contains(out, "Advocate <adv@example.com>") {
		t.Errorf("whoami output = %q", out)
	}

	if _, err := runCommand(t, newTestServer(t, nil), "logout"); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if tok, _ := secrets.Token(); tok != "" {
		t.Errorf("token after logout = %q", tok)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4000
	cfg.Jobs.AnalysisMode = "local"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4000" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4000 in ShowAll output")
	}
}

func TestPIDFile(t *testing.T) {
	path := pidFilePath(t.TempDir())
	if err := writePIDFile(path); err != nil {
		t.Fatal(err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if pid != os.Getpid() {
		t.Errorf("pid = %d, want %d", pid, os.Getpid())
	}
	removePIDFile(path)
	if _, err := readPIDFile(path); err == nil {
		t.Error("expected error after removal")
	}
}

func TestCountLabel(t *testing.T) {
	tests := []struct {
		count, limit int
		want         string
	}{
		{5, 100, "5"},
		{0, 100, "0"},
		{100, 100, "100+"},
		{150, 100, "150+"},
	}
	for _, tt := range tests {
		got := countLabel(tt.count, tt.limit)
		if got != tt.want {
			t.Errorf("countLabel(%d, %d) = %q, want %q", tt.count, tt.limit, got, tt.want)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		512:           "512 B",
		2048:          "2.0 KB",
		3 * (1 << 20): "3.0 MB",
	}
	for n, want := range tests {
		if got := humanBytes(n); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", n, got, want)
		}
	}
}
