package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

func TestMCPTool_SearchPrecedents(t *testing.T) {
	h := newHarness(t, nil)
	handler := mcpSearchPrecedents(h.deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_precedents", map[string]interface{}{
		"query": "right to privacy",
		"limit": float64(1),
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var got []domain.Precedent
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("expected the single highest-similarity result, got %+v", got)
	}
}

func TestMCPTool_SearchPrecedents_MissingQuery(t *testing.T) {
	h := newHarness(t, nil)
	handler := mcpSearchPrecedents(h.deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_precedents", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing query")
	}
}

func TestMCPTool_SearchPrecedents_BackendError(t *testing.T) {
	h := newHarness(t, nil)
	h.backend.err = fmt.Errorf("dial: %w", domain.ErrTransport)
	handler := mcpSearchPrecedents(h.deps)

	result, err := handler(context.Background(), makeCallToolRequest("search_precedents", map[string]interface{}{
		"query": "bail",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error when the backend fails")
	}
}

func TestMCPTool_GetPrecedent(t *testing.T) {
	h := newHarness(t, nil)
	handler := mcpGetPrecedent(h.deps)

	result, err := handler(context.Background(), makeCallToolRequest("get_precedent", map[string]interface{}{
		"id": "7",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var p domain.Precedent
	if err := json.Unmarshal([]byte(toolText(t, result)), &p); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if p.Title != "Maneka Gandhi v. Union of India" {
		t.Errorf("title = %q", p.Title)
	}

	result, err = handler(context.Background(), makeCallToolRequest("get_precedent", map[string]interface{}{
		"id": "missing",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown id")
	}
}

func TestMCPTool_LegalChat(t *testing.T) {
	var mu sync.Mutex
	var seen []chat.Request
	h := newHarness(t, chat.CompleterFunc(func(_ context.Context, req chat.Request) (chat.Reply, error) {
		mu.Lock()
		seen = append(seen, req)
		mu.Unlock()
		return chat.Reply{
			Content: "Article 21 protects personal liberty.",
			Sources: []domain.Citation{{ID: "s1", Title: "Constitution of India", Score: 0.8}},
		}, nil
	}))
	handler := mcpLegalChat(h.deps)

	result, err := handler(context.Background(), makeCallToolRequest("legal_chat", map[string]interface{}{
		"message":      "What did this case decide?",
		"precedent_id": "7",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var got chatResult
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse result: %v", err)
	}
	if got.SessionID == "" {
		t.Fatal("expected a session id")
	}
	if got.Reply != "Article 21 protects personal liberty." {
		t.Errorf("reply = %q", got.Reply)
	}
	if len(got.Sources) != 1 {
		t.Errorf("expected 1 source, got %d", len(got.Sources))
	}

	// Continuing the same session carries the precedent binding.
	result, err = handler(context.Background(), makeCallToolRequest("legal_chat", map[string]interface{}{
		"message":    "And the follow-up?",
		"session_id": got.SessionID,
	}))
	if err != nil || result.IsError {
		t.Fatalf("follow-up failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("expected 2 completions, got %d", len(seen))
	}
	for i, req := range seen {
		if req.Precedent == nil || req.Precedent.ID != "7" {
			t.Errorf("request %d not scoped to precedent 7", i)
		}
	}
}

func TestMCPTool_LegalChat_UnknownSession(t *testing.T) {
	h := newHarness(t, nil)
	handler := mcpLegalChat(h.deps)

	result, err := handler(context.Background(), makeCallToolRequest("legal_chat", map[string]interface{}{
		"message":    "hello",
		"session_id": "nope",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for unknown session")
	}
}

func TestMCPResource_JobStats(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.pipeline.Submit(domain.FileMeta{Filename: "a.txt", SizeBytes: 4, MimeType: "text/plain"}, jobs.FromBytes([]byte("text"))); err != nil {
		t.Fatalf("submit: %v", err)
	}

	handler := mcpResourceJSON(func(context.Context) (any, error) { return h.deps.Pipeline.Stats(), nil })
	contents, err := handler(context.Background(), makeReadResourceRequest("jobs://stats"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "jobs://stats" {
		t.Errorf("uri = %q", tc.URI)
	}

	var stats jobs.Stats
	if err := json.Unmarshal([]byte(tc.Text), &stats); err != nil {
		t.Fatalf("failed to parse stats: %v", err)
	}
	if stats.Total != 1 || stats.InFlight != 1 || stats.TotalBytes != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestMCPServer_ConcurrentSearches(t *testing.T) {
	h := newHarness(t, nil)
	handler := mcpSearchPrecedents(h.deps)

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := handler(context.Background(), makeCallToolRequest("search_precedents", map[string]interface{}{
				"query": fmt.Sprintf("query %d", i),
			}))
			if err != nil {
				errs <- err
				return
			}
			if result.IsError {
				errs <- fmt.Errorf("tool error for query %d", i)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}
}

func TestNewMCPServer(t *testing.T) {
	h := newHarness(t, nil)
	if s := NewMCPServer(h.deps); s == nil {
		t.Fatal("expected a server")
	}
}
