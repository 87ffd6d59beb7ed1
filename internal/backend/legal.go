package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/Nit2312/NyaySarthi/internal/chat"
	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
	"github.com/Nit2312/NyaySarthi/internal/precedent"
)

var (
	_ precedent.Backend = (*Client)(nil)
	_ chat.Completer    = (*Client)(nil)
	_ jobs.Analyzer     = (*Client)(nil)
)

// SearchPrecedents calls POST /api/legal/search-precedents.
func (c *Client) SearchPrecedents(ctx context.Context, q precedent.Query) ([]domain.Precedent, error) {
	body := searchRequest{
		Query:    q.Text,
		Court:    q.Filters.Court,
		YearFrom: q.Filters.YearFrom,
		YearTo:   q.Filters.YearTo,
		Limit:    q.Limit,
	}
	r, err := jsonRequest(http.MethodPost, "/api/legal/search-precedents", body)
	if err != nil {
		return nil, err
	}
	var raw []wirePrecedent
	if err := c.do(ctx, r, &raw); err != nil {
		return nil, err
	}
	out := make([]domain.Precedent, 0, len(raw))
	for _, w := range raw {
		out = append(out, w.toDomain())
	}
	return out, nil
}

// GetPrecedent calls GET /api/legal/precedent/{id}.
func (c *Client) GetPrecedent(ctx context.Context, id string) (domain.Precedent, error) {
	r, err := jsonRequest(http.MethodGet, "/api/legal/precedent/"+url.PathEscape(id), nil)
	if err != nil {
		return domain.Precedent{}, err
	}
	var w wirePrecedent
	if err := c.do(ctx, r, &w); err != nil {
		return domain.Precedent{}, err
	}
	return w.toDomain(), nil
}

// Courts calls GET /api/legal/courts.
func (c *Client) Courts(ctx context.Context) ([]domain.Court, error) {
	r, err := jsonRequest(http.MethodGet, "/api/legal/courts", nil)
	if err != nil {
		return nil, err
	}
	var resp courtsResponse
	if err := c.do(ctx, r, &resp); err != nil {
		return nil, err
	}
	return resp.Courts, nil
}

// RecentCases calls GET /api/legal/recent-cases.
func (c *Client) RecentCases(ctx context.Context, limit int) ([]domain.Precedent, error) {
	r, err := jsonRequest(http.MethodGet, "/api/legal/recent-cases", nil)
	if err != nil {
		return nil, err
	}
	r.query = url.Values{"limit": {strconv.Itoa(limit)}}
	var resp casesResponse
	if err := c.do(ctx, r, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Precedent, 0, len(resp.Cases))
	for _, w := range resp.Cases {
		out = append(out, w.toDomain())
	}
	return out, nil
}

// Complete calls POST /api/legal/chat.
func (c *Client) Complete(ctx context.Context, req chat.Request) (chat.Reply, error) {
	body := chatRequest{Content: req.Content, Timestamp: time.Now().UTC()}
	if !req.Context.Empty() {
		ctxCopy := req.Context
		body.Context = &ctxCopy
	}
	r, err := jsonRequest(http.MethodPost, "/api/legal/chat", body)
	if err != nil {
		return chat.Reply{}, err
	}
	var resp chatResponse
	if err := c.do(ctx, r, &resp); err != nil {
		return chat.Reply{}, err
	}
	return chat.Reply{Content: resp.text(), Sources: resp.Sources.citations()}, nil
}

// Analyze calls POST /api/legal/analyze-document with a multipart upload.
func (c *Client) Analyze(ctx context.Context, doc jobs.Document) (domain.DocumentAnalysis, error) {
	analysisType := doc.AnalysisType
	if analysisType == "" {
		analysisType = c.analysisType
	}
	if analysisType == "" {
		analysisType = "summary"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, doc.Filename))
	h.Set("Content-Type", doc.MimeType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return domain.DocumentAnalysis{}, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(doc.Content); err != nil {
		return domain.DocumentAnalysis{}, fmt.Errorf("writing file part: %w", err)
	}
	if err := mw.WriteField("analysis_type", analysisType); err != nil {
		return domain.DocumentAnalysis{}, fmt.Errorf("writing analysis_type: %w", err)
	}
	if err := mw.Close(); err != nil {
		return domain.DocumentAnalysis{}, fmt.Errorf("closing multipart body: %w", err)
	}

	r := request{
		method:      http.MethodPost,
		path:        "/api/legal/analyze-document",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
		auth:        true,
	}
	var resp analysisResponse
	if err := c.do(ctx, r, &resp); err != nil {
		return domain.DocumentAnalysis{}, err
	}
	return resp.toDomain(), nil
}

// Health calls GET /health and returns the reported status.
func (c *Client) Health(ctx context.Context) (string, error) {
	r := request{method: http.MethodGet, path: "/health"}
	var resp map[string]any
	if err := c.do(ctx, r, &resp); err != nil {
		return "", err
	}
	if s, ok := resp["status"].(string); ok {
		return s, nil
	}
	return "ok", nil
}
