// Package analysis extracts text from uploaded legal documents and derives a
// summary, key terms, and case metadata from it without a remote model.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Nit2312/NyaySarthi/internal/domain"
	"github.com/Nit2312/NyaySarthi/internal/jobs"
)

// localConfidence is reported for every heuristic analysis.
const localConfidence = 0.85

// Analyzer implements jobs.Analyzer on the local machine.
type Analyzer struct {
	logger *zap.Logger
}

var _ jobs.Analyzer = (*Analyzer)(nil)

// New returns a local Analyzer.
func New(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger.Named("analysis")}
}

// Analyze extracts the document text and applies the heuristics selected by
// doc.AnalysisType (summary, key_points, or legal_issues).
func (a *Analyzer) Analyze(ctx context.Context, doc jobs.Document) (domain.DocumentAnalysis, error) {
	text, err := ExtractText(doc.MimeType, doc.Content)
	if err != nil {
		return domain.DocumentAnalysis{}, fmt.Errorf("extracting %s: %w", doc.Filename, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.DocumentAnalysis{}, fmt.Errorf("could not extract text from %s", doc.Filename)
	}
	if err := ctx.Err(); err != nil {
		return domain.DocumentAnalysis{}, err
	}

	out := domain.DocumentAnalysis{
		KeyTerms:   KeyTerms(text),
		Citations:  Citations(text),
		Confidence: localConfidence,
	}
	switch doc.AnalysisType {
	case "key_points":
		out.Summary = Preview(text)
		out.KeyPoints = KeyPoints(text)
	case "legal_issues":
		out.Summary = Preview(text)
		out.LegalIssues = LegalIssues(text)
	default:
		out.Summary = Summarize(text)
		out.KeyPoints = KeyPoints(text)
		out.LegalIssues = LegalIssues(text)
	}

	if court, ok := DetectCourt(text); ok {
		out.Metadata.Court = court.Name
		out.Metadata.Jurisdiction = court.Jurisdiction
	}
	out.Metadata.Date = FirstDate(text)
	out.Metadata.CaseNumber = CaseNumber(text)

	a.logger.Debug("analyzed document",
		zap.String("filename", doc.Filename),
		zap.Int("chars", len(text)),
		zap.Int("citations", len(out.Citations)),
	)
	return out, nil
}
