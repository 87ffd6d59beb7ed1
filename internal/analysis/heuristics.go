package analysis

import (
	"regexp"
	"sort"
	"strings"
)

const (
	maxKeyTerms   = 5
	maxKeyPoints  = 5
	maxIssues     = 5
	maxCitations  = 10
	keyPointScan  = 20
	summaryLength = 3
	previewLength = 200
)

var legalAreas = []string{
	"Constitutional Law", "Criminal Law", "Civil Law", "Family Law",
	"Property Law", "Contract Law", "Tort Law", "Administrative Law",
	"Tax Law", "Labor Law", "Environmental Law", "Intellectual Property",
	"Human Rights", "Judicial Review", "Fundamental Rights",
}

var holdingWords = []string{
	"held", "ruled", "decided", "established", "principle",
	"court", "judgment", "order", "directed", "declared",
}

var issueWords = []string{
	"constitutional", "fundamental rights", "violation",
	"breach", "contract", "tort", "negligence", "damages",
	"injunction", "specific performance", "compensation",
}

var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]{2,}\s+\d{4}\s+[A-Z]{2,}\s+\d+`), // AIR 1973 SC 1461
	regexp.MustCompile(`\(\d{4}\)\s+\d+\s+[A-Z]{2,}\s+\d+`),   // (2017) 10 SCC 1
	regexp.MustCompile(`\d{4}\s+[A-Z]{2,}\s+\d+`),             // 1973 SC 1461
}

var (
	isoDate    = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
	longDate   = regexp.MustCompile(`\b\d{1,2}(?:st|nd|rd|th)?\s+(?:January|February|March|April|May|June|July|August|September|October|November|December),?\s+\d{4}\b`)
	caseNumber = regexp.MustCompile(`(?i)\b(?:civil|criminal|writ|special leave)\s+(?:appeal|petition)\s*(?:\([a-z]+\)\s*)?no\.?\s*\d+\s*(?:of|/)\s*\d{4}\b`)
)

// Court is a court the local analyzer can recognise in document text.
type Court struct {
	Name         string
	Type         string
	Jurisdiction string
	Location     string
}

// KnownCourts lists the courts recognised in document text.
var KnownCourts = []Court{
	{"Supreme Court of India", "Supreme Court", "National", "New Delhi"},
	{"Delhi High Court", "High Court", "Delhi", "New Delhi"},
	{"Bombay High Court", "High Court", "Maharashtra", "Mumbai"},
	{"Calcutta High Court", "High Court", "West Bengal", "Kolkata"},
	{"Madras High Court", "High Court", "Tamil Nadu", "Chennai"},
	{"Karnataka High Court", "High Court", "Karnataka", "Bangalore"},
	{"Gujarat High Court", "High Court", "Gujarat", "Ahmedabad"},
	{"Punjab and Haryana High Court", "High Court", "Punjab, Haryana", "Chandigarh"},
}

// sentences splits on full stops, dropping blanks.
func sentences(text string) []string {
	var out []string
	for _, s := range strings.Split(text, ".") {
		s = strings.Join(strings.Fields(s), " ")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Summarize returns the first three sentences.
func Summarize(text string) string {
	ss := sentences(text)
	if len(ss) > summaryLength {
		ss = ss[:summaryLength]
	}
	if len(ss) == 0 {
		return ""
	}
	return strings.Join(ss, ". ") + "."
}

// Preview returns the first 200 bytes of text, cut on a word boundary.
func Preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= previewLength {
		return text
	}
	cut := strings.LastIndex(text[:previewLength], " ")
	if cut <= 0 {
		cut = previewLength
	}
	return text[:cut] + "..."
}

// KeyTerms returns the legal areas mentioned in text, at most five.
func KeyTerms(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, term := range legalAreas {
		if strings.Contains(lower, strings.ToLower(term)) {
			out = append(out, term)
			if len(out) == maxKeyTerms {
				break
			}
		}
	}
	return out
}

// KeyPoints returns sentences among the first twenty that read like a
// holding or direction.
func KeyPoints(text string) []string {
	ss := sentences(text)
	if len(ss) > keyPointScan {
		ss = ss[:keyPointScan]
	}
	var out []string
	for _, s := range ss {
		if containsAny(strings.ToLower(s), holdingWords) {
			out = append(out, s)
			if len(out) == maxKeyPoints {
				break
			}
		}
	}
	return out
}

// LegalIssues returns distinct sentences that raise a recognised legal
// issue, in document order.
func LegalIssues(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range sentences(text) {
		if seen[s] || !containsAny(strings.ToLower(s), issueWords) {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == maxIssues {
			break
		}
	}
	return out
}

// Citations returns distinct law-report citations in order of first
// appearance.
func Citations(text string) []string {
	type hit struct {
		at  int
		val string
	}
	var hits []hit
	covered := make([][2]int, 0)
	for _, re := range citationPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			if overlaps(covered, loc) {
				continue
			}
			covered = append(covered, [2]int{loc[0], loc[1]})
			hits = append(hits, hit{loc[0], strings.Join(strings.Fields(text[loc[0]:loc[1]]), " ")})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })
	seen := make(map[string]bool)
	var out []string
	for _, h := range hits {
		if seen[h.val] {
			continue
		}
		seen[h.val] = true
		out = append(out, h.val)
		if len(out) == maxCitations {
			break
		}
	}
	return out
}

// DetectCourt returns the first known court named in text.
func DetectCourt(text string) (Court, bool) {
	lower := strings.ToLower(text)
	best, found := Court{}, false
	bestAt := -1
	for _, c := range KnownCourts {
		at := strings.Index(lower, strings.ToLower(c.Name))
		if at >= 0 && (bestAt < 0 || at < bestAt) {
			best, bestAt, found = c, at, true
		}
	}
	return best, found
}

// FirstDate returns the first ISO or long-form date in text.
func FirstDate(text string) string {
	iso := isoDate.FindStringIndex(text)
	long := longDate.FindStringIndex(text)
	switch {
	case iso == nil && long == nil:
		return ""
	case long == nil || (iso != nil && iso[0] < long[0]):
		return text[iso[0]:iso[1]]
	default:
		return text[long[0]:long[1]]
	}
}

// CaseNumber returns the first case number such as "Civil Appeal No. 123 of 2019".
func CaseNumber(text string) string {
	return strings.Join(strings.Fields(caseNumber.FindString(text)), " ")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func overlaps(spans [][2]int, loc []int) bool {
	for _, sp := range spans {
		if loc[0] < sp[1] && sp[0] < loc[1] {
			return true
		}
	}
	return false
}
