package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

var (
	colorRed    = color.FgRed
	colorGreen  = color.FgGreen
	colorYellow = color.FgYellow
	colorCyan   = color.FgCyan
	colorBold   = color.Bold
)

func colorize(attr color.Attribute, text string) string {
	c := color.New(attr)
	if noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(text)
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// printPrecedentLine writes the one-line listing form used by search,
// favorites, and recent.
func printPrecedentLine(w io.Writer, p domain.Precedent) {
	star := " "
	if p.IsFavorite {
		star = colorize(colorYellow, "★")
	}
	fmt.Fprintf(w, "%s %s %s [%.2f]\n", star, colorize(colorCyan, p.ID), colorize(colorBold, p.Title), p.Similarity)
	var meta []string
	if p.Court != "" {
		meta = append(meta, p.Court)
	}
	if p.Date != "" {
		meta = append(meta, p.Date)
	}
	if p.CitationText != "" {
		meta = append(meta, p.CitationText)
	}
	if len(meta) > 0 {
		fmt.Fprintf(w, "    %s\n", strings.Join(meta, " · "))
	}
	if p.Summary != "" {
		fmt.Fprintf(w, "    %s\n", truncate(p.Summary, 200))
	}
}

func printPrecedentDetail(w io.Writer, p domain.Precedent) {
	fmt.Fprintln(w, colorize(colorBold, p.Title))
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(w, "  %s %s\n", colorize(colorBold, label+":"), value)
		}
	}
	field("ID", p.ID)
	field("Court", p.Court)
	field("Date", p.Date)
	field("Citation", p.CitationText)
	field("Judges", strings.Join(p.Judges, ", "))
	roles := make([]string, 0, len(p.Parties))
	for role := range p.Parties {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		field(role, p.Parties[role])
	}
	if p.IsFavorite {
		field("Favorite", "yes")
	}
	if len(p.Tags) > 0 {
		field("Tags", strings.Join(p.Tags, ", "))
	}
	if p.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", p.Summary)
	}
	if len(p.KeyPoints) > 0 {
		fmt.Fprintln(w, "\n"+colorize(colorBold, "Key points"))
		for _, kp := range p.KeyPoints {
			fmt.Fprintf(w, "  • %s\n", kp)
		}
	}
	if p.HowItHelps != "" {
		fmt.Fprintf(w, "\n%s %s\n", colorize(colorBold, "How it helps:"), p.HowItHelps)
	}
	if len(p.Citations) > 0 {
		fmt.Fprintln(w, "\n"+colorize(colorBold, "Cited"))
		for _, c := range p.Citations {
			fmt.Fprintf(w, "  %s\n", c)
		}
	}
}

func printCitations(w io.Writer, sources []domain.Citation) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w, colorize(colorBold, "Sources:"))
	for i, s := range sources {
		fmt.Fprintf(w, "  [%d] %s", i+1, s.Title)
		if s.URL != "" {
			fmt.Fprintf(w, " <%s>", s.URL)
		}
		fmt.Fprintln(w)
	}
}

func jobStatusColor(s domain.JobStatus) color.Attribute {
	switch s {
	case domain.JobCompleted:
		return colorGreen
	case domain.JobError:
		return colorRed
	default:
		return colorYellow
	}
}
