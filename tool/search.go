// Package tool provides web search backends for the research pipeline. Each
// backend exposes a structured Search method plus the Name/Description/Call
// triple, so it can also be handed to a langchaingo agent as a tools.Tool.
package tool

import (
	"fmt"
	"strings"
)

// Result is a single search hit.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// formatResults renders hits as the numbered plain-text block that tool
// callers receive from Call.
func formatResults(results []Result) string {
	if len(results) == 0 {
		return "No results found"
	}

	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. Title: %s\nURL: %s\nDescription: %s\n\n",
			i+1, r.Title, r.URL, r.Snippet)
	}
	return sb.String()
}
