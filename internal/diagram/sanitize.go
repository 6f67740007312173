// Package diagram normalizes untrusted, model-generated diagram text and
// renders it through an external engine, degrading to a textual fallback
// instead of ever surfacing a render failure.
package diagram

import "strings"

// diagramKeywords are the diagram kinds the engine recognizes as a first
// token. Text that opens with none of these gets a default flow-graph
// header prepended.
var diagramKeywords = []string{
	"graph",
	"flowchart",
	"sequenceDiagram",
	"classDiagram",
	"erDiagram",
	"stateDiagram",
	"stateDiagram-v2",
	"timeline",
	"pie",
	"gantt",
	"journey",
	"mindmap",
}

// defaultHeader assumes bare node/edge definitions. This is a heuristic:
// the result may still be invalid, which is the renderer's problem.
const defaultHeader = "flowchart TD"

// Sanitize turns raw diagram-description text into a syntactically
// plausible description: surrounding whitespace trimmed, a wrapping fenced
// code block stripped, and a default flow-graph header prepended when no
// recognized diagram keyword opens the text. It never fails and is
// idempotent.
func Sanitize(raw string) string {
	text := strings.TrimSpace(raw)
	text = stripFence(text)

	if text == "" {
		return defaultHeader
	}
	if hasDiagramKeyword(text) {
		return text
	}
	return defaultHeader + "\n" + text
}

// stripFence removes a wrapping fenced code block: a leading ``` marker
// (with optional language tag) and, only as its pair, a trailing ``` line.
// A trailing fence without a leading one belongs to the body and is left
// alone, as are fences inside the body.
func stripFence(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "```") {
		return text
	}

	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// hasDiagramKeyword reports whether the first token of the text is one of
// the recognized diagram kinds.
func hasDiagramKeyword(text string) bool {
	first := text
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		first = text[:i]
	}
	for _, kw := range diagramKeywords {
		if first == kw {
			return true
		}
	}
	return false
}
