// Package summarize produces the rule-based brief and detail summaries an
// activity is stored with (spec.md §4.5). Summaries are deterministic; an
// LLM-backed summarizer may be layered in front of this package as an
// adapter but the core never requires one.
package summarize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Result holds the two summary strings derived from a tool call.
type Result struct {
	Brief  string // 1-12 words: "<verb> <object>"
	Detail string // at most 20 words: "<verb> <tool> <argument> (<outcome>)"; not padded to a minimum length
}

// verbForTool maps common tool names to a natural-language verb, the way a
// human skimming activity history would phrase it. Unknown tools fall back
// to "used".
var verbForTool = map[string]string{
	"Read":      "read",
	"Write":     "wrote",
	"Edit":      "edited",
	"Bash":      "ran",
	"Grep":      "searched",
	"Glob":      "listed",
	"WebFetch":  "fetched",
	"WebSearch": "searched the web for",
	"Task":      "delegated",
}

// Summarize builds the brief and detail summaries for an activity.
func Summarize(toolName string, toolInput string, success bool, errorMessage string) Result {
	verb := verbForTool[toolName]
	if verb == "" {
		verb = "used"
	}

	object := principalArgument(toolInput)
	brief := strings.TrimSpace(fmt.Sprintf("%s %s", verb, object))
	if brief == "" {
		brief = toolName
	}
	brief = capWords(brief, 12)

	outcome := "succeeded"
	if !success {
		outcome = "failed"
		if errorMessage != "" {
			outcome = "failed with " + shortError(errorMessage)
		}
	}

	detail := strings.TrimSpace(fmt.Sprintf("%s %s %s (%s)", verb, toolName, object, outcome))
	detail = capWords(detail, 20)

	return Result{Brief: brief, Detail: detail}
}

// principalArgument extracts the most salient argument from a tool's input
// JSON: the first field it recognizes as a path or a primary argument,
// falling back to the non-empty string value under the alphabetically first
// key, so the choice does not depend on map iteration order.
var principalKeys = []string{"file_path", "path", "pattern", "command", "query", "url", "prompt"}

func principalArgument(toolInput string) string {
	if toolInput == "" {
		return ""
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(toolInput), &fields); err != nil {
		return truncate(toolInput, 60)
	}
	for _, key := range principalKeys {
		if v, ok := fields[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return truncate(s, 60)
			}
		}
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return truncate(s, 60)
		}
	}
	return ""
}

func shortError(msg string) string {
	msg = strings.SplitN(msg, "\n", 2)[0]
	return truncate(msg, 40)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "…"
}

func capWords(s string, max int) string {
	words := strings.Fields(s)
	if len(words) <= max {
		return s
	}
	return strings.Join(words[:max], " ")
}
