package summarize

import (
	"strings"

	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

// MessageProfile holds the surface features derived from a captured user
// message: counts, structural flags, and tone indicators. All detection is
// rule-based and deterministic, like the activity summaries.
type MessageProfile struct {
	WordCount     int
	CharCount     int
	LineCount     int
	HasCodeBlocks bool
	HasQuestions  bool
	HasCommands   bool
	Tones         []cortexmodels.ToneIndicator
}

var toneWords = map[cortexmodels.ToneIndicator][]string{
	cortexmodels.ToneUrgent: {"urgent", "asap", "immediately", "right now", "critical", "blocker"},
	cortexmodels.TonePolite: {"please", "thanks", "thank you", "could you", "would you", "appreciate"},
	cortexmodels.ToneCasual: {"btw", "lol", "gonna", "kinda", "yeah", "hey", "stuff"},
}

var technicalWords = []string{
	"error", "stack trace", "compile", "function", "api", "endpoint",
	"database", "query", "regex", "panic", "goroutine", "segfault", "null",
}

var imperativeVerbs = []string{
	"fix", "add", "remove", "update", "change", "write", "delete", "make",
	"run", "refactor", "rename", "move", "implement", "check", "revert",
}

// AnalyzeMessage derives a MessageProfile from a raw user message.
func AnalyzeMessage(content string) MessageProfile {
	p := MessageProfile{
		WordCount: len(strings.Fields(content)),
		CharCount: len(content),
		LineCount: strings.Count(content, "\n") + 1,
	}
	if content == "" {
		p.LineCount = 0
		return p
	}

	lower := strings.ToLower(content)

	p.HasCodeBlocks = strings.Contains(content, "```")
	p.HasQuestions = strings.Contains(content, "?")
	p.HasCommands = detectCommands(content)

	for tone, words := range toneWords {
		if containsAny(lower, words) {
			p.Tones = append(p.Tones, tone)
		}
	}
	if p.HasQuestions || startsWithAny(lower, []string{"why", "how", "what", "when", "where", "can ", "does ", "is "}) {
		p.Tones = append(p.Tones, cortexmodels.ToneInquisitive)
	}
	if p.HasCodeBlocks || strings.Contains(content, "`") || containsAny(lower, technicalWords) {
		p.Tones = append(p.Tones, cortexmodels.ToneTechnical)
	}
	if startsWithAny(lower, imperativeVerbs) && !p.HasQuestions {
		p.Tones = append(p.Tones, cortexmodels.ToneDirect)
	}
	sortTones(p.Tones)
	return p
}

// detectCommands reports whether any line of the message looks like a shell
// or slash command invocation.
func detectCommands(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "$ ") || strings.HasPrefix(line, "/") {
			return true
		}
		for _, prefix := range []string{"git ", "go ", "npm ", "make ", "sudo ", "docker ", "kubectl "} {
			if strings.HasPrefix(line, prefix) {
				return true
			}
		}
	}
	return false
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func startsWithAny(s string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(s, prefix) || strings.HasPrefix(s, prefix+" ") {
			return true
		}
	}
	return false
}

// sortTones keeps tone output order stable regardless of map iteration.
func sortTones(tones []cortexmodels.ToneIndicator) {
	order := map[cortexmodels.ToneIndicator]int{
		cortexmodels.ToneUrgent:      0,
		cortexmodels.TonePolite:      1,
		cortexmodels.ToneDirect:      2,
		cortexmodels.ToneInquisitive: 3,
		cortexmodels.ToneTechnical:   4,
		cortexmodels.ToneCasual:      5,
	}
	for i := 1; i < len(tones); i++ {
		for j := i; j > 0 && order[tones[j-1]] > order[tones[j]]; j-- {
			tones[j-1], tones[j] = tones[j], tones[j-1]
		}
	}
}
