package summarize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omnicortex/omnicortex/pkg/cortexmodels"
)

func TestSummarize_KnownToolWithPath(t *testing.T) {
	res := Summarize("Read", `{"file_path":"/src/main.go"}`, true, "")
	assert.Equal(t, "read /src/main.go", res.Brief)
	assert.Contains(t, res.Detail, "succeeded")
	assert.Contains(t, res.Detail, "/src/main.go")
}

func TestSummarize_UnknownToolFallsBackToUsed(t *testing.T) {
	res := Summarize("CustomTool", `{"query":"weather"}`, true, "")
	assert.Equal(t, "used weather", res.Brief)
}

func TestSummarize_FailureCarriesShortError(t *testing.T) {
	res := Summarize("Bash", `{"command":"make test"}`, false, "exit status 2\nlong trailing detail")
	assert.Contains(t, res.Detail, "failed with exit status 2")
	assert.NotContains(t, res.Detail, "long trailing detail")
}

func TestSummarize_BriefCappedAtTwelveWords(t *testing.T) {
	long := strings.Repeat("word ", 30)
	res := Summarize("Bash", `{"command":"`+strings.TrimSpace(long)+`"}`, true, "")
	assert.LessOrEqual(t, len(strings.Fields(res.Brief)), 12)
	assert.LessOrEqual(t, len(strings.Fields(res.Detail)), 20)
}

func TestSummarize_NonJSONInputIsTruncatedVerbatim(t *testing.T) {
	res := Summarize("Bash", "plain text input", true, "")
	assert.Equal(t, "ran plain text input", res.Brief)
}

func TestSummarize_Deterministic(t *testing.T) {
	a := Summarize("Edit", `{"file_path":"x.go"}`, true, "")
	b := Summarize("Edit", `{"file_path":"x.go"}`, true, "")
	assert.Equal(t, a, b)
}

func TestAnalyzeMessage_Counts(t *testing.T) {
	p := AnalyzeMessage("one two three\nfour")
	assert.Equal(t, 4, p.WordCount)
	assert.Equal(t, 18, p.CharCount)
	assert.Equal(t, 2, p.LineCount)
}

func TestAnalyzeMessage_Empty(t *testing.T) {
	p := AnalyzeMessage("")
	assert.Zero(t, p.WordCount)
	assert.Zero(t, p.CharCount)
	assert.Zero(t, p.LineCount)
	assert.Empty(t, p.Tones)
}

func TestAnalyzeMessage_StructuralFlags(t *testing.T) {
	p := AnalyzeMessage("can you explain this?\n```go\nfunc main() {}\n```")
	assert.True(t, p.HasCodeBlocks)
	assert.True(t, p.HasQuestions)
	assert.False(t, p.HasCommands)

	p = AnalyzeMessage("$ git status")
	assert.True(t, p.HasCommands)

	p = AnalyzeMessage("/recall something")
	assert.True(t, p.HasCommands)
}

func TestAnalyzeMessage_Tones(t *testing.T) {
	p := AnalyzeMessage("please fix this asap, the api endpoint is returning an error")
	require.NotEmpty(t, p.Tones)
	assert.Contains(t, p.Tones, cortexmodels.ToneUrgent)
	assert.Contains(t, p.Tones, cortexmodels.TonePolite)
	assert.Contains(t, p.Tones, cortexmodels.ToneTechnical)

	p = AnalyzeMessage("fix the login page")
	assert.Contains(t, p.Tones, cortexmodels.ToneDirect)
	assert.NotContains(t, p.Tones, cortexmodels.ToneInquisitive)

	p = AnalyzeMessage("how does the scheduler work?")
	assert.Contains(t, p.Tones, cortexmodels.ToneInquisitive)
}

func TestAnalyzeMessage_ToneOrderStable(t *testing.T) {
	a := AnalyzeMessage("hey, please check the database query asap?")
	b := AnalyzeMessage("hey, please check the database query asap?")
	assert.Equal(t, a.Tones, b.Tones)
}
