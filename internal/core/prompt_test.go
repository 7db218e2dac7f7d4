package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptContainsQueryAndPassages(t *testing.T) {
	query := "តើស្រូវត្រូវការជីអ្វី?"
	passages := []string{
		"--- Chunk 1\nRice needs nitrogen.",
		"--- Chunk 2\nCorn needs water.",
	}

	prompt := BuildPrompt(query, passages)

	assert.Contains(t, prompt, query)
	for _, p := range passages {
		assert.Contains(t, prompt, p)
	}
}

func TestBuildPromptKeepsInstructionClauses(t *testing.T) {
	prompt := BuildPrompt("q", []string{"c"})

	assert.Contains(t, prompt, "agricultural assistant for Cambodia")
	assert.Contains(t, prompt, "provided context")
	assert.Contains(t, prompt, "most closely related")
}

func TestBuildPromptJoinsPassagesWithBlankLine(t *testing.T) {
	prompt := BuildPrompt("q", []string{"first", "second"})
	assert.Contains(t, prompt, "first\n\nsecond")
}

func TestBuildPromptIsPure(t *testing.T) {
	passages := []string{"a", "b"}
	first := BuildPrompt("same query", passages)
	second := BuildPrompt("same query", passages)
	assert.Equal(t, first, second)
}

func TestBuildPromptEmptyContext(t *testing.T) {
	prompt := BuildPrompt("lonely question", nil)
	assert.Contains(t, prompt, "lonely question")
	assert.False(t, strings.Contains(prompt, "%s"), "template placeholders must not leak")
}
