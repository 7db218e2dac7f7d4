package core

import "strings"

// BuildPrompt renders the query and its context passages into the completion
// prompt. Pure: same inputs always produce the same output. The wording may be
// localized, but the role clause, the context-only clause, and the
// closest-related fallback clause must all survive any rewording.
func BuildPrompt(query string, passages []string) string {
	context := strings.Join(passages, "\n\n")

	var sb strings.Builder
	sb.Grow(len(context) + len(query) + 512)
	sb.WriteString("You are an agricultural assistant for Cambodia.\n")
	sb.WriteString("Answer the following question using the provided context.\n\n")
	sb.WriteString("Remember that you can't answer based on your own understanding, you must 100% follow the provided context. ")
	sb.WriteString("If you can't find any relevant information in the context to answer the question, find the most closely related content instead of refusing.\n\n")
	sb.WriteString("Context:\n")
	sb.WriteString(context)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nAnswer:")
	return sb.String()
}
