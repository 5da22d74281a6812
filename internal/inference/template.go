package inference

import "strings"

const (
	DefaultPromptTemplate = "<image>\n\nQuestion: {prompt}\n\nAnswer:"
	answerDelimiter       = "Answer:"
)

type PromptTemplate struct {
	Format string
}

func (t PromptTemplate) Render(prompt string) string {
	format := t.Format
	if format == "" {
		format = DefaultPromptTemplate
	}
	return strings.Replace(format, "{prompt}", prompt, 1)
}

// ExtractAnswer returns the trimmed segment between the first answer
// delimiter and the next one in a decoded prompt+completion sequence.
func (t PromptTemplate) ExtractAnswer(decoded string) string {
	_, after, found := strings.Cut(decoded, answerDelimiter)
	if !found {
		return strings.TrimSpace(decoded)
	}
	answer, _, _ := strings.Cut(after, answerDelimiter)
	return strings.TrimSpace(answer)
}
