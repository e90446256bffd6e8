// Package prompt assembles the grounded prompt sent to the generation model.
package prompt

import (
	"strings"
	"text/template"

	"ragbot/internal/domain"
)

const defaultTemplate = `
You are a helpful assistant who strictly answers questions only about {{.Subject}}.
Answer ONLY using the context provided below. Do NOT include any external information.
If the provided context is insufficient or if the question is not related to {{.Subject}},
respond exactly with: "{{.Refusal}}"

Context:
{{.Context}}

Question:
{{.Question}}
`

// Builder renders retrieved context and a question into a single prompt.
type Builder struct {
	subject string
	tmpl    *template.Template
}

// New returns a Builder for the given subject using the default template.
func New(subject string) *Builder {
	return &Builder{
		subject: subject,
		tmpl:    template.Must(template.New("prompt").Parse(defaultTemplate)),
	}
}

// Refusal returns the exact text the model must reply with for out-of-scope questions.
func Refusal(subject string) string {
	return "I can't answer that question, ask me anything about " + subject + "."
}

// RefusalText returns the refusal string for this builder's subject.
func (b *Builder) RefusalText() string { return Refusal(b.subject) }

// Context joins chunk texts in retrieval order separated by a blank line.
func Context(results []domain.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	return strings.Join(texts, "\n\n")
}

// Build renders the prompt. The question is inserted as given.
func (b *Builder) Build(results []domain.SearchResult, question string) (string, error) {
	var sb strings.Builder
	err := b.tmpl.Execute(&sb, struct {
		Subject, Refusal, Context, Question string
	}{
		Subject:  b.subject,
		Refusal:  b.RefusalText(),
		Context:  Context(results),
		Question: question,
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
