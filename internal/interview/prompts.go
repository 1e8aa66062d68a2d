package interview

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
)

//go:embed prompts/*.md
var promptFiles embed.FS

var (
	nextQuestionTemplate     = template.Must(template.ParseFS(promptFiles, "prompts/next_question.md"))
	followupQuestionTemplate = template.Must(template.ParseFS(promptFiles, "prompts/followup_question.md"))
	judgementTemplate        = template.Must(template.ParseFS(promptFiles, "prompts/judgement.md"))
)

// promptData is the input shared by all prompt templates.
type promptData struct {
	Role    string
	Resume  string
	History string
	// Thread is the exchange about the current resume entry.
	Thread string
}

func render(tmpl *template.Template, data promptData) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
