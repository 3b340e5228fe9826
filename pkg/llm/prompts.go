package llm

import (
	"bytes"
	"fmt"
	"text/template"
)

// Every prompt demands a strict JSON reply so parsing stays trivial. Topic
// choices are constrained to the taxonomy; NormalizeTopics cleans up drift.

const replyFormat = `Reply with ONLY a JSON object in this exact shape, no prose around it:
{"summary": "<2-4 plain sentences a resident can understand>", "topics": ["<topic>", ...]}

Choose topics only from: housing, land use, transportation, budget, public safety, environment, utilities, parks, contracts, personnel, health, education, events, governance, economic development.`

var itemPromptTemplate = template.Must(template.New("item").Parse(`You summarize municipal agenda items for residents.

Agenda item: {{.Title}}
{{if .SharedContext}}
Meeting-wide context (shared documents, reference only):
{{.SharedContext}}
{{end}}
Item documents ({{.PageCount}} pages):
{{.Text}}

Summarize what is being decided and why it matters locally. ` + replyFormat))

var meetingPromptTemplate = template.Must(template.New("meeting").Parse(`You summarize municipal meeting agendas for residents.

Meeting: {{.Title}}

Full agenda packet:
{{.Text}}

Summarize the most consequential business of this meeting. ` + replyFormat))

var matterPromptTemplate = template.Must(template.New("matter").Parse(`You summarize municipal legislation for residents.

Legislative matter: {{.Title}}{{if .File}} (file {{.File}}){{end}}

Legislation documents:
{{.Text}}

Summarize what this legislation does and who it affects. ` + replyFormat))

// ItemPrompt renders the per-item prompt. sharedContext may be empty.
func ItemPrompt(req ItemRequest, sharedContext string) (string, error) {
	if !req.UseSharedContext {
		sharedContext = ""
	}
	return render(itemPromptTemplate, map[string]any{
		"Title":         req.Title,
		"Text":          req.Text,
		"PageCount":     req.PageCount,
		"SharedContext": sharedContext,
	})
}

// MeetingPrompt renders the monolithic full-packet prompt.
func MeetingPrompt(title, text string) (string, error) {
	return render(meetingPromptTemplate, map[string]any{"Title": title, "Text": text})
}

// MatterPrompt renders the canonical matter prompt.
func MatterPrompt(title, file, text string) (string, error) {
	return render(matterPromptTemplate, map[string]any{"Title": title, "File": file, "Text": text})
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}
