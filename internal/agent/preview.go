package agent

import (
	"bytes"
	"encoding/json"
	"text/template"
)

// previewTemplates maps a tool name to a text/template rendering an
// approval-gate preview (spec §4.5: "Previews ... are generated from
// templates keyed by tool name"). {{.Doctype}} and {{.PrettyJSON}} are
// populated from the tool's decoded input when present.
var previewTemplates = map[string]*template.Template{
	"create_doc": template.Must(template.New("create_doc").Parse(
		"Create new `{{.Doctype}}`: {{.PrettyJSON}}")),
	"update_doc": template.Must(template.New("update_doc").Parse(
		"Update `{{.Doctype}}` `{{.DocName}}`: {{.PrettyJSON}}")),
	"submit_doc": template.Must(template.New("submit_doc").Parse(
		"Submit `{{.Doctype}}` `{{.DocName}}`")),
	"cancel_doc": template.Must(template.New("cancel_doc").Parse(
		"Cancel `{{.Doctype}}` `{{.DocName}}`")),
	"bulk_update_doc": template.Must(template.New("bulk_update_doc").Parse(
		"Bulk update `{{.Doctype}}`: {{.PrettyJSON}}")),
}

var genericPreviewTemplate = template.Must(template.New("generic").Parse(
	"Run `{{.ToolName}}`: {{.PrettyJSON}}"))

type previewData struct {
	ToolName   string
	Doctype    string
	DocName    string
	PrettyJSON string
}

// RenderPreview builds the human-facing ui_prompt preview for toolName with
// decoded input (spec §4.5). Unknown tool names fall back to a generic
// "Run `<tool>`: <pretty-JSON>" rendering.
func RenderPreview(toolName string, input map[string]any) string {
	pretty, _ := json.MarshalIndent(input, "", "  ")
	data := previewData{
		ToolName:   toolName,
		PrettyJSON: string(pretty),
	}
	if v, ok := input["doctype"].(string); ok {
		data.Doctype = v
	}
	if v, ok := input["name"].(string); ok {
		data.DocName = v
	}

	tmpl, ok := previewTemplates[toolName]
	if !ok {
		tmpl = genericPreviewTemplate
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "Run `" + toolName + "`"
	}
	return buf.String()
}
