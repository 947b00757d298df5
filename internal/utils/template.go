package utils

import (
	"fmt"
	"strings"
	"text/template"
)

// RenderContractTemplate substitutes runtime template values into template
// code before compilation. Values are referenced as {{.TokenName}} etc.
func RenderContractTemplate(templateCode string, values map[string]interface{}) (string, error) {
	tmpl, err := template.New("contract").Option("missingkey=error").Parse(templateCode)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, values); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return rendered.String(), nil
}
