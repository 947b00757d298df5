package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderContractTemplate(t *testing.T) {
	code := `contract {{.TokenName}} { string symbol = "{{.Symbol}}"; }`

	rendered, err := RenderContractTemplate(code, map[string]interface{}{
		"TokenName": "MyToken",
		"Symbol":    "MTK",
	})
	require.NoError(t, err)
	assert.Equal(t, `contract MyToken { string symbol = "MTK"; }`, rendered)
}

func TestRenderContractTemplateMissingValue(t *testing.T) {
	code := `contract {{.TokenName}} {}`

	_, err := RenderContractTemplate(code, map[string]interface{}{})
	assert.Error(t, err)
}

func TestRenderContractTemplateInvalidSyntax(t *testing.T) {
	_, err := RenderContractTemplate(`contract {{.Unclosed`, map[string]interface{}{})
	assert.Error(t, err)
}

func TestRenderContractTemplateNoPlaceholders(t *testing.T) {
	code := `contract Fixed {}`

	rendered, err := RenderContractTemplate(code, map[string]interface{}{"Unused": "x"})
	require.NoError(t, err)
	assert.Equal(t, code, rendered)
}
