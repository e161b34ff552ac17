package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"nome":       "Maria",
		"quartos":    3,
		"financiado": true,
	}

	result, err := Render("{{ .nome }}", data)
	require.NoError(t, err)
	assert.Equal(t, "Maria", result)

	result, err = Render("{{ .financiado }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Numbers always map to float
	result, err = Render("{{ .quartos }}", data)
	require.NoError(t, err)
	assert.Equal(t, 3.0, result)
}

func TestRender_ObjectConstruction(t *testing.T) {
	data := map[string]any{
		"imovel": map[string]any{"codigo": "AP-123"},
		"fotos":  []any{"a.jpg", "b.jpg"},
	}

	result, err := Render(`{"codigo": "{{ .imovel.codigo }}", "fotos": {{ len .fotos }}}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "AP-123", resultMap["codigo"])
	assert.Equal(t, 2.0, resultMap["fotos"])
}

func TestRender_ErrorHandling(t *testing.T) {
	data := map[string]any{"test": "value"}

	_, err := Render("{ invalid..expression }", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse json")

	_, err = Render("{{ nonexistent.field }}", data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestRenderString_Interpolation(t *testing.T) {
	data := map[string]any{"nome": "João da Silva", "bairro": "Centro"}

	result, err := RenderString("Olá {{ firstName .nome }}, temos opções no {{ .bairro }}!", data)
	require.NoError(t, err)
	assert.Equal(t, "Olá João, temos opções no Centro!", result)
}

func TestRenderString_MissingKeyRendersEmpty(t *testing.T) {
	result, err := RenderString("Olá {{ .nome }}!", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Olá !", result)

	result, err = RenderString("Olá {{ default \"cliente\" .nome }}!", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Olá cliente!", result)
}

func TestRenderString_PlainTextIsReturnedVerbatim(t *testing.T) {
	result, err := RenderString("Sem variáveis { aqui }", nil)
	require.NoError(t, err)
	assert.Equal(t, "Sem variáveis { aqui }", result)
}
