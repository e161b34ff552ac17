package prompt

import (
	"strings"
	"testing"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_OverrideIsVerbatim(t *testing.T) {
	t.Parallel()

	override := "  Você é o Zé.\nNão use emojis.  "
	cfg := Config{
		AgentName:          "Clara",
		CustomInstructions: "isto não deve aparecer",
		Overrides:          map[models.Department]string{models.DepartmentVendas: override},
	}

	prompt, err := Build(cfg, models.DepartmentVendas)
	require.NoError(t, err)

	assert.Equal(t, override, prompt.Text)
	assert.True(t, prompt.Overridden)
	assert.Equal(t, EstimateTokens(override), prompt.Tokens)
}

func TestBuild_BlankOverrideFallsBackToTemplate(t *testing.T) {
	t.Parallel()

	cfg := Config{Overrides: map[models.Department]string{models.DepartmentVendas: "   "}}

	prompt, err := Build(cfg, models.DepartmentVendas)
	require.NoError(t, err)

	assert.False(t, prompt.Overridden)
	assert.Contains(t, prompt.Text, "setor de vendas")
}

func TestBuild_OverrideOfOtherDepartmentIsIgnored(t *testing.T) {
	t.Parallel()

	cfg := Config{Overrides: map[models.Department]string{models.DepartmentVendas: "override"}}

	prompt, err := Build(cfg, models.DepartmentLocacao)
	require.NoError(t, err)

	assert.False(t, prompt.Overridden)
	assert.Contains(t, prompt.Text, "setor de locação")
}

func TestBuild_Template(t *testing.T) {
	t.Parallel()

	cfg := Config{
		AgentName:          "Clara",
		CompanyName:        "Imobiliária Horizonte",
		Tone:               "descontraído",
		BusinessRules:      []string{"Não aceitamos pets acima de 10kg", " ", "Fiador ou seguro-fiança"},
		Scripts:            map[models.Department]string{models.DepartmentLocacao: "Pergunte o bairro primeiro."},
		CustomInstructions: "Sempre termine com: Posso ajudar em algo mais?",
	}

	prompt, err := Build(cfg, models.DepartmentLocacao)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt.Text, "Você é Clara, assistente virtual do setor de locação da Imobiliária Horizonte."))
	assert.Contains(t, prompt.Text, "Seu tom de voz deve ser descontraído.")
	assert.Contains(t, prompt.Text, "- Não aceitamos pets acima de 10kg\n- Fiador ou seguro-fiança")
	assert.Contains(t, prompt.Text, "Roteiro do setor:\nPergunte o bairro primeiro.")
	assert.True(t, strings.HasSuffix(prompt.Text, "\n\nSempre termine com: Posso ajudar em algo mais?"))
	assert.Equal(t, EstimateTokens(prompt.Text), prompt.Tokens)
}

func TestBuild_Defaults(t *testing.T) {
	t.Parallel()

	prompt, err := Build(Config{}, models.DepartmentAdministrativo)
	require.NoError(t, err)

	assert.Contains(t, prompt.Text, "Você é Assistente")
	assert.Contains(t, prompt.Text, "cordial e profissional")
	assert.NotContains(t, prompt.Text, "Regras do negócio")
	assert.NotContains(t, prompt.Text, "Roteiro do setor")
}

func TestBuild_EveryDepartmentHasTemplate(t *testing.T) {
	t.Parallel()

	for _, dept := range models.Departments {
		prompt, err := Build(Config{AgentName: "Clara"}, dept)
		require.NoError(t, err, dept)
		assert.NotEmpty(t, prompt.Text)
		assert.Equal(t, dept, prompt.Department)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	cfg := Config{AgentName: "Clara", BusinessRules: []string{"a", "b"}, CustomInstructions: "c"}

	first, err := Build(cfg, models.DepartmentMarketing)
	require.NoError(t, err)

	second, err := Build(cfg, models.DepartmentMarketing)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuild_UnknownDepartment(t *testing.T) {
	t.Parallel()

	_, err := Build(Config{}, "juridico")
	require.Error(t, err)
}

func TestFromBehavior(t *testing.T) {
	t.Parallel()

	cfg := FromBehavior(models.BehaviorConfig{
		Department:     models.DepartmentVendas,
		AgentName:      "Rui",
		Script:         "roteiro",
		PromptOverride: "override",
	})

	assert.Equal(t, "Rui", cfg.AgentName)
	assert.Equal(t, "roteiro", cfg.Scripts[models.DepartmentVendas])
	assert.Equal(t, "override", cfg.Overrides[models.DepartmentVendas])

	empty := FromBehavior(models.BehaviorConfig{Department: models.DepartmentVendas})
	assert.Nil(t, empty.Overrides)
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"ação", 1},
		{strings.Repeat("x", 400), 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, EstimateTokens(tt.text), tt.text)
	}
}
