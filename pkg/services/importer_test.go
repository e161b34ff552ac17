package services

import (
	"strings"
	"testing"

	"github.com/corretor-crm/corretor/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImporter_Import(t *testing.T) {
	env := newTestEnv(t)
	importer := NewImporter(env.persistence, env.logger)

	env.conversation(t, "5511911112222", models.DepartmentVendas)

	result, err := importer.Import(t.Context(), []ImportRow{
		{Name: "Ana", Phone: "11 91111-2222", Tags: []string{"vip"}},
		{Name: "Bruno", Phone: "21988887777", Department: "locação"},
		{Name: "Bruno de novo", Phone: "+55 21 98888-7777"},
		{Name: "Sem telefone"},
		{Name: "Carla", Phone: "31977776666", Department: "rh"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, 4, result.Errors[0].Row)
	assert.Equal(t, 5, result.Errors[1].Row)

	bruno, err := env.persistence.ContactRepository().GetByPhone(t.Context(), "5521988887777")
	require.NoError(t, err)
	assert.Equal(t, "Bruno", bruno.Name)
	assert.Equal(t, models.DepartmentLocacao, bruno.Department)
	assert.Equal(t, "import", bruno.Source)

	ana, err := env.persistence.ContactRepository().GetByPhone(t.Context(), "5511911112222")
	require.NoError(t, err)
	assert.Equal(t, "Maria", ana.Name)
	assert.Contains(t, ana.Tags, "vip")
}

func TestParseCSV(t *testing.T) {
	input := "\ufeffNome,Telefone,E-mail,Departamento,Tags\n" +
		"Ana,(11) 91111-2222,ana@example.com,vendas,vip;zap\n" +
		"\n" +
		"Bruno,21988887777,,,\n"

	rows, err := ParseCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []ImportRow{
		{Name: "Ana", Phone: "(11) 91111-2222", Email: "ana@example.com", Department: "vendas", Tags: []string{"vip", "zap"}},
		{Name: "Bruno", Phone: "21988887777", Tags: []string{}},
	}, rows)
}

func TestParseCSV_Semicolon(t *testing.T) {
	rows, err := ParseCSV(strings.NewReader("name;whatsapp\nAna;11911112222\n"))
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "11911112222", rows[0].Phone)
}

func TestParseCSV_Invalid(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("name,email\nAna,ana@example.com\n"))
	require.ErrorIs(t, err, ErrInvalidPayload)

	rows, err := ParseCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
