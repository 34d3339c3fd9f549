package record

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cnpjscraper/cnpj"
)

func TestStore_Path(t *testing.T) {
	s := NewStore("CNPJ_extraidos")
	got := s.Path(cnpj.Identifier("24.276.421/0001-08"))
	assert.Equal(t, filepath.Join("CNPJ_extraidos", "DadosCNPJ_24276421000108.json"), got)
}

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	s := NewStore(dir)
	id := cnpj.Identifier("24.276.421/0001-08")
	rec := Record{
		"NOME EMPRESARIAL": "EMPRESA EXEMPLO LTDA",
		"MUNICÍPIO":        "SÃO PAULO",
		"UF":               "SP",
	}

	path, err := s.Save(id, rec)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "DadosCNPJ_24276421000108.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, map[string]string(rec), parsed)

	loaded, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, rec, loaded)
}

func TestStore_Save_UsesFourSpaceIndentWithoutHTMLEscaping(t *testing.T) {
	s := NewStore(t.TempDir())
	path, err := s.Save("11222333000181", Record{"BAIRRO/DISTRITO": "JARDIM & CIA <centro>"})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n    \"BAIRRO/DISTRITO\": \"JARDIM & CIA <centro>\"\n}", string(data))
}

func TestStore_Save_Overwrites(t *testing.T) {
	s := NewStore(t.TempDir())
	id := cnpj.Identifier("24276421000108")

	_, err := s.Save(id, Record{"NOME EMPRESARIAL": "PRIMEIRA", "PORTE": "ME"})
	require.NoError(t, err)
	path, err := s.Save(id, Record{"NOME EMPRESARIAL": "SEGUNDA"})
	require.NoError(t, err)

	loaded, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, Record{"NOME EMPRESARIAL": "SEGUNDA"}, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Save_ExistingDirIsFine(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	_, err := s.Save("24276421000108", Record{"UF": "SP"})
	require.NoError(t, err)
	_, err = s.Save("11222333000181", Record{"UF": "RJ"})
	require.NoError(t, err)
}

func TestStore_Save_RejectsIdentifierWithoutDigits(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Save("abc", Record{"UF": "SP"})
	assert.Error(t, err)
}

func TestStore_Load_NotFound(t *testing.T) {
	s := NewStore(t.TempDir())
	_, err := s.Load("24276421000108")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_List(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	_, err := s.Save("24276421000108", Record{"UF": "SP"})
	require.NoError(t, err)
	_, err = s.Save("11222333000181", Record{"UF": "RJ"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "DadosCNPJ_24276421000108.html"), []byte("x"), 0o644))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"11222333000181", "24276421000108"}, ids)
}

func TestStore_List_MissingDir(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope"))
	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRecord_Labels(t *testing.T) {
	rec := Record{"UF": "SP", "CEP": "01000-000", "PORTE": "ME"}
	assert.Equal(t, []string{"CEP", "PORTE", "UF"}, rec.Labels())
}
