package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

func parse(t *testing.T, body string) *Table {
	t.Helper()
	tbl, err := ParseCSV(strings.NewReader(body), "test.csv")
	require.NoError(t, err)
	return tbl
}

func TestParseCSV_Semicolon(t *testing.T) {
	tbl := parse(t, "\xef\xbb\xbfUsername;Iniziato;Valutazione/20,00\n"+
		"01twzsm0_it_23_p1070_s313385;8 settembre 2023  09:40;12,88\n"+
		"\n"+
		"01twzsm0_it_23_p1070_s300001;8 settembre 2023  09:41;-\n")

	assert.Equal(t, []string{"Username", "Iniziato", "Valutazione/20,00"}, tbl.Header)
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "12,88", tbl.Rows[0]["Valutazione/20,00"])
	assert.Equal(t, []int{2, 4}, tbl.Lines)
}

func TestParseCSV_CommaAndShortRows(t *testing.T) {
	tbl := parse(t, "matricola,rounded_points\n313385,24.5\n300001\n")

	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, "24.5", tbl.Rows[0]["rounded_points"])
	assert.Equal(t, "", tbl.Rows[1]["rounded_points"])
}

func TestParseCSV_Empty(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""), "empty.csv")
	assert.True(t, shared.IsMalformedBatch(err))
}

func TestReadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "enrolled.csv")
	require.NoError(t, os.WriteFile(path, []byte("MATRICOLA,NOME,COGNOME\n313385,Ada,Lovelace\n"), 0o600))

	tbl, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, tbl.Rows, 1)

	_, err = ReadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestTable_ColumnPrefix(t *testing.T) {
	tbl := parse(t, "MATRICOLA;COGNOME - (*) Inserito dal docente;NOME\n1;a;b\n")

	h, ok := tbl.Column("COGNOME")
	require.True(t, ok)
	assert.Equal(t, "COGNOME - (*) Inserito dal docente", h)

	_, ok = tbl.Column("COGN")
	assert.False(t, ok)
}

func TestTable_RequireMissing(t *testing.T) {
	tbl := parse(t, "a,b\n1,2\n")

	_, err := tbl.Require("a", "c", "d")
	require.Error(t, err)
	assert.True(t, shared.IsMalformedBatch(err))
	assert.Contains(t, err.Error(), "c, d")
}
