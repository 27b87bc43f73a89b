package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

func TestParseDecimal(t *testing.T) {
	v, err := ParseDecimal("12,88")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.InDelta(t, 12.88, *v, 1e-9)

	v, err = ParseDecimal(" 20 ")
	require.NoError(t, err)
	assert.Equal(t, 20.0, *v)

	for _, blank := range []string{"", "  ", "-"} {
		v, err = ParseDecimal(blank)
		require.NoError(t, err)
		assert.Nil(t, v, "%q", blank)
	}

	_, err = ParseDecimal("dodici")
	assert.Error(t, err)

	for _, bad := range []string{"NaN", "nan", "Inf", "-Inf", "Infinity", "1e999"} {
		_, err = ParseDecimal(bad)
		assert.ErrorIs(t, err, shared.ErrInvalidFormat, "%q", bad)
	}
}

func TestParseUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "01twzsm0_it_23_p1070_s313385", want: "313385"},
		{in: "313385", want: "313385"},
		{in: "x_s", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseUsername(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
