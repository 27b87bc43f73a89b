package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"8 settembre 2023  09:40", "08/09/2023"},
		{"29 Gennaio 2024 14:00", "29/01/2024"},
		{"10 febbraio 2024", "10/02/2024"},
	}
	for _, tt := range tests {
		got, err := ExamDate(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestExamDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "8 september 2023 09:40", "31 febbraio 2024", "x settembre 2023", "8 settembre 2023 25:99"} {
		_, err := ExamDate(in)
		assert.Error(t, err, in)
	}
}

func TestParseItalianDateTime_Clock(t *testing.T) {
	got, err := ParseItalianDateTime("8 settembre 2023  09:40")

	require.NoError(t, err)
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 40, got.Minute())
	assert.Equal(t, time.September, got.Month())
}

func TestFormDate(t *testing.T) {
	got, err := FormDate("1/3/2024 10:00:00")
	require.NoError(t, err)
	assert.Equal(t, "01/03/2024", got)

	got, err = FormDate("15/12/2023")
	require.NoError(t, err)
	assert.Equal(t, "15/12/2023", got)

	_, err = FormDate("2024-03-01")
	assert.Error(t, err)
}

func TestMonthNameIt(t *testing.T) {
	assert.Equal(t, "settembre", MonthNameIt(time.September))
	assert.Equal(t, "", MonthNameIt(time.Month(13)))
}

func TestParseSessionDate(t *testing.T) {
	got, err := ParseSessionDate("08/09/2023")
	require.NoError(t, err)
	assert.Equal(t, 2023, got.Year())
	assert.Equal(t, 8, got.Day())
}
