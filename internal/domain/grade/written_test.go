package grade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		row       *WrittenRow
		threshold float64
		want      WrittenStatus
	}{
		{"did not sit", nil, 18, WrittenAbsent},
		{"blank paper", &WrittenRow{}, 18, WrittenRetired},
		{"below threshold", &WrittenRow{Score: Score(17)}, 18, WrittenFailed},
		{"exactly threshold", &WrittenRow{Score: Score(18)}, 18, WrittenOK},
		{"above threshold", &WrittenRow{Score: Score(27.5)}, 18, WrittenOK},
		{"zero threshold accepts zero", &WrittenRow{Score: Score(0)}, 0, WrittenOK},
		{"zero threshold accepts negative", &WrittenRow{Score: Score(-1.5)}, 0, WrittenOK},
		{"zero threshold still retires blank", &WrittenRow{}, 0, WrittenRetired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.row, tt.threshold))
		})
	}
}

func TestNewWrittenEntry(t *testing.T) {
	raw := Payload{"Username": "01twzsm0_it_23_p1070_s313385"}
	entry := NewWrittenEntry("08/09/2023", &WrittenRow{Score: Score(12.88), Raw: raw}, 18)

	assert.Equal(t, "08/09/2023", entry.SessionKey)
	assert.Equal(t, WrittenFailed, entry.Status)
	require.NotNil(t, entry.Score)
	assert.Equal(t, 12.88, *entry.Score)
	assert.Equal(t, raw, entry.RawSource)

	raw["Username"] = "changed"
	assert.Equal(t, "01twzsm0_it_23_p1070_s313385", entry.RawSource["Username"], "payload must be copied")

	absent := NewWrittenEntry("08/09/2023", nil, 18)
	assert.Equal(t, WrittenAbsent, absent.Status)
	assert.Nil(t, absent.Score)
	assert.Nil(t, absent.RawSource)
}

func TestAmendWritten_AppendsNewSession(t *testing.T) {
	history := []WrittenEntry{{SessionKey: "29/01/2024", Score: Score(10), Status: WrittenFailed}}
	entry := WrittenEntry{SessionKey: "10/02/2024", Score: Score(22), Status: WrittenOK}

	out, changed, err := AmendWritten(history, entry)

	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out, 2)
	assert.Equal(t, "29/01/2024", out[0].SessionKey)
	assert.Equal(t, "10/02/2024", out[1].SessionKey)
	assert.Len(t, history, 1)
}

func TestAmendWritten_SameBatchTwiceIsIdempotent(t *testing.T) {
	row := &WrittenRow{Score: Score(19), Raw: Payload{"Valutazione/20,00": "19,00"}}

	once, changed, err := AmendWritten(nil, NewWrittenEntry("08/09/2023", row, 18))
	require.NoError(t, err)
	assert.True(t, changed)

	twice, changed, err := AmendWritten(once, NewWrittenEntry("08/09/2023", row, 18))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
	require.Len(t, twice, 1)
	assert.Equal(t, WrittenOK, twice[0].Status)
}

func TestAmendWritten_ReplacesInPlaceWithoutMutatingInput(t *testing.T) {
	history := []WrittenEntry{
		{SessionKey: "29/01/2024", Score: Score(20), Status: WrittenOK},
		{SessionKey: "10/02/2024", Score: Score(10), Status: WrittenFailed},
	}
	corrected := WrittenEntry{SessionKey: "29/01/2024", Score: Score(21), Status: WrittenOK}

	out, changed, err := AmendWritten(history, corrected)

	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, out, 2)
	assert.Equal(t, 21.0, *out[0].Score)
	assert.Equal(t, "10/02/2024", out[1].SessionKey)
	assert.Equal(t, 20.0, *history[0].Score)
}

func TestAmendWritten_DuplicateSessionIsAmbiguous(t *testing.T) {
	history := []WrittenEntry{
		{SessionKey: "29/01/2024", Status: WrittenAbsent},
		{SessionKey: "29/01/2024", Status: WrittenAbsent},
	}

	_, _, err := AmendWritten(history, WrittenEntry{SessionKey: "29/01/2024", Status: WrittenOK})

	require.Error(t, err)
	assert.True(t, shared.IsAmbiguousMerge(err))
}
