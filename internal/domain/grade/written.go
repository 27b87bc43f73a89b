package grade

// DefaultWrittenThreshold is the minimum written score to pass a sitting.
const DefaultWrittenThreshold = 18.0

// WrittenRow is one parsed row of a written exam batch: a student who sat
// the exam. A nil Score means the student handed in a blank paper.
type WrittenRow struct {
	Score *float64
	Raw   Payload
}

// DeriveStatus classifies a roster student's sitting.
// A nil row means the student was registered but did not sit the exam.
// A threshold of zero or below accepts any numeric score.
func DeriveStatus(row *WrittenRow, threshold float64) WrittenStatus {
	switch {
	case row == nil:
		return WrittenAbsent
	case row.Score == nil:
		return WrittenRetired
	case threshold > 0 && *row.Score < threshold:
		return WrittenFailed
	default:
		return WrittenOK
	}
}

// NewWrittenEntry builds the history entry for one roster student.
func NewWrittenEntry(session string, row *WrittenRow, threshold float64) WrittenEntry {
	entry := WrittenEntry{
		SessionKey: session,
		Status:     DeriveStatus(row, threshold),
	}
	if row != nil {
		if row.Score != nil {
			entry.Score = Score(*row.Score)
		}
		entry.RawSource = row.Raw.Clone()
	}
	return entry
}

// AmendWritten replaces the entry sharing entry's session key, or appends
// entry when the session is new. The input slice is never mutated.
// The boolean reports whether the resulting history differs.
func AmendWritten(history []WrittenEntry, entry WrittenEntry) ([]WrittenEntry, bool, error) {
	idx, err := writtenIndex(history, entry.SessionKey)
	if err != nil {
		return history, false, err
	}

	out := make([]WrittenEntry, len(history), len(history)+1)
	copy(out, history)

	if idx < 0 {
		return append(out, entry), true, nil
	}
	if out[idx].equal(entry) {
		return history, false, nil
	}
	out[idx] = entry
	return out, true, nil
}
