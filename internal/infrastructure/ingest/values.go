package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dsl-grades/grade-hub/internal/domain/shared"
)

// ParseDecimal parses a score cell. Exam exports use a decimal comma
// ("12,88"). A blank cell or a lone "-" means no score and yields nil.
// NaN and infinities are rejected.
func ParseDecimal(cell string) (*float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.Replace(cell, ",", ".", 1), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, shared.NewDomainError("ingest", "ParseDecimal", shared.ErrInvalidFormat,
			fmt.Sprintf("not a number: %q", cell))
	}
	return &v, nil
}

// ParseUsername extracts the student id from an exam platform username:
// "01twzsm0_it_23_p1070_s313385" -> "313385". The id is the last
// underscore-separated part with its leading "s" dropped. A username with
// no underscore is taken as a bare id.
func ParseUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	part := username
	if i := strings.LastIndexByte(username, '_'); i >= 0 {
		part = username[i+1:]
		part = strings.TrimPrefix(strings.TrimPrefix(part, "s"), "S")
	}
	id, err := shared.NewExternalID(part)
	if err != nil {
		return "", fmt.Errorf("username %q: %w", username, err)
	}
	return id.String(), nil
}
