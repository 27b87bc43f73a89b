package postgres

import (
	"context"
	"fmt"

	"github.com/dsl-grades/grade-hub/internal/domain/grade"
)

// MarkerRepository implements grade.MarkerRepository for PostgreSQL.
type MarkerRepository struct {
	conn *Connection
}

// NewMarkerRepository creates a new MarkerRepository.
func NewMarkerRepository(conn *Connection) *MarkerRepository {
	return &MarkerRepository{conn: conn}
}

var _ grade.MarkerRepository = (*MarkerRepository)(nil)

// CurrentSession reads both markers; missing rows stay empty.
func (r *MarkerRepository) CurrentSession(ctx context.Context) (grade.Session, error) {
	rows, err := r.conn.Query(ctx, "SELECT stream, session_key FROM session_markers")
	if err != nil {
		return grade.Session{}, fmt.Errorf("failed to read session markers: %w", err)
	}
	defer rows.Close()

	var s grade.Session
	for rows.Next() {
		var stream, key string
		if err := rows.Scan(&stream, &key); err != nil {
			return grade.Session{}, fmt.Errorf("failed to scan session marker: %w", err)
		}
		s = s.With(grade.Stream(stream), key)
	}
	return s, rows.Err()
}

// SetMarker upserts the marker of one stream.
func (r *MarkerRepository) SetMarker(ctx context.Context, stream grade.Stream, key string) error {
	_, err := r.conn.Exec(ctx, `
		INSERT INTO session_markers (stream, session_key) VALUES ($1, $2)
		ON CONFLICT (stream) DO UPDATE SET session_key = EXCLUDED.session_key, updated_at = NOW()
	`, string(stream), key)
	if err != nil {
		return fmt.Errorf("failed to set %s marker: %w", stream, err)
	}
	return nil
}
