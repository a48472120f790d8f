package store

import (
	"context"
	"fmt"

	"github.com/codeexec/engine/internal/domain"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, language_id, source_code, status, created_at, updated_at`

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	var status string
	err := row.Scan(&s.ID, &s.LanguageID, &s.SourceCode, &status, &s.CreatedAt, &s.UpdatedAt)
	s.Status = domain.SessionStatus(status)
	return s, err
}

// CreateSession inserts a new ACTIVE session bound to languageID,
// seeded with the language's starter template as source.
func (s *Store) CreateSession(ctx context.Context, id, languageID, sourceCode string) (domain.Session, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, language_id, source_code, status)
		VALUES ($1, $2, $3, 'ACTIVE')
		RETURNING `+sessionColumns,
		id, languageID, sourceCode,
	)
	session, err := scanSession(row)
	if err != nil {
		return domain.Session{}, fmt.Errorf("store: create session: %w", err)
	}
	return session, nil
}

// Session returns one session by id.
func (s *Store) Session(ctx context.Context, id string) (domain.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	session, err := scanSession(row)
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// UpdateSource overwrites a session's current source text (autosave).
// Sessions are never deleted by core logic; this is one of only two
// mutations a session undergoes.
func (s *Store) UpdateSource(ctx context.Context, id, sourceCode string) (domain.Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions SET source_code = $2
		WHERE id = $1
		RETURNING `+sessionColumns,
		id, sourceCode,
	)
	session, err := scanSession(row)
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// CloseSession transitions a session to INACTIVE. A closed session
// refuses new executions; its execution history stays readable.
func (s *Store) CloseSession(ctx context.Context, id string) (domain.Session, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sessions SET status = 'INACTIVE'
		WHERE id = $1
		RETURNING `+sessionColumns,
		id,
	)
	session, err := scanSession(row)
	if err != nil {
		return domain.Session{}, err
	}
	return session, nil
}
