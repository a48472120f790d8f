package store

import (
	"context"
	"fmt"

	"github.com/codeexec/engine/internal/domain"
	"github.com/jackc/pgx/v5"
)

// SeedLanguages inserts the catalogue's seed rows, skipping any id
// that already exists. Called once by `codeexec migrate`; the
// languages table is otherwise never written at runtime.
func (s *Store) SeedLanguages(ctx context.Context, languages []domain.Language) error {
	for _, l := range languages {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO languages (id, name, runtime_key, version, file_name, compile_cmd, run_cmd,
			                       default_time_limit_ms, default_memory_limit_mb, template_code)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO NOTHING`,
			l.ID, l.Name, l.RuntimeKey, l.Version, l.FileName, nullableText(l.CompileCmd), l.RunCmd,
			l.DefaultTimeLimitMs, l.DefaultMemoryLimitMB, l.TemplateCode,
		)
		if err != nil {
			return fmt.Errorf("store: seed language %s: %w", l.ID, err)
		}
	}
	return nil
}

func nullableText(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func scanLanguage(row pgx.Row) (domain.Language, error) {
	var l domain.Language
	var compileCmd *string
	err := row.Scan(&l.ID, &l.Name, &l.RuntimeKey, &l.Version, &l.FileName, &compileCmd, &l.RunCmd,
		&l.DefaultTimeLimitMs, &l.DefaultMemoryLimitMB, &l.TemplateCode)
	if err != nil {
		return domain.Language{}, err
	}
	if compileCmd != nil {
		l.CompileCmd = *compileCmd
	}
	return l, nil
}

const languageColumns = `id, name, runtime_key, version, file_name, compile_cmd, run_cmd,
	default_time_limit_ms, default_memory_limit_mb, template_code`

// Languages returns every seeded language, ordered by id.
func (s *Store) Languages(ctx context.Context) ([]domain.Language, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+languageColumns+` FROM languages ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list languages: %w", err)
	}
	defer rows.Close()

	var out []domain.Language
	for rows.Next() {
		l, err := scanLanguage(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan language: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ErrNotFound is returned by single-row lookups that find nothing.
var ErrNotFound = pgx.ErrNoRows

// Language returns one language descriptor by id.
func (s *Store) Language(ctx context.Context, id string) (domain.Language, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+languageColumns+` FROM languages WHERE id = $1`, id)
	return scanLanguage(row)
}
