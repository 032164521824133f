package trace

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// retainTurns bounds the turns table; older rows and their spans are pruned on insert.
const retainTurns = 1000

// ErrTurnNotFound is returned by GetTurn for an unknown id.
var ErrTurnNotFound = errors.New("turn not found")

// Store persists turns and spans to PostgreSQL through the pgx stdlib driver.
type Store struct {
	db *sql.DB
}

// Open connects to connStr and applies pending migrations.
func Open(ctx context.Context, connStr string) (*Store, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = applyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// applyMigrations runs every embedded file past the recorded version, each in
// its own transaction alongside its version row.
func applyMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}
	var applied int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), -1) FROM schema_version`).Scan(&applied); err != nil {
		return err
	}

	names, err := fs.Glob(migrationFS, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for version := applied + 1; version < len(names); version++ {
		body, err := migrationFS.ReadFile(names[version])
		if err != nil {
			return fmt.Errorf("read %s: %w", names[version], err)
		}
		if err = inTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, string(body)); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES ($1)`, version)
			return err
		}); err != nil {
			return fmt.Errorf("apply %s: %w", names[version], err)
		}
	}
	return nil
}

func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateTurn inserts t and prunes turns beyond the retention window.
func (s *Store) CreateTurn(ctx context.Context, t Turn) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (id, session_id, mode, message, started_at) VALUES ($1, $2, $3, $4, $5)`,
			t.ID, t.SessionID, t.Mode, t.Message, t.StartedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM turns WHERE started_at < (
				SELECT started_at FROM turns ORDER BY started_at DESC OFFSET $1 LIMIT 1
			)`, retainTurns-1,
		); err != nil {
			return fmt.Errorf("prune turns: %w", err)
		}
		return nil
	})
}

// UpdateTurn records the outcome fields of a finished turn.
func (s *Store) UpdateTurn(ctx context.Context, t Turn) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE turns SET duration_ms = $1, response = $2, outcome = $3, part_count = $4, video_generating = $5
		 WHERE id = $6`,
		t.DurationMs, t.Response, t.Outcome, t.PartCount, t.VideoGenerating, t.ID,
	)
	if err != nil {
		return fmt.Errorf("update turn: %w", err)
	}
	return nil
}

// CreateSpan inserts a stage span.
func (s *Store) CreateSpan(ctx context.Context, sp Span) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spans (id, turn_id, name, started_at, duration_ms, input, output, status, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sp.ID, sp.TurnID, sp.Name, sp.StartedAt.UTC(), sp.DurationMs, sp.Input, sp.Output, sp.Status, sp.Error,
	)
	if err != nil {
		return fmt.Errorf("insert span: %w", err)
	}
	return nil
}

const turnColumns = `t.id, t.session_id, t.mode, t.message, t.started_at, t.duration_ms,
	t.response, t.outcome, t.part_count, t.video_generating`

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(row scanner, extra ...any) (Turn, error) {
	var t Turn
	dest := append([]any{&t.ID, &t.SessionID, &t.Mode, &t.Message, &t.StartedAt, &t.DurationMs,
		&t.Response, &t.Outcome, &t.PartCount, &t.VideoGenerating}, extra...)
	err := row.Scan(dest...)
	return t, err
}

// ListTurns pages through turns newest first with their span counts. An empty
// sessionID lists turns from every session.
func (s *Store) ListTurns(ctx context.Context, sessionID string, limit, offset int) ([]Turn, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM turns WHERE $1 = '' OR session_id = $1`, sessionID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count turns: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+turnColumns+`, COUNT(sp.id)
		FROM turns t
		LEFT JOIN spans sp ON sp.turn_id = t.id
		WHERE $1 = '' OR t.session_id = $1
		GROUP BY t.id
		ORDER BY t.started_at DESC
		LIMIT $2 OFFSET $3`, sessionID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var spans int
		t, err := scanTurn(rows, &spans)
		if err != nil {
			return nil, 0, fmt.Errorf("scan turn: %w", err)
		}
		t.SpanCount = spans
		turns = append(turns, t)
	}
	return turns, total, rows.Err()
}

// GetTurn returns one turn and its spans in start order.
func (s *Store) GetTurn(ctx context.Context, id string) (*Turn, []Span, error) {
	t, err := scanTurn(s.db.QueryRowContext(ctx, `SELECT `+turnColumns+` FROM turns t WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, ErrTurnNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get turn: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, turn_id, name, started_at, duration_ms, input, output, status, error_msg
		 FROM spans WHERE turn_id = $1 ORDER BY started_at`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list spans: %w", err)
	}
	defer rows.Close()

	spans := []Span{}
	for rows.Next() {
		var sp Span
		if err = rows.Scan(&sp.ID, &sp.TurnID, &sp.Name, &sp.StartedAt, &sp.DurationMs,
			&sp.Input, &sp.Output, &sp.Status, &sp.Error); err != nil {
			return nil, nil, fmt.Errorf("scan span: %w", err)
		}
		spans = append(spans, sp)
	}
	t.SpanCount = len(spans)
	return &t, spans, rows.Err()
}
