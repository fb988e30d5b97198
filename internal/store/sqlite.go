package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/mindscroll/cardgen/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS books (
	content_id TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL DEFAULT '',
	category   TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS chunks (
	id            TEXT PRIMARY KEY,
	content_id    TEXT NOT NULL REFERENCES books(content_id),
	ordinal       INTEGER NOT NULL,
	chapter_label TEXT NOT NULL DEFAULT '',
	body          TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decks (
	content_id   TEXT PRIMARY KEY,
	cards        TEXT NOT NULL,
	chapters     TEXT,
	card_count   INTEGER NOT NULL,
	generated_at DATETIME NOT NULL,
	expires_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	content_id TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     TEXT,
	started_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_content ON chunks(content_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_runs_content ON runs(content_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_decks_expires_at ON decks(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) PutDocument(ctx context.Context, meta model.BookMeta, chunks []model.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin put document")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO books (content_id, title, author, category) VALUES (?, ?, ?, ?)
		 ON CONFLICT(content_id) DO UPDATE SET title=excluded.title, author=excluded.author, category=excluded.category`,
		meta.ContentID, meta.Title, meta.Author, meta.Category,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: upsert book")
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE content_id = ?`, meta.ContentID); err != nil {
		return eris.Wrap(err, "sqlite: clear chunks")
	}

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO chunks (id, content_id, ordinal, chapter_label, body) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.ContentID, c.Ordinal, c.ChapterLabel, c.Text,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert chunk %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit put document")
}

func (s *SQLiteStore) GetBookMeta(ctx context.Context, contentID string) (*model.BookMeta, error) {
	var m model.BookMeta
	err := s.db.QueryRowContext(ctx,
		`SELECT content_id, title, author, category FROM books WHERE content_id = ?`,
		contentID,
	).Scan(&m.ContentID, &m.Title, &m.Author, &m.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get book %s", contentID)
	}
	return &m, nil
}

func (s *SQLiteStore) GetChunks(ctx context.Context, contentID string) ([]model.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_id, ordinal, chapter_label, body FROM chunks WHERE content_id = ? ORDER BY ordinal`,
		contentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get chunks %s", contentID)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.ContentID, &c.Ordinal, &c.ChapterLabel, &c.Text); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan chunk")
		}
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "sqlite: iterate chunks")
}

func (s *SQLiteStore) GetDeck(ctx context.Context, contentID string) (*model.Deck, error) {
	var cardsJSON string
	var chaptersJSON sql.NullString
	var deck model.Deck

	err := s.db.QueryRowContext(ctx,
		`SELECT content_id, cards, chapters, card_count, generated_at FROM decks
		 WHERE content_id = ? AND expires_at > ?`,
		contentID, time.Now().UTC(),
	).Scan(&deck.ContentID, &cardsJSON, &chaptersJSON, &deck.CardCount, &deck.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get deck %s", contentID)
	}

	if err := json.Unmarshal([]byte(cardsJSON), &deck.Cards); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cards")
	}
	if chaptersJSON.Valid && chaptersJSON.String != "" {
		if err := json.Unmarshal([]byte(chaptersJSON.String), &deck.Chapters); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal chapters")
		}
	}
	return &deck, nil
}

func (s *SQLiteStore) PutDeck(ctx context.Context, deck *model.Deck, ttl time.Duration) error {
	cardsJSON, err := json.Marshal(deck.Cards)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cards")
	}
	chaptersJSON, err := json.Marshal(deck.Chapters)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal chapters")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO decks (content_id, cards, chapters, card_count, generated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(content_id) DO UPDATE SET
			cards=excluded.cards, chapters=excluded.chapters, card_count=excluded.card_count,
			generated_at=excluded.generated_at, expires_at=excluded.expires_at`,
		deck.ContentID, string(cardsJSON), string(chaptersJSON), len(deck.Cards), now, now.Add(ttl),
	)
	return eris.Wrapf(err, "sqlite: put deck %s", deck.ContentID)
}

func (s *SQLiteStore) DeleteDeck(ctx context.Context, contentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM decks WHERE content_id = ?`, contentID)
	return eris.Wrapf(err, "sqlite: delete deck %s", contentID)
}

func (s *SQLiteStore) DeleteExpiredDecks(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM decks WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired decks")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, contentID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, content_id, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, contentID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		ContentID: contentID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: update run status %s", runID)
}

func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(status), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "sqlite: update run result %s", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var resultJSON sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, content_id, status, result, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.ContentID, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}

	if resultJSON.Valid && resultJSON.String != "" {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, content_id, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ContentID != "" {
		query += ` AND content_id = ?`
		args = append(args, filter.ContentID)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var resultJSON sql.NullString
		if err := rows.Scan(&r.ID, &r.ContentID, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if resultJSON.Valid && resultJSON.String != "" {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, model.PhaseStatusRunning, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase %s", name)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal phase result")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, result = ? WHERE id = ?`,
		result.Status, string(resultJSON), phaseID,
	)
	return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
}
