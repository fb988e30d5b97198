package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/mindscroll/cardgen/internal/model"
)

// Pool abstracts the pgx pool operations used by PostgresStore so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
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
	cards        JSONB NOT NULL,
	chapters     JSONB,
	card_count   INTEGER NOT NULL,
	generated_at TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	content_id TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'queued',
	result     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	result     JSONB,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_chunks_content ON chunks(content_id, ordinal);
CREATE INDEX IF NOT EXISTS idx_runs_content ON runs(content_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_decks_expires_at ON decks(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) PutDocument(ctx context.Context, meta model.BookMeta, chunks []model.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin put document")
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO books (content_id, title, author, category) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (content_id) DO UPDATE SET title=EXCLUDED.title, author=EXCLUDED.author, category=EXCLUDED.category`,
		meta.ContentID, meta.Title, meta.Author, meta.Category,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: upsert book")
	}

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE content_id = $1`, meta.ContentID); err != nil {
		return eris.Wrap(err, "postgres: clear chunks")
	}

	for _, c := range chunks {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, content_id, ordinal, chapter_label, body) VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.ContentID, c.Ordinal, c.ChapterLabel, c.Text,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert chunk %s", c.ID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit put document")
}

func (s *PostgresStore) GetBookMeta(ctx context.Context, contentID string) (*model.BookMeta, error) {
	var m model.BookMeta
	err := s.pool.QueryRow(ctx,
		`SELECT content_id, title, author, category FROM books WHERE content_id = $1`,
		contentID,
	).Scan(&m.ContentID, &m.Title, &m.Author, &m.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get book %s", contentID)
	}
	return &m, nil
}

func (s *PostgresStore) GetChunks(ctx context.Context, contentID string) ([]model.Chunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, content_id, ordinal, chapter_label, body FROM chunks WHERE content_id = $1 ORDER BY ordinal`,
		contentID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get chunks %s", contentID)
	}
	defer rows.Close()

	var chunks []model.Chunk
	for rows.Next() {
		var c model.Chunk
		if err := rows.Scan(&c.ID, &c.ContentID, &c.Ordinal, &c.ChapterLabel, &c.Text); err != nil {
			return nil, eris.Wrap(err, "postgres: scan chunk")
		}
		chunks = append(chunks, c)
	}
	return chunks, eris.Wrap(rows.Err(), "postgres: iterate chunks")
}

func (s *PostgresStore) GetDeck(ctx context.Context, contentID string) (*model.Deck, error) {
	var deck model.Deck
	var cardsJSON []byte
	var chaptersJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT content_id, cards, chapters, card_count, generated_at FROM decks
		 WHERE content_id = $1 AND expires_at > now()`,
		contentID,
	).Scan(&deck.ContentID, &cardsJSON, &chaptersJSON, &deck.CardCount, &deck.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get deck %s", contentID)
	}

	if err := json.Unmarshal(cardsJSON, &deck.Cards); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cards")
	}
	if len(chaptersJSON) > 0 {
		if err := json.Unmarshal(chaptersJSON, &deck.Chapters); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal chapters")
		}
	}
	return &deck, nil
}

func (s *PostgresStore) PutDeck(ctx context.Context, deck *model.Deck, ttl time.Duration) error {
	cardsJSON, err := json.Marshal(deck.Cards)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cards")
	}
	chaptersJSON, err := json.Marshal(deck.Chapters)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal chapters")
	}

	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO decks (content_id, cards, chapters, card_count, generated_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (content_id) DO UPDATE SET
			cards=EXCLUDED.cards, chapters=EXCLUDED.chapters, card_count=EXCLUDED.card_count,
			generated_at=EXCLUDED.generated_at, expires_at=EXCLUDED.expires_at`,
		deck.ContentID, cardsJSON, chaptersJSON, len(deck.Cards), now, now.Add(ttl),
	)
	return eris.Wrapf(err, "postgres: put deck %s", deck.ContentID)
}

func (s *PostgresStore) DeleteDeck(ctx context.Context, contentID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM decks WHERE content_id = $1`, contentID)
	return eris.Wrapf(err, "postgres: delete deck %s", contentID)
}

func (s *PostgresStore) DeleteExpiredDecks(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM decks WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired decks")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, contentID string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, content_id, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		id, contentID, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		ContentID: contentID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "postgres: update run status %s", runID)
}

func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal result")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE runs SET result = $1, status = $2, updated_at = $3 WHERE id = $4`,
		resultJSON, string(status), time.Now().UTC(), runID,
	)
	return eris.Wrapf(err, "postgres: update run result %s", runID)
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	var r model.Run
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, content_id, status, result, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.ContentID, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}

	if len(resultJSON) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(resultJSON, r.Result); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal result")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, content_id, status, result, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	argn := 0

	next := func() string {
		argn++
		return "$" + strconv.Itoa(argn)
	}

	if filter.Status != "" {
		query += ` AND status = ` + next()
		args = append(args, string(filter.Status))
	}
	if filter.ContentID != "" {
		query += ` AND content_id = ` + next()
		args = append(args, filter.ContentID)
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + next()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + next()
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var resultJSON []byte
		if err := rows.Scan(&r.ID, &r.ContentID, &r.Status, &resultJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(resultJSON) > 0 {
			r.Result = &model.RunResult{}
			if err := json.Unmarshal(resultJSON, r.Result); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal result")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, model.PhaseStatusRunning, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase %s", name)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal phase result")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE run_phases SET status = $1, result = $2 WHERE id = $3`,
		result.Status, resultJSON, phaseID,
	)
	return eris.Wrapf(err, "postgres: complete phase %s", phaseID)
}
