package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindscroll/cardgen/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgres_PutDocument(t *testing.T) {
	st, mock := newMockPostgres(t)
	meta, chunks := sampleDocument()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO books").
		WithArgs(meta.ContentID, meta.Title, meta.Author, meta.Category).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("DELETE FROM chunks").
		WithArgs(meta.ContentID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	for _, c := range chunks {
		mock.ExpectExec("INSERT INTO chunks").
			WithArgs(c.ID, c.ContentID, c.Ordinal, c.ChapterLabel, c.Text).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	err := st.PutDocument(context.Background(), meta, chunks)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetBookMeta(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT content_id, title, author, category FROM books").
		WithArgs("book-1").
		WillReturnRows(pgxmock.NewRows([]string{"content_id", "title", "author", "category"}).
			AddRow("book-1", "The Psychology of Money", "Morgan Housel", "finance"))

	meta, err := st.GetBookMeta(context.Background(), "book-1")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Morgan Housel", meta.Author)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetBookMeta_Absent(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT content_id, title, author, category FROM books").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	meta, err := st.GetBookMeta(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestPostgres_GetChunks(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT id, content_id, ordinal, chapter_label, body FROM chunks").
		WithArgs("book-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "content_id", "ordinal", "chapter_label", "body"}).
			AddRow("book-1-0", "book-1", 0, "ch1", "First chunk.").
			AddRow("book-1-1", "book-1", 1, "", "Second chunk."))

	chunks, err := st.GetChunks(context.Background(), "book-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "book-1-0", chunks[0].ID)
	assert.Equal(t, "First chunk.", chunks[0].Text)
	assert.Empty(t, chunks[1].ChapterLabel)
}

func TestPostgres_GetDeck(t *testing.T) {
	st, mock := newMockPostgres(t)
	deck := sampleDeck()
	cardsJSON, err := json.Marshal(deck.Cards)
	require.NoError(t, err)
	chaptersJSON, err := json.Marshal(deck.Chapters)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT content_id, cards, chapters, card_count, generated_at FROM decks").
		WithArgs("book-1").
		WillReturnRows(pgxmock.NewRows([]string{"content_id", "cards", "chapters", "card_count", "generated_at"}).
			AddRow("book-1", cardsJSON, chaptersJSON, 2, deck.GeneratedAt))

	got, err := st.GetDeck(context.Background(), "book-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.CardCount)
	require.Len(t, got.Cards, 2)
	assert.Equal(t, model.CardTypeQuiz, got.Cards[1].Type)
	require.Len(t, got.Chapters, 1)
	assert.Equal(t, "ch1", got.Chapters[0].Label)
}

func TestPostgres_GetDeck_Absent(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT content_id, cards, chapters, card_count, generated_at FROM decks").
		WithArgs("book-1").
		WillReturnError(pgx.ErrNoRows)

	got, err := st.GetDeck(context.Background(), "book-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgres_PutDeck(t *testing.T) {
	st, mock := newMockPostgres(t)
	deck := sampleDeck()

	mock.ExpectExec("INSERT INTO decks").
		WithArgs(deck.ContentID, pgxmock.AnyArg(), pgxmock.AnyArg(), 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := st.PutDeck(context.Background(), deck, time.Hour)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DeleteExpiredDecks(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("DELETE FROM decks WHERE expires_at").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	n, err := st.DeleteExpiredDecks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestPostgres_CreateRun(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(pgxmock.AnyArg(), "book-1", string(model.RunStatusQueued), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.CreateRun(context.Background(), "book-1")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunResult(t *testing.T) {
	st, mock := newMockPostgres(t)
	result := &model.RunResult{CardCount: 10, TotalCost: 0.05}
	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE runs SET result").
		WithArgs(resultJSON, string(model.RunStatusCached), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = st.UpdateRunResult(context.Background(), "run-1", model.RunStatusCached, result)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newMockPostgres(t)
	now := time.Now().UTC()
	resultJSON, err := json.Marshal(&model.RunResult{CardCount: 7, CacheHit: true})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, content_id, status, result, created_at, updated_at FROM runs").
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "content_id", "status", "result", "created_at", "updated_at"}).
			AddRow("run-1", "book-1", string(model.RunStatusCached), resultJSON, now, now))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCached, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 7, run.Result.CardCount)
	assert.True(t, run.Result.CacheHit)
}

func TestPostgres_ListRuns_Filters(t *testing.T) {
	st, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT id, content_id, status, result, created_at, updated_at FROM runs").
		WithArgs(string(model.RunStatusFailed), "book-1", 5).
		WillReturnRows(pgxmock.NewRows([]string{"id", "content_id", "status", "result", "created_at", "updated_at"}).
			AddRow("run-1", "book-1", string(model.RunStatusFailed), []byte(nil), now, now))

	runs, err := st.ListRuns(context.Background(), RunFilter{
		Status:    model.RunStatusFailed,
		ContentID: "book-1",
		Limit:     5,
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusFailed, runs[0].Status)
	assert.Nil(t, runs[0].Result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_PhaseLifecycle(t *testing.T) {
	st, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO run_phases").
		WithArgs(pgxmock.AnyArg(), "run-1", "flashcards", model.PhaseStatusRunning, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	phase, err := st.CreatePhase(context.Background(), "run-1", "flashcards")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseStatusRunning, phase.Status)

	result := &model.PhaseResult{Name: "flashcards", Status: model.PhaseStatusComplete, Duration: 250}
	resultJSON, err := json.Marshal(result)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE run_phases SET status").
		WithArgs(model.PhaseStatusComplete, resultJSON, phase.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.CompletePhase(context.Background(), phase.ID, result))
	assert.NoError(t, mock.ExpectationsWereMet())
}
