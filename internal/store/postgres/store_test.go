package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteiq/siteiq/internal/insight"
)

type fixedIDGen struct{ id string }

func (g fixedIDGen) NewID() (string, error) { return g.id, nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Unix(1700000000, 0).UTC()

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, fixedIDGen{id: "conv-new"}, fixedClock{now: testNow})
	require.NoError(t, err)
	return store, mock
}

func turnJSON(t *testing.T, turn insight.Turn) []byte {
	t.Helper()
	data, err := json.Marshal([]insight.Turn{turn})
	require.NoError(t, err)
	return data
}

func TestAppendCreatesConversation(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	turn := insight.Turn{Prompt: "p", Recommendation: "r", CreatedAt: testNow}
	mock.ExpectExec("INSERT INTO conversations").
		WithArgs("conv-new", "user-1", "site.example", turnJSON(t, turn), testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := store.Append(context.Background(), "user-1", "", "site.example", turn)
	require.NoError(t, err)
	assert.Equal(t, "conv-new", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendExistingConversation(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	turn := insight.Turn{Prompt: "p", Recommendation: "r", CreatedAt: testNow}
	mock.ExpectQuery("SELECT owner_id FROM conversations").
		WithArgs("conv-1").
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("user-1"))
	mock.ExpectExec("UPDATE conversations").
		WithArgs(turnJSON(t, turn), testNow, "conv-1", "user-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	id, err := store.Append(context.Background(), "user-1", "conv-1", "", turn)
	require.NoError(t, err)
	assert.Equal(t, "conv-1", id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendOwnerMismatch(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT owner_id FROM conversations").
		WithArgs("conv-1").
		WillReturnRows(pgxmock.NewRows([]string{"owner_id"}).AddRow("someone-else"))

	_, err := store.Append(context.Background(), "user-1", "conv-1", "", insight.Turn{})
	assert.ErrorIs(t, err, insight.ErrForbidden)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendUnknownConversation(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT owner_id FROM conversations").
		WithArgs("conv-missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Append(context.Background(), "user-1", "conv-missing", "", insight.Turn{})
	assert.ErrorIs(t, err, insight.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListScansSummaries(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, title, last_updated").
		WithArgs("user-1", 2, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "title", "last_updated"}).
			AddRow("conv-b", "Newest", testNow).
			AddRow("conv-a", "Older", testNow.Add(-time.Hour)))

	out, err := store.List(context.Background(), "user-1", 0, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "conv-b", out[0].ID)
	assert.Equal(t, "Older", out[1].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDecodesTurns(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	turns := []insight.Turn{
		{Prompt: "p1", Recommendation: "r1", CreatedAt: testNow},
		{Prompt: "p2", Recommendation: "r2", CreatedAt: testNow},
	}
	turnsJSON, err := json.Marshal(turns)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT id, owner_id, title, turns, last_updated").
		WithArgs("conv-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "owner_id", "title", "turns", "last_updated"}).
			AddRow("conv-1", "user-1", "t", turnsJSON, testNow))

	conv, err := store.Get(context.Background(), "user-1", "conv-1")
	require.NoError(t, err)
	assert.Equal(t, turns, conv.Turns)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, owner_id, title, turns, last_updated").
		WithArgs("conv-1", "user-2").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "user-2", "conv-1")
	assert.ErrorIs(t, err, insight.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotFoundOnZeroRows(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM conversations").
		WithArgs("conv-1", "user-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := store.Delete(context.Background(), "user-2", "conv-1")
	assert.ErrorIs(t, err, insight.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM conversations").
		WithArgs("conv-1", "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Delete(context.Background(), "user-1", "conv-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
