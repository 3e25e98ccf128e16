package todos

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	store, err := New(sqlx.NewDb(db, "postgres"))
	require.NoError(t, err)
	return store, mock
}

func TestNewRequiresDB(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, errspkg.ErrDatabaseRequired)
}

func TestAll(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "title", "is_complete"}).
		AddRow(1, "Give the talk", true).
		AddRow(2, "Push the slides", false)
	mock.ExpectQuery(regexp.QuoteMeta(selectAllSQL)).WillReturnRows(rows)

	got, err := store.All(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Todo{
		{ID: 1, Title: "Give the talk", IsComplete: true},
		{ID: 2, Title: "Push the slides", IsComplete: false},
	}, got)
}

func TestAllEmptyTable(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectAllSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_complete"}))

	got, err := store.All(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAllQueryError(t *testing.T) {
	store, mock := newMockStore(t)

	dbErr := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(selectAllSQL)).WillReturnError(dbErr)

	_, err := store.All(context.Background())
	assert.ErrorIs(t, err, dbErr)
}

func TestByID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectByIDSQL)).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_complete"}).AddRow(1, "Give the talk", true))

	got, err := store.ByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Todo{ID: 1, Title: "Give the talk", IsComplete: true}, got)
}

func TestByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(selectByIDSQL)).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "is_complete"}))

	_, err := store.ByID(context.Background(), 42)
	assert.ErrorIs(t, err, errspkg.ErrTodoNotFound)
}

func TestEnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS todos")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestPing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectPing()
	assert.NoError(t, store.Ping(context.Background()))
}
