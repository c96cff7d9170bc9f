package users

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestPostgresRepository_Create(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WithArgs("id-1", "alice", []byte("s"), []byte("v"), "addr").
		WillReturnRows(sqlmock.NewRows([]string{"registered_at", "last_access"}).AddRow(now, now))

	user := &User{ID: "id-1", Username: "alice", Salt: []byte("s"), Verifier: []byte("v"), Address: "addr"}
	got, err := repo.Create(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, now, got.RegisteredAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_Create_UniqueViolation(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO users`)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := repo.Create(context.Background(), testUser("alice"))
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestPostgresRepository_GetByUsername(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)
	now := time.Now()

	cols := []string{"id", "username", "salt", "verifier", "address", "registered_at", "last_access"}
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username, salt, verifier, address, registered_at, last_access`)).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("id-1", "alice", []byte("s"), []byte("v"), "addr", now, now))

	got, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, []byte("v"), got.Verifier)
}

func TestPostgresRepository_GetByUsername_NotFound(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, username`)).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgresRepository_UpdateLastAccess(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET last_access`)).
		WithArgs("alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateLastAccess(context.Background(), "alice"))

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE users SET last_access`)).
		WithArgs("ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateLastAccess(context.Background(), "ghost"), common.ErrorNotFound)
}

func TestPostgresRepository_CountAndUsernames(t *testing.T) {
	db, mock := newSQLMockDB(t)
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM users`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT username FROM users ORDER BY username`)).
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("alice").AddRow("bob"))

	names, err := repo.Usernames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, names)
}
