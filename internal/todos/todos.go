// Package todos reads todo items from PostgreSQL.
package todos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	errspkg "github.com/Depechie/2024-portotechhub-aspireotel/internal/runtime/errors"
)

// Todo is one row of the todos table.
type Todo struct {
	ID         int    `db:"id" json:"id"`
	Title      string `db:"title" json:"title"`
	IsComplete bool   `db:"is_complete" json:"isComplete"`
}

const (
	schemaSQL = `CREATE TABLE IF NOT EXISTS todos (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	is_complete BOOLEAN NOT NULL DEFAULT FALSE
)`
	selectAllSQL  = `SELECT id, title, is_complete FROM todos ORDER BY id`
	selectByIDSQL = `SELECT id, title, is_complete FROM todos WHERE id = $1`
)

// Store queries the todos table.
type Store struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// New wraps db. The caller owns db and closes it.
func New(db *sqlx.DB) (*Store, error) {
	if db == nil {
		return nil, errspkg.ErrDatabaseRequired
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the todos table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure todos schema: %w", err)
	}
	return nil
}

// All returns every todo ordered by id. An empty table yields an empty slice.
func (s *Store) All(ctx context.Context) ([]Todo, error) {
	todos := []Todo{}
	if err := s.db.SelectContext(ctx, &todos, selectAllSQL); err != nil {
		return nil, fmt.Errorf("select todos: %w", err)
	}
	return todos, nil
}

// ByID returns the todo with id, or ErrTodoNotFound.
func (s *Store) ByID(ctx context.Context, id int) (Todo, error) {
	var todo Todo
	err := s.db.GetContext(ctx, &todo, selectByIDSQL, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Todo{}, fmt.Errorf("%w: id %d", errspkg.ErrTodoNotFound, id)
	}
	if err != nil {
		return Todo{}, fmt.Errorf("select todo %d: %w", id, err)
	}
	return todo, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
