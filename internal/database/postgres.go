package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
)

const memoryDSN = "memory://"

type PgChatRepository struct {
	conn *sql.DB
}

func NewPgChatRepository(dsn string) (*PgChatRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	return &PgChatRepository{conn: db}, nil
}

// Open returns an in-memory repository for the memory:// DSN and a Postgres
// repository otherwise.
func Open(dsn string) (ChatRepository, error) {
	if strings.HasPrefix(dsn, memoryDSN) {
		return NewMemoryChatRepository(), nil
	}

	repo, err := NewPgChatRepository(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	return repo, nil
}

func (db *PgChatRepository) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *PgChatRepository) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
