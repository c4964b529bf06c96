// Package pgstore keeps documents in PostgreSQL. Each document row carries
// an integer version that is bumped on every write; every write is also
// recorded in document_revisions together with its commit message.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/codekeeper/internal/common"
	"github.com/dmitrijs2005/codekeeper/internal/dbx"
	"github.com/dmitrijs2005/codekeeper/internal/docstore"
	"github.com/dmitrijs2005/codekeeper/internal/docstore/pgstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type Store struct {
	db *sql.DB
}

var _ docstore.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver and brings the schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return New(db), nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// gooseUpContext is replaced in tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, ".")
}

func (s *Store) Get(ctx context.Context, loc docstore.Location) (*docstore.Object, error) {
	query := `SELECT content, version FROM documents WHERE repo = $1 AND path = $2`

	var (
		content []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx, query, loc.Repo, loc.Path).Scan(&content, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	return &docstore.Object{Data: content, Version: strconv.FormatInt(version, 10)}, nil
}

func (s *Store) Put(ctx context.Context, loc docstore.Location, data []byte, version, message string) (string, error) {
	var next int64

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if version == "" {
			next, err = insert(ctx, tx, loc, data)
		} else {
			next, err = update(ctx, tx, loc, data, version)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO document_revisions (repo, path, version, content, message)
			 VALUES ($1, $2, $3, $4, $5)`,
			loc.Repo, loc.Path, next, data, message)
		if err != nil {
			return fmt.Errorf("error recording revision: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(next, 10), nil
}

func insert(ctx context.Context, tx dbx.DBTX, loc docstore.Location, data []byte) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO documents (repo, path, content, version, updated_at)
		 VALUES ($1, $2, $3, 1, now())
		 ON CONFLICT (repo, path) DO NOTHING`,
		loc.Repo, loc.Path, data)
	if err != nil {
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%s already exists: %w", loc, common.ErrVersionConflict)
	}
	return 1, nil
}

func update(ctx context.Context, tx dbx.DBTX, loc docstore.Location, data []byte, version string) (int64, error) {
	current, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: foreign version %q: %w", loc, version, common.ErrVersionConflict)
	}

	var next int64
	err = tx.QueryRowContext(ctx,
		`UPDATE documents SET content = $3, version = version + 1, updated_at = now()
		 WHERE repo = $1 AND path = $2 AND version = $4
		 RETURNING version`,
		loc.Repo, loc.Path, data, current).Scan(&next)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s changed since version %d: %w", loc, current, common.ErrVersionConflict)
		}
		return 0, fmt.Errorf("error performing sql request: %w", err)
	}
	return next, nil
}
