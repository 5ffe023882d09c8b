package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL applied by Migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
    id              TEXT PRIMARY KEY,
    title           TEXT NOT NULL,
    source          TEXT NOT NULL DEFAULT '',
    url             TEXT NOT NULL,
    publish_date    TEXT NOT NULL DEFAULT '',
    processed_date  TEXT NOT NULL,
    download_link   TEXT NOT NULL DEFAULT '',
    authors         TEXT[] NOT NULL DEFAULT '{}',
    text_content    TEXT NOT NULL DEFAULT '',
    hashtags        TEXT[] NOT NULL DEFAULT '{}',
    voice_name      TEXT NOT NULL DEFAULT '',
    audio_length    DOUBLE PRECISION,
    transcript_link TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_articles_url ON articles(url);
CREATE INDEX IF NOT EXISTS idx_articles_processed ON articles(processed_date DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_articles_hashtags ON articles USING GIN (hashtags);

CREATE TABLE IF NOT EXISTS listens (
    id          BIGSERIAL PRIMARY KEY,
    article_id  TEXT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
    listened_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_listens_article ON listens(article_id);
`

// DB is satisfied by *pgxpool.Pool and *pgx.Conn.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// PostgresStore is a Store backed by PostgreSQL.
type PostgresStore struct {
	db    DB
	close func()
	now   func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps db. Call Migrate before the first query.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// OpenPostgres connects a pool to dsn, pings it and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("metadata: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("metadata: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("metadata: ping: %w", err)
	}
	s := NewPostgresStore(pool)
	s.close = pool.Close
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool opened by OpenPostgres.
func (s *PostgresStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("metadata: migrate: %w", err)
	}
	return nil
}

const columns = `id, title, source, url, publish_date, processed_date, download_link,
	authors, text_content, hashtags, voice_name, audio_length, transcript_link, created_at`

func scanArticle(row pgx.Row) (*Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Source, &a.URL, &a.PublishDate, &a.ProcessedDate, &a.DownloadLink,
		&a.Authors, &a.TextContent, &a.Hashtags, &a.VoiceName, &a.AudioLength, &a.TranscriptLink, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) Save(ctx context.Context, a *Article) (string, error) {
	prepare(a, s.now())
	const query = `
		INSERT INTO articles (` + columns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	_, err := s.db.Exec(ctx, query,
		a.ID, a.Title, a.Source, a.URL, a.PublishDate, a.ProcessedDate, a.DownloadLink,
		a.Authors, a.TextContent, a.Hashtags, a.VoiceName, a.AudioLength, a.TranscriptLink, a.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("metadata: save: %w", err)
	}
	return a.ID, nil
}

func (s *PostgresStore) FindByURL(ctx context.Context, url string) (*Article, error) {
	query := `SELECT ` + columns + ` FROM articles WHERE url = $1 ORDER BY created_at DESC LIMIT 1`
	a, err := scanArticle(s.db.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: find %q: %w", url, err)
	}
	return a, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Article, error) {
	query := `SELECT ` + columns + ` FROM articles WHERE id = $1`
	a, err := scanArticle(s.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: get %q: %w", id, err)
	}
	return a, nil
}

func (s *PostgresStore) Update(ctx context.Context, id string, p Patch) error {
	var hashtags []string
	if p.Hashtags != nil {
		hashtags = NormalizeHashtags(p.Hashtags)
	}
	const query = `
		UPDATE articles SET
			title = COALESCE($2, title),
			download_link = COALESCE($3, download_link),
			transcript_link = COALESCE($4, transcript_link),
			voice_name = COALESCE($5, voice_name),
			hashtags = COALESCE($6, hashtags),
			audio_length = COALESCE($7, audio_length)
		WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id, p.Title, p.DownloadLink, p.TranscriptLink, p.VoiceName, hashtags, p.AudioLength)
	if err != nil {
		return fmt.Errorf("metadata: update %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Article, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata: list: %w", err)
	}
	defer rows.Close()
	out := []Article{}
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("metadata: scan: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata: list: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		return s.list(ctx, `SELECT `+columns+` FROM articles ORDER BY processed_date DESC, created_at DESC`)
	}
	return s.list(ctx, `SELECT `+columns+` FROM articles ORDER BY processed_date DESC, created_at DESC LIMIT $1`, limit)
}

func (s *PostgresStore) ListByHashtag(ctx context.Context, tag string) ([]Article, error) {
	norm := NormalizeHashtags([]string{tag})
	if len(norm) == 0 {
		return []Article{}, nil
	}
	return s.list(ctx, `SELECT `+columns+` FROM articles WHERE $1 = ANY(hashtags) ORDER BY processed_date DESC, created_at DESC`, norm[0])
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("metadata: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LogListen(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO listens (article_id, listened_at) SELECT id, $2 FROM articles WHERE id = $1`, id, s.now())
	if err != nil {
		return fmt.Errorf("metadata: log listen %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListenCount(ctx context.Context, id string) (int, error) {
	var exists bool
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM articles WHERE id = $1), (SELECT count(*) FROM listens WHERE article_id = $1)`, id,
	).Scan(&exists, &n)
	if err != nil {
		return 0, fmt.Errorf("metadata: listen count %q: %w", id, err)
	}
	if !exists {
		return 0, ErrNotFound
	}
	return n, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if p, ok := s.db.(pinger); ok {
		return p.Ping(ctx)
	}
	var one int
	return s.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}
