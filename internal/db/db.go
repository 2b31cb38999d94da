package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"ecoroute/internal/config"
	"ecoroute/internal/embedding"
	"ecoroute/internal/models"
)

// Vector is a pgvector column value, written in its text form "[1,2,3]".
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	if v == nil {
		return nil, nil
	}
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String(), nil
}

func (v *Vector) Scan(src any) error {
	var s string
	switch t := src.(type) {
	case nil:
		*v = nil
		return nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return fmt.Errorf("cannot scan %T into vector", src)
	}

	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return fmt.Errorf("malformed vector %q", s)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		*v = Vector{}
		return nil
	}
	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return fmt.Errorf("malformed vector element %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	*v = out
	return nil
}

type Document struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            int64  `bun:"id,pk,autoincrement"`
	ChunkID       string `bun:"chunk_id,notnull,unique"`
	Source        string `bun:"source,notnull"`
	ChunkIndex    int    `bun:"chunk_index,notnull"`
	Content       string `bun:"content,notnull"`
	Embedding     Vector `bun:"embedding,type:vector"`
}

// NewDB wraps sqldb in bun, logging every query when debug is set.
func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the database with the configured driver: the bun pgdriver
// or lib/pq ("postgres").
func ConnectDB(dbConfig *config.DatabaseConfig) (*sql.DB, error) {
	if dbConfig.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch dbConfig.Driver {
	case "postgres":
		return sql.Open("postgres", dbConfig.DSN)
	case "", "pgdriver":
		opts := []pgdriver.Option{pgdriver.WithDSN(dbConfig.DSN)}
		if dbConfig.Password != "" {
			opts = append(opts, pgdriver.WithPassword(dbConfig.Password))
		}
		return sql.OpenDB(pgdriver.NewConnector(opts...)), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", dbConfig.Driver)
	}
}

// Store keeps chunk embeddings in a pgvector table and ranks them by cosine distance.
type Store struct {
	db       *bun.DB
	embedder embeddings.Embedder
	table    string
}

func NewStore(db *bun.DB, embedder embeddings.Embedder, table string) *Store {
	if table == "" {
		table = "documents"
	}
	return &Store{db: db, embedder: embedder, table: table}
}

// Init creates the vector extension and the documents table if missing.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := s.db.NewCreateTable().
		Model((*Document)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfNotExists().
		Exec(ctx)
	return err
}

// Drop removes the documents table.
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.db.NewDropTable().
		Model((*Document)(nil)).
		ModelTableExpr("?", bun.Ident(s.table)).
		IfExists().
		Exec(ctx)
	return err
}

// Add embeds chunks in one batch and upserts them by chunk id.
func (s *Store) Add(ctx context.Context, chunks []models.Chunk) error {
	chunkEmbeddings, err := embedding.GenerateEmbedding(ctx, s.embedder, chunks)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(chunkEmbeddings) == 0 {
		return nil
	}

	docs := make([]Document, len(chunkEmbeddings))
	for i, ce := range chunkEmbeddings {
		docs[i] = Document{
			ChunkID:    ce.ID,
			Source:     ce.Source,
			ChunkIndex: ce.Index,
			Content:    ce.Content,
			Embedding:  Vector(ce.Embedding),
		}
	}
	if _, err := s.insertQuery(&docs).Exec(ctx); err != nil {
		return fmt.Errorf("store documents: %w", err)
	}
	log.Debug().Int("documents", len(docs)).Str("table", s.table).Msg("Stored documents")
	return nil
}

func (s *Store) insertQuery(docs *[]Document) *bun.InsertQuery {
	return s.db.NewInsert().
		Model(docs).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		On("CONFLICT (chunk_id) DO UPDATE").
		Set("source = EXCLUDED.source").
		Set("chunk_index = EXCLUDED.chunk_index").
		Set("content = EXCLUDED.content").
		Set("embedding = EXCLUDED.embedding")
}

// Search returns the k chunks closest to query.
func (s *Store) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var docs []Document
	if err := s.searchQuery(&docs, vec, k).Scan(ctx); err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	chunks := make([]models.Chunk, len(docs))
	for i, d := range docs {
		chunks[i] = models.Chunk{ID: d.ChunkID, Source: d.Source, Index: d.ChunkIndex, Content: d.Content}
	}
	return chunks, nil
}

func (s *Store) searchQuery(docs *[]Document, vec []float32, k int) *bun.SelectQuery {
	return s.db.NewSelect().
		Model(docs).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		Column("chunk_id", "source", "chunk_index", "content").
		OrderExpr("embedding <=> ?", Vector(vec)).
		Limit(k)
}

// Count is the number of stored documents, or 0 when the table cannot be read.
func (s *Store) Count() int {
	n, err := s.db.NewSelect().
		Model((*Document)(nil)).
		ModelTableExpr("? AS d", bun.Ident(s.table)).
		Count(context.Background())
	if err != nil {
		log.Warn().Err(err).Str("table", s.table).Msg("Counting documents failed")
		return 0
	}
	return n
}

func (s *Store) Close() error {
	return s.db.Close()
}
