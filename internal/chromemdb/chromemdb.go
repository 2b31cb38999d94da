package chromemdb

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"ecoroute/internal/helper"
	"ecoroute/internal/models"
)

// VectorDBManager encapsulates the chromem-go database operations
type VectorDBManager struct {
	db            *chromem.DB
	collection    *chromem.Collection
	dbPath        string
	compress      bool
	encryptionKey string
	filePath      string
	embed         chromem.EmbeddingFunc
}

const (
	compress = false
)

// NewVectorDBManager opens a persistent database under dbPath, or an
// in-memory one when dbPath is empty, and binds the named collection to
// embed for both documents and queries.
func NewVectorDBManager(dbPath, collectionName string, embed chromem.EmbeddingFunc, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	m := &VectorDBManager{
		db:            db,
		dbPath:        dbPath,
		compress:      compress,
		encryptionKey: encryptionKey,
		filePath:      filepath.Join(dbPath, collectionName+".chromem"),
		embed:         embed,
	}
	if _, err := m.GetOrCreateCollection(collectionName, embed); err != nil {
		return nil, err
	}
	return m, nil
}

// create or read collection
func (m *VectorDBManager) GetOrCreateCollection(collectionName string, embed chromem.EmbeddingFunc) (*chromem.Collection, error) {
	c, err := m.db.GetOrCreateCollection(collectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %v", err)
	}
	m.collection = c
	return c, nil
}

// Count is the number of documents in the collection.
func (m *VectorDBManager) Count() int {
	return m.collection.Count()
}

// Add embeds and stores chunks. Chunk IDs double as document IDs, so adding
// the same chunk twice overwrites it.
func (m *VectorDBManager) Add(ctx context.Context, chunks []models.Chunk) error {
	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		docs = append(docs, chromem.Document{
			ID:      c.ID,
			Content: c.Content,
			Metadata: map[string]string{
				"source": c.Source,
				"index":  strconv.Itoa(c.Index),
			},
		})
	}
	if len(docs) == 0 {
		return nil
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	log.Debug().Int("documents", len(docs)).Int("total", m.Count()).Msg("Added documents to vector database")
	return nil
}

// Search returns up to k chunks most similar to query, best first.
func (m *VectorDBManager) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	results, err := m.SearchWithQueryOptions(ctx, chromem.QueryOptions{QueryText: query, NResults: k})
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, 0, len(results))
	for _, r := range results {
		idx, _ := strconv.Atoi(r.Metadata["index"])
		chunks = append(chunks, models.Chunk{
			ID:      r.ID,
			Source:  r.Metadata["source"],
			Index:   idx,
			Content: r.Content,
		})
	}
	return chunks, nil
}

// SearchWithQueryOptions performs a similarity search. NResults is clamped
// to the collection size.
func (m *VectorDBManager) SearchWithQueryOptions(ctx context.Context, opts chromem.QueryOptions) ([]chromem.Result, error) {
	// exit if query or embedding is not provided
	if opts.QueryText == "" && opts.QueryEmbedding == nil {
		return nil, fmt.Errorf("either query or embedding must be provided")
	}
	count := m.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if opts.NResults <= 0 || opts.NResults > count {
		opts.NResults = count
	}

	results, err := m.collection.QueryWithOptions(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}
	return results, nil
}

// Reset drops every document by recreating the collection.
func (m *VectorDBManager) Reset() error {
	name := m.collection.Name
	if err := m.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("failed to drop collection: %v", err)
	}
	_, err := m.GetOrCreateCollection(name, m.embed)
	return err
}

// Export writes the collection to an encrypted file next to the database.
func (m *VectorDBManager) Export() (string, error) {
	if m.encryptionKey == "" {
		return "", fmt.Errorf("encryption key is required")
	}
	if m.dbPath == "" {
		return "", fmt.Errorf("db path is required")
	}

	log.Debug().Str("collection", m.collection.Name).Str("file", m.filePath).Bool("compress", m.compress).Msg("Exporting collection")
	if err := m.db.ExportToFile(m.filePath, m.compress, m.encryptionKey, m.collection.Name); err != nil {
		return "", fmt.Errorf("failed to export database: %v", err)
	}
	return m.filePath, nil
}
