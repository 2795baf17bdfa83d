package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteChunkStore persists chunks and their embeddings in a single SQLite
// database. It is the durable source of truth: both the lexical corpus and
// the HNSW graph can be rebuilt from it.
type SQLiteChunkStore struct {
	db   *sql.DB
	path string
}

var _ ChunkStore = (*SQLiteChunkStore)(nil)

// NewSQLiteChunkStore opens (or creates) the database at path and applies
// the schema. Pass ":memory:" for an ephemeral store in tests.
func NewSQLiteChunkStore(path string) (*SQLiteChunkStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open chunk database: %w", err)
	}

	// modernc/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent ingest and query.
	db.SetMaxOpenConns(1)

	s := &SQLiteChunkStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteChunkStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	content     TEXT NOT NULL,
	source_file TEXT NOT NULL,
	page        INTEGER NOT NULL DEFAULT 0,
	chunk_type  TEXT NOT NULL DEFAULT 'text',
	element_id  TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL,
	embedding   BLOB
);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_file);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SaveChunks upserts chunks together with their embeddings in one
// transaction. embeddings may be nil when only metadata changes, otherwise
// it must be parallel to chunks.
func (s *SQLiteChunkStore) SaveChunks(ctx context.Context, chunks []*Chunk, embeddings [][]float32) error {
	if len(chunks) == 0 {
		return nil
	}
	if embeddings != nil && len(embeddings) != len(chunks) {
		return fmt.Errorf("chunks and embeddings length mismatch: %d vs %d", len(chunks), len(embeddings))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, content, source_file, page, chunk_type, element_id, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			source_file = excluded.source_file,
			page = excluded.page,
			chunk_type = excluded.chunk_type,
			element_id = excluded.element_id,
			created_at = excluded.created_at,
			embedding = COALESCE(excluded.embedding, chunks.embedding)`)
	if err != nil {
		return fmt.Errorf("prepare save: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		var blob []byte
		if embeddings != nil {
			blob = encodeVector(embeddings[i])
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Content, c.SourceFile, c.Page,
			string(c.ChunkType), c.ElementID, createdAt.Unix(), blob); err != nil {
			return fmt.Errorf("save chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// GetChunks loads chunks by id. Ids with no row are silently absent from the
// result, preserving the order of the ids that were found.
func (s *SQLiteChunkStore) GetChunks(ctx context.Context, ids []string) ([]*Chunk, error) {
	if len(ids) == 0 {
		return []*Chunk{}, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, content, source_file, page, chunk_type, element_id, created_at
		FROM chunks WHERE id IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}

	out := make([]*Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// IDsBySource lists the chunk ids belonging to a source file.
func (s *SQLiteChunkStore) IDsBySource(ctx context.Context, sourceFile string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE source_file = ? ORDER BY rowid`, sourceFile)
	if err != nil {
		return nil, fmt.Errorf("list ids for source %s: %w", sourceFile, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Snapshot returns every chunk as a lexical document, in insertion order.
// The lexical index rebuilds from this snapshot.
func (s *SQLiteChunkStore) Snapshot(ctx context.Context) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, content FROM chunks ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("snapshot chunks: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		d := &Document{}
		if err := rows.Scan(&d.ID, &d.Content); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// AllEmbeddings loads every stored embedding, used to rebuild the HNSW
// graph when its on-disk snapshot is missing or stale.
func (s *SQLiteChunkStore) AllEmbeddings(ctx context.Context) (map[string][]float32, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, embedding FROM chunks WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("load embeddings: %w", err)
	}
	defer rows.Close()

	embeddings := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode embedding for %s: %w", id, err)
		}
		embeddings[id] = vec
	}
	return embeddings, rows.Err()
}

// DeleteChunks removes chunks by id.
func (s *SQLiteChunkStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM chunks WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("delete chunk %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored chunks.
func (s *SQLiteChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// ListSources returns the distinct source files with their chunk counts.
func (s *SQLiteChunkStore) ListSources(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_file, COUNT(*) FROM chunks GROUP BY source_file`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := make(map[string]int)
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources[src] = n
	}
	return sources, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteChunkStore) Close() error {
	return s.db.Close()
}

func scanChunk(rows *sql.Rows) (*Chunk, error) {
	var c Chunk
	var chunkType string
	var createdAt int64
	if err := rows.Scan(&c.ID, &c.Content, &c.SourceFile, &c.Page,
		&chunkType, &c.ElementID, &createdAt); err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}
	c.ChunkType = ChunkType(chunkType)
	c.CreatedAt = time.Unix(createdAt, 0)
	return &c, nil
}

// encodeVector packs a float32 slice as little-endian bytes.
func encodeVector(v []float32) []byte {
	if v == nil {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
