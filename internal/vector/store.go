package vector

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/AkhilKas/patient-comm-assistant/internal/storage/models"
	"github.com/AkhilKas/patient-comm-assistant/pkg/logger"
)

// Record is a chunk with its embedding and insertion sequence, as persisted.
type Record struct {
	Chunk  models.Chunk
	Vector []float32
	Seq    uint64
}

// Store persists index contents in SQLite so the index survives restarts.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL,
		section TEXT NOT NULL,
		ordinal INTEGER NOT NULL,
		seq INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_section ON chunks(section);
	`

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("Index store initialized", zap.String("path", dbPath))

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadAll() ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, doc_id, section, ordinal, seq, text, embedding FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var embedding []byte
		err := rows.Scan(
			&rec.Chunk.ID,
			&rec.Chunk.DocumentID,
			&rec.Chunk.Section,
			&rec.Chunk.Ordinal,
			&rec.Seq,
			&rec.Chunk.Text,
			&embedding,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal(embedding, &rec.Vector); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", rec.Chunk.ID, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return records, nil
}

// SaveRecords writes all records in one transaction so a failure leaves the
// persisted state unchanged.
func (s *Store) SaveRecords(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (id, doc_id, section, ordinal, seq, text, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_id = excluded.doc_id,
			section = excluded.section,
			ordinal = excluded.ordinal,
			text = excluded.text,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		embedding, err := json.Marshal(rec.Vector)
		if err != nil {
			return fmt.Errorf("failed to encode embedding for %s: %w", rec.Chunk.ID, err)
		}
		_, err = stmt.Exec(
			rec.Chunk.ID,
			rec.Chunk.DocumentID,
			rec.Chunk.Section,
			rec.Chunk.Ordinal,
			rec.Seq,
			rec.Chunk.Text,
			embedding,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", rec.Chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

func (s *Store) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM chunks`); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}
	return nil
}
