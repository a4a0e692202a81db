package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore persists conversation turns and ingested data chunks. The
// default data source is an in-memory database, so nothing survives a process
// restart; a file path may be configured instead to keep an ingested corpus
// across runs.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps an in-memory database from being duplicated
	// per pooled connection and serializes writes.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS turns (
        id TEXT PRIMARY KEY, -- UUID
        session_id TEXT NOT NULL,
        speaker TEXT NOT NULL CHECK (speaker IN ('user', 'assistant')),
        content TEXT NOT NULL,
        status TEXT NOT NULL DEFAULT 'final' CHECK (status IN ('pending', 'final', 'error')),
        timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS data_chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        document TEXT NOT NULL DEFAULT '',
        position INTEGER NOT NULL DEFAULT 0,
        content TEXT NOT NULL,
        embedding_json TEXT -- Storing as JSON string of []float32
    );
    `
	_, err := s.db.Exec(schema)
	return err
}

// Turn methods

func (s *SQLiteStore) CreateTurn(turn *Turn) error {
	turn.ID = uuid.NewString() // Ensure ID is set
	turn.Timestamp = time.Now()
	if turn.Status == "" {
		turn.Status = StatusFinal
	}

	stmt, err := s.db.Prepare("INSERT INTO turns (id, session_id, speaker, content, status, timestamp) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.Exec(turn.ID, turn.SessionID, turn.Speaker, turn.Content, turn.Status, turn.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to execute turn insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateTurn(turnID, content, status string) error {
	stmt, err := s.db.Prepare("UPDATE turns SET content = ?, status = ? WHERE id = ?")
	if err != nil {
		return fmt.Errorf("failed to prepare turn update: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(content, status, turnID)
	if err != nil {
		return fmt.Errorf("failed to execute turn update: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("turn not found, not updated")
	}
	return nil
}

// GetTurnsBySessionID returns every turn of a session in insertion order,
// regardless of status.
func (s *SQLiteStore) GetTurnsBySessionID(sessionID string) ([]Turn, error) {
	rows, err := s.db.Query("SELECT id, session_id, speaker, content, status, timestamp FROM turns WHERE session_id = ? ORDER BY rowid ASC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

// GetFinalTurnsBySessionID returns only the turns eligible for prompt
// rendering: completed turns, excluding pending and errored ones.
func (s *SQLiteStore) GetFinalTurnsBySessionID(sessionID string) ([]Turn, error) {
	rows, err := s.db.Query("SELECT id, session_id, speaker, content, status, timestamp FROM turns WHERE session_id = ? AND status = ? ORDER BY rowid ASC", sessionID, StatusFinal)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]Turn, error) {
	var turns []Turn
	for rows.Next() {
		var turn Turn
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Speaker, &turn.Content, &turn.Status, &turn.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// DataChunk methods (for RAG)

func (s *SQLiteStore) CreateDataChunk(chunk *DataChunk) error {
	embeddingBytes, err := json.Marshal(chunk.Embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	chunk.EmbeddingJSON = string(embeddingBytes)

	stmt, err := s.db.Prepare("INSERT INTO data_chunks (document, position, content, embedding_json) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare data_chunk insert: %w", err)
	}
	defer stmt.Close()

	res, err := stmt.Exec(chunk.Document, chunk.Position, chunk.Content, chunk.EmbeddingJSON)
	if err != nil {
		return fmt.Errorf("failed to execute data_chunk insert: %w", err)
	}
	chunk.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetAllDataChunks() ([]DataChunk, error) {
	rows, err := s.db.Query("SELECT id, document, position, content, embedding_json FROM data_chunks ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query data chunks: %w", err)
	}
	defer rows.Close()

	var chunks []DataChunk
	for rows.Next() {
		var chunk DataChunk
		var embeddingJSON sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.Document, &chunk.Position, &chunk.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan data chunk row: %w", err)
		}
		if embeddingJSON.Valid && embeddingJSON.String != "" {
			chunk.EmbeddingJSON = embeddingJSON.String
			if err := json.Unmarshal([]byte(embeddingJSON.String), &chunk.Embedding); err != nil {
				return nil, fmt.Errorf("failed to unmarshal embedding for chunk %d: %w", chunk.ID, err)
			}
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

func (s *SQLiteStore) CountDataChunks() (int, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM data_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count data chunks: %w", err)
	}
	return count, nil
}
