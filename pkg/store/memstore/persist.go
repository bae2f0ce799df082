package memstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/james702283/ai-kitchen-health-suite/pkg/store"
)

// persist write-through persists documents to SQLite so a dev store survives
// restarts.
type persist struct {
	db *sql.DB
}

func openPersist(dbPath string) (*persist, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open document database: %w", err)
	}

	p := &persist{db: db}
	if err := p.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize document schema: %w", err)
	}
	return p, nil
}

func (p *persist) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		path TEXT NOT NULL,
		id TEXT NOT NULL,
		fields_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (path, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(path);
	`
	_, err := p.db.Exec(schema)
	return err
}

func (p *persist) load() (map[string]map[string]store.Document, error) {
	rows, err := p.db.Query(`SELECT path, id, fields_json, created_at FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]map[string]store.Document)
	for rows.Next() {
		var (
			path, id, fieldsJSON string
			createdAt            int64
		)
		if err := rows.Scan(&path, &id, &fieldsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("decode document %s: %w", id, err)
		}
		if docs[path] == nil {
			docs[path] = make(map[string]store.Document)
		}
		docs[path][id] = store.Document{
			ID:        id,
			Fields:    fields,
			CreatedAt: time.Unix(0, createdAt).UTC(),
		}
	}
	return docs, rows.Err()
}

func (p *persist) insert(path string, doc store.Document) error {
	fieldsJSON, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("encode document fields: %w", err)
	}
	_, err = p.db.Exec(
		`INSERT INTO documents (path, id, fields_json, created_at) VALUES (?, ?, ?, ?)`,
		path, doc.ID, string(fieldsJSON), doc.CreatedAt.UnixNano(),
	)
	return err
}

func (p *persist) remove(path, id string) error {
	_, err := p.db.Exec(`DELETE FROM documents WHERE path = ? AND id = ?`, path, id)
	return err
}

func (p *persist) close() error {
	return p.db.Close()
}
