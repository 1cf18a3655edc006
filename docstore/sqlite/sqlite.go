/*
Package sqlite provides a SQLite-backed implementation of docstore.Store.

PURPOSE:
  Persists the engine's documents in a single table keyed by
  (partition_id, sort_id), each row carrying the JSON document body.
  The same single-table layout maps directly onto a DynamoDB-style
  store in other deployments; only the dialect differs.

SCHEMA:
  documents:
    partition_id TEXT   e.g. "PROJECT#p-123"
    sort_id      TEXT   e.g. "RUBRO#MOD-LEAD#bl-1#0"
    doc_json     TEXT   the document body
    created_at   TEXT   RFC3339 write time

CONDITIONAL WRITES:
  Put with docstore.IfNotExists maps to INSERT ... ON CONFLICT DO NOTHING
  and checks rows-affected; zero rows means the key already existed and
  the caller gets docstore.ErrConditionFailed. This is what makes the
  materialization marker an at-most-once guard.

WAL MODE:
  Opened with WAL so reporting reads don't block ingestion writes.

USAGE:
  store, err := sqlite.New("./data/finz.db")   // or ":memory:"
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - docstore/docstore.go: Interface and pagination contract
  - docstore/memory.go:   In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/finz/forecast-engine/docstore"
)

// Store implements docstore.Store using SQLite.
type Store struct {
	db *sql.DB
}

// New creates a SQLite store at dbPath. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		partition_id TEXT NOT NULL,
		sort_id      TEXT NOT NULL,
		doc_json     TEXT NOT NULL,
		created_at   TEXT NOT NULL,
		PRIMARY KEY (partition_id, sort_id)
	);

	-- Sort-prefix queries within one partition (hot path)
	CREATE INDEX IF NOT EXISTS idx_documents_partition_sort
		ON documents(partition_id, sort_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Get(ctx context.Context, key docstore.Key) (docstore.Item, error) {
	var docJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc_json FROM documents WHERE partition_id = ? AND sort_id = ?`,
		key.PartitionID, key.SortID,
	).Scan(&docJSON)
	if err == sql.ErrNoRows {
		return docstore.Item{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Item{}, fmt.Errorf("get %s/%s: %w", key.PartitionID, key.SortID, err)
	}

	doc, err := decodeDoc(docJSON)
	if err != nil {
		return docstore.Item{}, err
	}
	return docstore.Item{Key: key, Doc: doc}, nil
}

func (s *Store) Query(ctx context.Context, partitionID, sortPrefix string, page docstore.Page) (docstore.Result, error) {
	limit, offset, err := pageBounds(page)
	if err != nil {
		return docstore.Result{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT partition_id, sort_id, doc_json FROM documents
		 WHERE partition_id = ? AND sort_id LIKE ? ESCAPE '\'
		 ORDER BY sort_id
		 LIMIT ? OFFSET ?`,
		partitionID, likePrefix(sortPrefix), limit+1, offset,
	)
	if err != nil {
		return docstore.Result{}, fmt.Errorf("query %s: %w", partitionID, err)
	}
	defer rows.Close()

	return collect(rows, limit, offset)
}

func (s *Store) Scan(ctx context.Context, sortPrefix string, page docstore.Page) (docstore.Result, error) {
	limit, offset, err := pageBounds(page)
	if err != nil {
		return docstore.Result{}, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT partition_id, sort_id, doc_json FROM documents
		 WHERE sort_id LIKE ? ESCAPE '\'
		 ORDER BY partition_id, sort_id
		 LIMIT ? OFFSET ?`,
		likePrefix(sortPrefix), limit+1, offset,
	)
	if err != nil {
		return docstore.Result{}, fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	return collect(rows, limit, offset)
}

func (s *Store) Put(ctx context.Context, item docstore.Item, cond docstore.Condition) error {
	docJSON, err := json.Marshal(item.Doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)

	if cond == docstore.IfNotExists {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO documents (partition_id, sort_id, doc_json, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (partition_id, sort_id) DO NOTHING`,
			item.Key.PartitionID, item.Key.SortID, string(docJSON), now,
		)
		if err != nil {
			return fmt.Errorf("conditional put: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return docstore.ErrConditionFailed
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (partition_id, sort_id, doc_json, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (partition_id, sort_id) DO UPDATE SET doc_json = excluded.doc_json`,
		item.Key.PartitionID, item.Key.SortID, string(docJSON), now,
	)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

func (s *Store) BatchWrite(ctx context.Context, items []docstore.Item) error {
	if len(items) > docstore.MaxBatchSize {
		return docstore.ErrBatchTooLarge
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, it := range items {
		docJSON, err := json.Marshal(it.Doc)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO documents (partition_id, sort_id, doc_json, created_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (partition_id, sort_id) DO UPDATE SET doc_json = excluded.doc_json`,
			it.Key.PartitionID, it.Key.SortID, string(docJSON), now,
		)
		if err != nil {
			return fmt.Errorf("batch put %s: %w", it.Key.SortID, err)
		}
	}
	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func pageBounds(page docstore.Page) (limit, offset int, err error) {
	limit = page.Limit
	if limit <= 0 {
		limit = docstore.DefaultPageSize
	}
	if page.Token != "" {
		offset, err = strconv.Atoi(page.Token)
		if err != nil || offset < 0 {
			return 0, 0, docstore.ErrBadToken
		}
	}
	return limit, offset, nil
}

// likePrefix escapes LIKE metacharacters so a sort-id prefix match cannot
// be widened by % or _ in the prefix itself.
func likePrefix(prefix string) string {
	out := make([]byte, 0, len(prefix)+2)
	for i := 0; i < len(prefix); i++ {
		c := prefix[i]
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(append(out, '%'))
}

func collect(rows *sql.Rows, limit, offset int) (docstore.Result, error) {
	var out docstore.Result
	for rows.Next() {
		var pk, sk, docJSON string
		if err := rows.Scan(&pk, &sk, &docJSON); err != nil {
			return docstore.Result{}, err
		}
		doc, err := decodeDoc(docJSON)
		if err != nil {
			return docstore.Result{}, err
		}
		out.Items = append(out.Items, docstore.Item{
			Key: docstore.Key{PartitionID: pk, SortID: sk},
			Doc: doc,
		})
	}
	if err := rows.Err(); err != nil {
		return docstore.Result{}, err
	}

	// We fetched limit+1 rows to detect a next page without COUNT(*).
	if len(out.Items) > limit {
		out.Items = out.Items[:limit]
		out.NextToken = strconv.Itoa(offset + limit)
	}
	return out, nil
}

func decodeDoc(docJSON string) (map[string]any, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
