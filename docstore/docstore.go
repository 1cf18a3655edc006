/*
Package docstore defines the persistence boundary for the forecast engine.

PURPOSE:
  Abstracts a partition-keyed document store. Every record (line items,
  payroll entries, allocations, project metadata) is a JSON document
  addressed by a (partition, sort) key pair. Different implementations can
  use SQLite or in-memory storage; the access patterns mirror a
  DynamoDB-style single-table design.

KEY CONCEPTS IN THIS FILE (docstore.go):
  - Key:       (PartitionID, SortID) address of a document
  - Item:      A key plus its JSON document body
  - Store:     Get/Query/Scan/Put/BatchWrite contract
  - Condition: Optional create-only guard for Put
  - Cursor:    Bounded pagination over Query/Scan

CREATE-ONCE CONTRACT:
  Mutation is append-only or create-once. Line items and payroll entries
  are never updated in place; a replaced baseline supersedes its line
  items rather than deleting them. The only guarded write is
  Put(..., IfNotExists), used for materialization markers.

BOUNDED PAGINATION:
  Reporting paths page through entire partitions. Cursor carries an
  explicit MaxPages budget so a misbehaving store cannot drive an
  unbounded loop; exhausting the budget returns what was read so far
  with Truncated=true instead of looping forever.

IMPLEMENTATIONS:
  - docstore/sqlite/sqlite.go: Production SQLite store
  - docstore/memory.go:        In-memory for testing

SEE ALSO:
  - rubro/materializer.go: Uses the conditional Put
  - rubro/query.go:        Uses Cursor for partition pagination
*/
package docstore

import (
	"context"
	"errors"
)

// =============================================================================
// KEYS AND ITEMS
// =============================================================================

// Key addresses a single document.
type Key struct {
	PartitionID string
	SortID      string
}

// Item is a document plus its key. Doc holds the decoded JSON body.
type Item struct {
	Key Key
	Doc map[string]any
}

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned by Get when no document exists at the key.
	ErrNotFound = errors.New("document not found")

	// ErrConditionFailed is returned by a conditional Put when the target
	// key already exists. Callers treat this as "someone else won the race".
	ErrConditionFailed = errors.New("conditional write failed: key exists")

	// ErrBatchTooLarge is returned when BatchWrite receives more than
	// MaxBatchSize items.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")

	// ErrBadToken is returned when a continuation token is not one this
	// store issued.
	ErrBadToken = errors.New("malformed continuation token")
)

// MaxBatchSize is the largest batch BatchWrite accepts.
const MaxBatchSize = 25

// =============================================================================
// STORE - Partition-keyed document persistence
// =============================================================================

// Condition guards a Put.
type Condition int

const (
	// Unconditional overwrites any existing document at the key.
	Unconditional Condition = iota

	// IfNotExists fails with ErrConditionFailed when the key exists.
	IfNotExists
)

// Page requests one page of a Query or Scan. A zero Page means
// "first page, default size".
type Page struct {
	Limit int
	Token string // opaque continuation token from a previous Result
}

// Result is one page of matching items. NextToken is empty on the last page.
type Result struct {
	Items     []Item
	NextToken string
}

// Store is the document persistence contract.
type Store interface {
	// Get returns the document at key, or ErrNotFound.
	Get(ctx context.Context, key Key) (Item, error)

	// Query returns items in one partition whose sort id starts with
	// sortPrefix, ordered by sort id ascending. An empty prefix matches
	// the whole partition.
	Query(ctx context.Context, partitionID, sortPrefix string, page Page) (Result, error)

	// Scan returns items across all partitions whose sort id starts with
	// sortPrefix, ordered by (partition id, sort id).
	Scan(ctx context.Context, sortPrefix string, page Page) (Result, error)

	// Put writes a single document. With IfNotExists it returns
	// ErrConditionFailed instead of overwriting.
	Put(ctx context.Context, item Item, cond Condition) error

	// BatchWrite writes up to MaxBatchSize documents. Not atomic: a failure
	// may leave earlier items written.
	BatchWrite(ctx context.Context, items []Item) error
}

// =============================================================================
// CURSOR - Bounded pagination
// =============================================================================

// DefaultMaxPages bounds partition pagination. 50 pages at the default
// page size covers any realistic project partition.
const DefaultMaxPages = 50

// DefaultPageSize is used when Page.Limit is zero.
const DefaultPageSize = 100

// Cursor drains a Query or Scan under an explicit page budget.
type Cursor struct {
	MaxPages int // 0 means DefaultMaxPages
	PageSize int // 0 means DefaultPageSize
}

// Paged is the outcome of draining a cursor. Truncated reports that the
// page budget ran out before the store did; Items holds everything read
// up to that point.
type Paged struct {
	Items     []Item
	Pages     int
	Truncated bool
}

func (c Cursor) budget() (pages, size int) {
	pages = c.MaxPages
	if pages <= 0 {
		pages = DefaultMaxPages
	}
	size = c.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	return pages, size
}

// QueryAll drains Query(partitionID, sortPrefix) under the page budget.
func (c Cursor) QueryAll(ctx context.Context, s Store, partitionID, sortPrefix string) (Paged, error) {
	maxPages, size := c.budget()
	return drain(maxPages, func(token string) (Result, error) {
		return s.Query(ctx, partitionID, sortPrefix, Page{Limit: size, Token: token})
	})
}

// ScanAll drains Scan(sortPrefix) under the page budget.
func (c Cursor) ScanAll(ctx context.Context, s Store, sortPrefix string) (Paged, error) {
	maxPages, size := c.budget()
	return drain(maxPages, func(token string) (Result, error) {
		return s.Scan(ctx, sortPrefix, Page{Limit: size, Token: token})
	})
}

func drain(maxPages int, next func(token string) (Result, error)) (Paged, error) {
	var out Paged
	token := ""
	for out.Pages < maxPages {
		res, err := next(token)
		if err != nil {
			return out, err
		}
		out.Pages++
		out.Items = append(out.Items, res.Items...)
		if res.NextToken == "" {
			return out, nil
		}
		token = res.NextToken
	}
	out.Truncated = true
	return out, nil
}
