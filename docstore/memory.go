package docstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory is an in-memory Store. Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	parts map[string][]Item // partition id -> items sorted by SortID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{parts: make(map[string][]Item)}
}

func (m *Memory) Get(_ context.Context, key Key) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := m.parts[key.PartitionID]
	i := sort.Search(len(items), func(i int) bool {
		return items[i].Key.SortID >= key.SortID
	})
	if i < len(items) && items[i].Key.SortID == key.SortID {
		return copyItem(items[i]), nil
	}
	return Item{}, ErrNotFound
}

func (m *Memory) Query(_ context.Context, partitionID, sortPrefix string, page Page) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Item
	for _, it := range m.parts[partitionID] {
		if strings.HasPrefix(it.Key.SortID, sortPrefix) {
			matched = append(matched, it)
		}
	}
	return paginate(matched, page)
}

func (m *Memory) Scan(_ context.Context, sortPrefix string, page Page) (Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	partIDs := make([]string, 0, len(m.parts))
	for id := range m.parts {
		partIDs = append(partIDs, id)
	}
	sort.Strings(partIDs)

	var matched []Item
	for _, id := range partIDs {
		for _, it := range m.parts[id] {
			if strings.HasPrefix(it.Key.SortID, sortPrefix) {
				matched = append(matched, it)
			}
		}
	}
	return paginate(matched, page)
}

func (m *Memory) Put(_ context.Context, item Item, cond Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.putLocked(item, cond)
}

func (m *Memory) BatchWrite(_ context.Context, items []Item) error {
	if len(items) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range items {
		if err := m.putLocked(it, Unconditional); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) putLocked(item Item, cond Condition) error {
	items := m.parts[item.Key.PartitionID]
	i := sort.Search(len(items), func(i int) bool {
		return items[i].Key.SortID >= item.Key.SortID
	})
	if i < len(items) && items[i].Key.SortID == item.Key.SortID {
		if cond == IfNotExists {
			return ErrConditionFailed
		}
		items[i] = copyItem(item)
		return nil
	}

	items = append(items, Item{})
	copy(items[i+1:], items[i:])
	items[i] = copyItem(item)
	m.parts[item.Key.PartitionID] = items
	return nil
}

// paginate slices matched into one page. The continuation token is the
// offset into the matched set; fine for memory where the set is stable
// under the read lock.
func paginate(matched []Item, page Page) (Result, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}

	offset := 0
	if page.Token != "" {
		n, err := strconv.Atoi(page.Token)
		if err != nil || n < 0 {
			return Result{}, ErrBadToken
		}
		offset = n
	}
	if offset >= len(matched) {
		return Result{}, nil
	}

	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := Result{Items: make([]Item, end-offset)}
	for i, it := range matched[offset:end] {
		out.Items[i] = copyItem(it)
	}
	if end < len(matched) {
		out.NextToken = strconv.Itoa(end)
	}
	return out, nil
}

func copyItem(it Item) Item {
	doc := make(map[string]any, len(it.Doc))
	for k, v := range it.Doc {
		doc[k] = v
	}
	return Item{Key: it.Key, Doc: doc}
}
