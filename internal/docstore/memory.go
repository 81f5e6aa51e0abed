package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used in tests and local runs. It honours
// the filter operators the pipeline actually uses ($or, $in, $gte, $gt,
// $lte, $lt, $ne), $set/$inc updates, and a bounded subset of the
// aggregation language ($match, $group with $sum/$avg, $sort, $limit).
type Memory struct {
	mu          sync.Mutex
	collections map[string][]M
	nextID      int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string][]M)}
}

// Seed inserts typed documents into a collection, assigning ids to any
// document without one.
func (m *Memory) Seed(collection string, docs any) error {
	return m.InsertMany(context.Background(), collection, docs)
}

// Find filters, sorts and slices the collection.
func (m *Memory) Find(_ context.Context, collection string, q Query) ([]json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []M
	for _, doc := range m.collections[collection] {
		if matchFilter(doc, q.Filter) {
			matched = append(matched, doc)
		}
	}
	applySort(matched, q.Sort)

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Skip:]
		}
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return marshalDocs(matched)
}

// FindOne returns the first matching document, or nil.
func (m *Memory) FindOne(_ context.Context, collection string, filter M) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.collections[collection] {
		if matchFilter(doc, filter) {
			return json.Marshal(doc)
		}
	}
	return nil, nil
}

// Count returns the number of matching documents.
func (m *Memory) Count(_ context.Context, collection string, filter M) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, doc := range m.collections[collection] {
		if matchFilter(doc, filter) {
			n++
		}
	}
	return n, nil
}

// InsertMany appends documents, assigning sequential ids when missing.
func (m *Memory) InsertMany(_ context.Context, collection string, docs any) error {
	encoded, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode documents: %w", err)
	}
	var parsed []M
	if err := json.Unmarshal(encoded, &parsed); err != nil {
		return fmt.Errorf("failed to parse documents: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range parsed {
		if id, ok := doc["id"].(string); !ok || id == "" {
			m.nextID++
			doc["id"] = fmt.Sprintf("%s-%d", collection, m.nextID)
		}
		m.collections[collection] = append(m.collections[collection], doc)
	}
	return nil
}

// UpdateOne applies $set and $inc to the first match.
func (m *Memory) UpdateOne(_ context.Context, collection string, filter, update M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range m.collections[collection] {
		if !matchFilter(doc, filter) {
			continue
		}
		if set, ok := toM(update["$set"]); ok {
			for k, v := range set {
				doc[k] = v
			}
		}
		if inc, ok := toM(update["$inc"]); ok {
			applyInc(doc, inc)
		}
		return nil
	}
	return nil
}

func applyInc(doc M, inc map[string]any) {
	for k, v := range inc {
		doc[k] = toFloat(doc[k]) + toFloat(v)
	}
}

// Aggregate interprets the bounded pipeline subset the components emit.
func (m *Memory) Aggregate(_ context.Context, collection string, pipeline []M) ([]json.RawMessage, error) {
	m.mu.Lock()
	docs := append([]M(nil), m.collections[collection]...)
	m.mu.Unlock()

	for _, stage := range pipeline {
		for op, spec := range stage {
			switch op {
			case "$match":
				filter, _ := toM(spec)
				var kept []M
				for _, doc := range docs {
					if matchFilter(doc, filter) {
						kept = append(kept, doc)
					}
				}
				docs = kept
			case "$group":
				spec, ok := toM(spec)
				if !ok {
					return nil, fmt.Errorf("unsupported $group spec")
				}
				docs = groupDocs(docs, spec)
			case "$sort":
				spec, ok := toM(spec)
				if !ok {
					return nil, fmt.Errorf("unsupported $sort spec")
				}
				var keys Sort
				for k, v := range spec {
					keys = append(keys, SortKey{Key: k, Dir: int(toFloat(v))})
				}
				applySort(docs, keys)
			case "$limit":
				n := int(toFloat(spec))
				if n >= 0 && len(docs) > n {
					docs = docs[:n]
				}
			default:
				return nil, fmt.Errorf("unsupported aggregation stage %s", op)
			}
		}
	}
	return marshalDocs(docs)
}

// --- filter evaluation ---------------------------------------------------

func matchFilter(doc M, filter M) bool {
	for key, cond := range filter {
		if key == "$or" {
			if !matchOr(doc, cond) {
				return false
			}
			continue
		}
		value := doc[key]
		if ops, ok := toM(cond); ok && hasOperator(ops) {
			if !matchOps(value, ops) {
				return false
			}
			continue
		}
		if !looseEqual(value, cond) {
			return false
		}
	}
	return true
}

func matchOr(doc M, cond any) bool {
	branches, ok := cond.([]any)
	if !ok {
		if ms, ok2 := cond.([]M); ok2 {
			for _, b := range ms {
				if matchFilter(doc, b) {
					return true
				}
			}
			return false
		}
		return false
	}
	for _, b := range branches {
		if branch, ok := toM(b); ok && matchFilter(doc, branch) {
			return true
		}
	}
	return false
}

func matchOps(value any, ops M) bool {
	for op, arg := range ops {
		switch op {
		case "$in":
			if !inList(value, arg) {
				return false
			}
		// Range operators never match an absent field; formatting nil
		// would otherwise sort "<nil>" after ISO timestamps.
		case "$gte":
			if value == nil || compareValues(value, arg) < 0 {
				return false
			}
		case "$gt":
			if value == nil || compareValues(value, arg) <= 0 {
				return false
			}
		case "$lte":
			if value == nil || compareValues(value, arg) > 0 {
				return false
			}
		case "$lt":
			if value == nil || compareValues(value, arg) >= 0 {
				return false
			}
		case "$ne":
			if looseEqual(value, arg) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func hasOperator(m M) bool {
	for k := range m {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func inList(value, arg any) bool {
	items, ok := arg.([]any)
	if !ok {
		if ss, ok2 := arg.([]string); ok2 {
			for _, s := range ss {
				if looseEqual(value, s) {
					return true
				}
			}
			return false
		}
		return false
	}
	for _, item := range items {
		if looseEqual(value, item) {
			return true
		}
	}
	return false
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	fa, aok := asFloat(a)
	fb, bok := asFloat(b)
	if aok && bok {
		return fa == fb
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareValues orders numbers numerically and everything else
// lexically, which matches the ISO timestamp strings used in filters.
func compareValues(a, b any) int {
	fa, aok := asFloat(a)
	fb, bok := asFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func toFloat(v any) float64 {
	f, _ := asFloat(v)
	return f
}

// toM asserts a filter or stage value to the wire map shape. M is an
// alias of map[string]any, so a single assertion covers values built as
// literals and values decoded from JSON.
func toM(v any) (M, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// --- grouping ------------------------------------------------------------

func groupDocs(docs []M, spec M) []M {
	groups := make(map[string][]M)
	var order []string

	keyFor := func(doc M) string {
		id := spec["_id"]
		if id == nil {
			return ""
		}
		if ref, ok := id.(string); ok && strings.HasPrefix(ref, "$") {
			return fmt.Sprintf("%v", doc[ref[1:]])
		}
		return fmt.Sprintf("%v", id)
	}

	for _, doc := range docs {
		key := keyFor(doc)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], doc)
	}

	var out []M
	for _, key := range order {
		members := groups[key]
		row := M{"_id": groupID(key, spec)}
		for field, acc := range spec {
			if field == "_id" {
				continue
			}
			accSpec, ok := toM(acc)
			if !ok {
				continue
			}
			for op, arg := range accSpec {
				switch op {
				case "$sum":
					row[field] = accumulate(members, arg, false)
				case "$avg":
					if len(members) > 0 {
						row[field] = accumulate(members, arg, false) / float64(len(members))
					} else {
						row[field] = 0.0
					}
				}
			}
		}
		out = append(out, row)
	}
	return out
}

func groupID(key string, spec M) any {
	if spec["_id"] == nil {
		return nil
	}
	return key
}

func accumulate(members []M, arg any, _ bool) float64 {
	// $sum: 1 counts; $sum: "$field" totals the field
	if ref, ok := arg.(string); ok && strings.HasPrefix(ref, "$") {
		total := 0.0
		for _, doc := range members {
			total += toFloat(doc[ref[1:]])
		}
		return total
	}
	per := toFloat(arg)
	return per * float64(len(members))
}

// --- ordering ------------------------------------------------------------

func applySort(docs []M, keys Sort) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			cmp := compareValues(docs[i][k.Key], docs[j][k.Key])
			if cmp == 0 {
				continue
			}
			if k.Dir < 0 {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func marshalDocs(docs []M) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(docs))
	for _, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}
