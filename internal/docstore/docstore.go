// Package docstore is the adapter for the primary document store. All
// operations are routed through a thin RPC proxy speaking a JSON action
// protocol, so the adapter is a narrow HTTP client rather than a
// database driver.
//
// Documents cross the boundary as json.RawMessage; callers project them
// into typed records immediately with Decode. Untyped maps never travel
// deeper than this package.
package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Collection names in the primary store.
const (
	Articles     = "articles"
	Sources      = "rss_sources"
	Keywords     = "keywords"
	Categories   = "categories"
	KeywordLinks = "article_keyword_links"
)

// M is a filter, update or projection document in the store's wire
// format. It exists only at this boundary.
type M = map[string]any

// SortKey orders a query by one field. Dir is 1 ascending, -1 descending.
type SortKey struct {
	Key string
	Dir int
}

// Sort is an ordered list of sort keys. It marshals to the wire-format
// sort object with key order preserved.
type Sort []SortKey

// MarshalJSON writes the sort keys as an object in declaration order.
func (s Sort) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range s {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(k.Key)
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, []byte(fmt.Sprintf("%d", k.Dir))...)
	}
	return append(buf, '}'), nil
}

// Query bundles the optional knobs of a find.
type Query struct {
	Filter     M
	Projection M
	Sort       Sort
	Limit      int
	Skip       int
}

// Store is the capability interface over the primary document store.
type Store interface {
	Find(ctx context.Context, collection string, q Query) ([]json.RawMessage, error)
	FindOne(ctx context.Context, collection string, filter M) (json.RawMessage, error)
	Count(ctx context.Context, collection string, filter M) (int, error)
	Aggregate(ctx context.Context, collection string, pipeline []M) ([]json.RawMessage, error)
	InsertMany(ctx context.Context, collection string, docs any) error
	UpdateOne(ctx context.Context, collection string, filter, update M) error
}

// Decode projects raw documents into typed records, normalising the
// store's `_id` field to `id` first.
func Decode[T any](docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, raw := range docs {
		v, err := DecodeOne[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// DecodeOne projects a single raw document into a typed record.
func DecodeOne[T any](raw json.RawMessage) (T, error) {
	var zero T
	if len(raw) == 0 {
		return zero, fmt.Errorf("empty document")
	}
	normalised, err := normaliseID(raw)
	if err != nil {
		return zero, err
	}
	var v T
	if err := json.Unmarshal(normalised, &v); err != nil {
		return zero, fmt.Errorf("failed to decode document: %w", err)
	}
	return v, nil
}

func normaliseID(raw json.RawMessage) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if id, ok := doc["_id"]; ok {
		if _, has := doc["id"]; !has {
			doc["id"] = fmt.Sprintf("%v", id)
		}
		delete(doc, "_id")
	}
	return json.Marshal(doc)
}

// FieldValues extracts one string field from raw documents, skipping
// documents where it is absent or empty. Used for bulk dedup lookups.
func FieldValues(docs []json.RawMessage, field string) []string {
	values := make([]string, 0, len(docs))
	for _, raw := range docs {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			continue
		}
		if s, ok := doc[field].(string); ok && s != "" {
			values = append(values, s)
		}
	}
	sort.Strings(values)
	return values
}
