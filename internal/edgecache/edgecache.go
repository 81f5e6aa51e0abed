// Package edgecache is the read-optimised SQLite store that fronts the
// primary doc store for bandwidth-constrained reads. It holds a bounded
// projection of recent articles plus the keyword and category
// dictionaries, written by the synchroniser and treated as read-only
// everywhere else. Reads may trail the primary store by up to one sync
// interval.
package edgecache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"baobab/internal/core"
)

// Filter narrows article reads.
type Filter struct {
	Category string
	Source   string
	DateFrom string
	DateTo   string
}

// Cache is the capability interface over the edge store.
type Cache interface {
	UpsertArticle(ctx context.Context, a core.Article) error
	UpsertKeyword(ctx context.Context, k core.Keyword) error
	UpsertCategory(ctx context.Context, c core.Category) error
	SearchArticles(ctx context.Context, query string, f Filter, limit int) ([]core.Article, error)
	ArticlesByIDs(ctx context.Context, ids []string, f Filter) ([]core.Article, error)
	TopKeywords(ctx context.Context, limit int) ([]core.Keyword, error)
	Categories(ctx context.Context) ([]core.Category, error)
	Close() error
}

// DB implements Cache over SQLite.
type DB struct {
	db   *sqlx.DB
	path string
}

// New opens (or creates) the edge cache database under dataDir.
func New(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "edge_cache.db")
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cache := &DB{db: db, path: dbPath}
	if err := cache.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cache, nil
}

func (d *DB) initialize() error {
	articlesTable := `
	CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		title TEXT,
		slug TEXT,
		description TEXT,
		author TEXT,
		source TEXT,
		source_id TEXT,
		category_id TEXT,
		country_id TEXT,
		published_at TEXT,
		image_url TEXT,
		original_url TEXT,
		rss_guid TEXT,
		view_count INTEGER DEFAULT 0,
		like_count INTEGER DEFAULT 0,
		bookmark_count INTEGER DEFAULT 0,
		quality_score REAL DEFAULT 0
	);`

	keywordsTable := `
	CREATE TABLE IF NOT EXISTS keywords (
		id TEXT PRIMARY KEY,
		name TEXT,
		category_id TEXT,
		relevance_score REAL DEFAULT 0,
		usage_count INTEGER DEFAULT 0,
		enabled INTEGER DEFAULT 1
	);`

	categoriesTable := `
	CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		name TEXT,
		emoji TEXT,
		description TEXT,
		enabled INTEGER DEFAULT 1,
		color TEXT
	);`

	for _, table := range []string{articlesTable, keywordsTable, categoriesTable} {
		if _, err := d.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// UpsertArticle replaces the cached projection of an article.
func (d *DB) UpsertArticle(ctx context.Context, a core.Article) error {
	if a.ID == "" {
		return fmt.Errorf("article has no id")
	}
	description := a.Description
	if len(description) > 500 {
		description = description[:500]
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO articles (
			id, title, slug, description, author, source, source_id,
			category_id, country_id, published_at, image_url, original_url,
			rss_guid, view_count, like_count, bookmark_count, quality_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.Slug, description, a.Author, a.Source, a.SourceID,
		a.CategoryID, a.CountryID, a.PublishedAt, a.ImageURL, a.OriginalURL,
		a.RSSGuid, a.ViewCount, a.LikeCount, a.BookmarkCount, a.QualityScore,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert article %s: %w", a.ID, err)
	}
	return nil
}

// UpsertKeyword replaces a dictionary keyword.
func (d *DB) UpsertKeyword(ctx context.Context, k core.Keyword) error {
	if k.ID == "" {
		return fmt.Errorf("keyword has no id")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO keywords (id, name, category_id, relevance_score, usage_count, enabled)
		VALUES (?, ?, ?, ?, ?, ?)`,
		k.ID, k.Name, k.CategoryID, k.RelevanceScore, k.UsageCount, boolToInt(k.Enabled),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert keyword %s: %w", k.ID, err)
	}
	return nil
}

// UpsertCategory replaces a category.
func (d *DB) UpsertCategory(ctx context.Context, c core.Category) error {
	if c.ID == "" {
		return fmt.Errorf("category has no id")
	}
	_, err := d.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO categories (id, name, emoji, description, enabled, color)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Emoji, c.Description, boolToInt(c.Enabled), c.Color,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert category %s: %w", c.ID, err)
	}
	return nil
}

const articleColumns = `id, title, slug, COALESCE(description, '') AS description,
	COALESCE(author, '') AS author, source, COALESCE(source_id, '') AS source_id,
	COALESCE(category_id, '') AS category_id, COALESCE(country_id, '') AS country_id,
	COALESCE(published_at, '') AS published_at, COALESCE(image_url, '') AS image_url,
	COALESCE(original_url, '') AS original_url, COALESCE(rss_guid, '') AS rss_guid,
	view_count, like_count, bookmark_count, COALESCE(quality_score, 0) AS quality_score`

// SearchArticles is the lexical fallback: LIKE against title and
// description, newest first.
func (d *DB) SearchArticles(ctx context.Context, query string, f Filter, limit int) ([]core.Article, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := "SELECT " + articleColumns + " FROM articles WHERE (title LIKE ? OR description LIKE ?)"
	like := "%" + query + "%"
	args := []any{like, like}
	sql, args = applyFilter(sql, args, f)
	sql += " ORDER BY published_at DESC LIMIT ?"
	args = append(args, limit)

	var articles []core.Article
	if err := d.db.SelectContext(ctx, &articles, sql, args...); err != nil {
		return nil, fmt.Errorf("article search failed: %w", err)
	}
	return articles, nil
}

// ArticlesByIDs returns cached articles for the given ids with
// post-filters applied.
func (d *DB) ArticlesByIDs(ctx context.Context, ids []string, f Filter) ([]core.Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimRight(strings.Repeat("?,", len(ids)), ",")
	sql := "SELECT " + articleColumns + " FROM articles WHERE id IN (" + placeholders + ")"
	args := make([]any, 0, len(ids)+4)
	for _, id := range ids {
		args = append(args, id)
	}
	sql, args = applyFilter(sql, args, f)

	var articles []core.Article
	if err := d.db.SelectContext(ctx, &articles, sql, args...); err != nil {
		return nil, fmt.Errorf("article lookup failed: %w", err)
	}
	return articles, nil
}

// TopKeywords returns enabled keywords by usage, the dictionary used by
// the keyword-extractor fallback.
func (d *DB) TopKeywords(ctx context.Context, limit int) ([]core.Keyword, error) {
	if limit <= 0 {
		limit = 200
	}
	var keywords []core.Keyword
	err := d.db.SelectContext(ctx, &keywords, `
		SELECT id, name, COALESCE(category_id, '') AS category_id,
			COALESCE(relevance_score, 0) AS relevance_score, usage_count, enabled
		FROM keywords
		WHERE enabled = 1
		ORDER BY usage_count DESC, relevance_score DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword load failed: %w", err)
	}
	return keywords, nil
}

// Categories returns all cached categories.
func (d *DB) Categories(ctx context.Context) ([]core.Category, error) {
	var categories []core.Category
	err := d.db.SelectContext(ctx, &categories, `
		SELECT id, name, COALESCE(emoji, '') AS emoji, COALESCE(description, '') AS description,
			enabled, COALESCE(color, '') AS color
		FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("category load failed: %w", err)
	}
	return categories, nil
}

func applyFilter(sql string, args []any, f Filter) (string, []any) {
	if f.Category != "" {
		sql += " AND category_id = ?"
		args = append(args, f.Category)
	}
	if f.Source != "" {
		sql += " AND source = ?"
		args = append(args, f.Source)
	}
	if f.DateFrom != "" {
		sql += " AND published_at >= ?"
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		sql += " AND published_at <= ?"
		args = append(args, f.DateTo)
	}
	return sql, args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
