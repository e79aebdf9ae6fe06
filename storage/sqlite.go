package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"newscast/common"
	"newscast/config"
	"newscast/types"
)

// Store is the SQLite-backed persistence layer for articles, story clusters
// and per-user episode history.
type Store struct {
	db *sql.DB
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS articles (
	article_id TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL UNIQUE,
	url_hash TEXT UNIQUE,
	url TEXT NOT NULL,
	source_name TEXT NOT NULL,
	title TEXT NOT NULL,
	summary TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '',
	published_at DATETIME,
	category TEXT NOT NULL,
	subcategory TEXT NOT NULL DEFAULT '',
	tags_json TEXT NOT NULL DEFAULT '[]',
	embedding_json TEXT,
	cluster_id TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_cluster ON articles(cluster_id);
CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);

CREATE TABLE IF NOT EXISTS story_clusters (
	cluster_id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	summary TEXT NOT NULL,
	category TEXT NOT NULL,
	subcategory TEXT NOT NULL DEFAULT '',
	centroid_json TEXT NOT NULL,
	article_count INTEGER NOT NULL DEFAULT 1,
	importance INTEGER NOT NULL DEFAULT 40,
	first_seen_at DATETIME NOT NULL,
	last_updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_clusters_category ON story_clusters(category);
CREATE INDEX IF NOT EXISTS idx_clusters_updated ON story_clusters(last_updated_at);

CREATE TABLE IF NOT EXISTS episode_sources (
	episode_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	cluster_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (episode_id, cluster_id)
);
CREATE INDEX IF NOT EXISTS idx_episode_sources_user ON episode_sources(user_id);
`

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertArticle persists a new article. A collision on either fingerprint
// hash returns common.ErrDuplicateArticle. An empty urlHash is stored as
// NULL so URL-less articles never collide with each other.
func (s *Store) InsertArticle(a *types.Article, contentHash, urlHash string) error {
	tags, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	var urlHashValue any
	if urlHash != "" {
		urlHashValue = urlHash
	}
	var embedding any
	if a.Embedding != nil {
		raw, err := json.Marshal(a.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		embedding = string(raw)
	}
	var published any
	if a.PublishedAt != nil {
		published = a.PublishedAt.UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO articles (article_id, content_hash, url_hash, url, source_name,
			title, summary, content, published_at, category, subcategory, tags_json,
			embedding_json, cluster_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, contentHash, urlHashValue, a.URL, a.SourceName, a.Title,
		a.Summary, a.Content, published, a.Category, a.Subcategory, string(tags),
		embedding, a.ClusterID, a.CreatedAt.UTC())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("article %s: %w", a.ID, common.ErrDuplicateArticle)
		}
		return fmt.Errorf("failed to insert article %s: %w", a.ID, err)
	}
	return nil
}

// HashExists reports whether a fingerprint hash (content or URL) is already
// stored. It is the authoritative check behind the bloom filter fast path.
func (s *Store) HashExists(hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE content_hash = ? OR url_hash = ?`, hash, hash).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check hash: %w", err)
	}
	return count > 0, nil
}

// GetArticleByURL fetches one article by its raw URL, or nil when absent.
func (s *Store) GetArticleByURL(url string) (*types.Article, error) {
	rows, err := s.db.Query(`
		SELECT article_id, url, source_name, title, summary, content,
			published_at, category, subcategory, tags_json, embedding_json,
			cluster_id, created_at
		FROM articles WHERE url = ? LIMIT 1`, url)
	if err != nil {
		return nil, fmt.Errorf("failed to query article by url: %w", err)
	}
	defer rows.Close()
	articles, err := scanArticles(rows)
	if err != nil || len(articles) == 0 {
		return nil, err
	}
	return &articles[0], nil
}

// SetArticleEmbedding stores an embedding for an article that was inserted
// before the embedding stage ran.
func (s *Store) SetArticleEmbedding(articleID string, embedding []float64) error {
	raw, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	_, err = s.db.Exec(`UPDATE articles SET embedding_json = ? WHERE article_id = ?`, string(raw), articleID)
	if err != nil {
		return fmt.Errorf("failed to set embedding for %s: %w", articleID, err)
	}
	return nil
}

// AssignArticle links an article to its cluster.
func (s *Store) AssignArticle(articleID, clusterID string) error {
	_, err := s.db.Exec(`UPDATE articles SET cluster_id = ? WHERE article_id = ?`, clusterID, articleID)
	if err != nil {
		return fmt.Errorf("failed to assign article %s: %w", articleID, err)
	}
	return nil
}

// UnclusteredArticles returns embedded articles in a category that have not
// been assigned to any cluster yet, oldest first.
func (s *Store) UnclusteredArticles(category string) ([]types.Article, error) {
	rows, err := s.db.Query(`
		SELECT article_id, url, source_name, title, summary, content,
			published_at, category, subcategory, tags_json, embedding_json,
			cluster_id, created_at
		FROM articles
		WHERE category = ? AND cluster_id = '' AND embedding_json IS NOT NULL
		ORDER BY created_at ASC`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query unclustered articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// UnembeddedArticles returns articles still waiting for an embedding, oldest
// first. An empty category matches every category.
func (s *Store) UnembeddedArticles(category string) ([]types.Article, error) {
	rows, err := s.db.Query(`
		SELECT article_id, url, source_name, title, summary, content,
			published_at, category, subcategory, tags_json, embedding_json,
			cluster_id, created_at
		FROM articles
		WHERE (? = '' OR category = ?) AND embedding_json IS NULL
		ORDER BY created_at ASC`, category, category)
	if err != nil {
		return nil, fmt.Errorf("failed to query unembedded articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// ArticlesByCluster returns all member articles of a cluster.
func (s *Store) ArticlesByCluster(clusterID string) ([]types.Article, error) {
	rows, err := s.db.Query(`
		SELECT article_id, url, source_name, title, summary, content,
			published_at, category, subcategory, tags_json, embedding_json,
			cluster_id, created_at
		FROM articles
		WHERE cluster_id = ?
		ORDER BY created_at ASC`, clusterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cluster articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

func scanArticles(rows *sql.Rows) ([]types.Article, error) {
	var articles []types.Article
	for rows.Next() {
		var a types.Article
		var published sql.NullTime
		var tagsJSON string
		var embeddingJSON sql.NullString
		err := rows.Scan(&a.ID, &a.URL, &a.SourceName, &a.Title, &a.Summary,
			&a.Content, &published, &a.Category, &a.Subcategory, &tagsJSON,
			&embeddingJSON, &a.ClusterID, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		if published.Valid {
			t := published.Time
			a.PublishedAt = &t
		}
		if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
			return nil, fmt.Errorf("failed to parse tags for %s: %w", a.ID, err)
		}
		if embeddingJSON.Valid {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &a.Embedding); err != nil {
				return nil, fmt.Errorf("failed to parse embedding for %s: %w", a.ID, err)
			}
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

// CreateCluster persists a new cluster seeded by one article.
func (s *Store) CreateCluster(c *types.StoryCluster) error {
	if c.Importance < config.MinImportance || c.Importance > config.MaxImportance {
		return fmt.Errorf("cluster %s score %d: %w", c.ID, c.Importance, common.ErrInvalidScoreRange)
	}
	centroid, err := json.Marshal(c.Centroid)
	if err != nil {
		return fmt.Errorf("failed to marshal centroid: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO story_clusters (cluster_id, title, summary, category,
			subcategory, centroid_json, article_count, importance,
			first_seen_at, last_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Summary, c.Category, c.Subcategory, string(centroid),
		c.ArticleCount, c.Importance, c.FirstSeenAt.UTC(), c.LastUpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to create cluster %s: %w", c.ID, err)
	}
	return nil
}

// UpdateClusterOnMerge records a new member: refreshed centroid, incremented
// article count and advanced last-updated timestamp, in one statement.
func (s *Store) UpdateClusterOnMerge(clusterID string, centroid []float64, updatedAt time.Time) error {
	raw, err := json.Marshal(centroid)
	if err != nil {
		return fmt.Errorf("failed to marshal centroid: %w", err)
	}
	res, err := s.db.Exec(`
		UPDATE story_clusters
		SET centroid_json = ?, article_count = article_count + 1, last_updated_at = ?
		WHERE cluster_id = ?`, string(raw), updatedAt.UTC(), clusterID)
	if err != nil {
		return fmt.Errorf("failed to update cluster %s: %w", clusterID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cluster %s not found", clusterID)
	}
	return nil
}

// SetClusterImportance stores a recomputed importance score, rejecting
// anything outside the valid range.
func (s *Store) SetClusterImportance(clusterID string, score int) error {
	if score < config.MinImportance || score > config.MaxImportance {
		return fmt.Errorf("cluster %s score %d: %w", clusterID, score, common.ErrInvalidScoreRange)
	}
	_, err := s.db.Exec(`UPDATE story_clusters SET importance = ? WHERE cluster_id = ?`, score, clusterID)
	if err != nil {
		return fmt.Errorf("failed to set importance for %s: %w", clusterID, err)
	}
	return nil
}

// GetCluster fetches one cluster by ID, or nil when absent.
func (s *Store) GetCluster(clusterID string) (*types.StoryCluster, error) {
	row := s.db.QueryRow(`
		SELECT cluster_id, title, summary, category, subcategory, centroid_json,
			article_count, importance, first_seen_at, last_updated_at
		FROM story_clusters WHERE cluster_id = ?`, clusterID)
	c, err := scanCluster(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCluster(row rowScanner) (*types.StoryCluster, error) {
	var c types.StoryCluster
	var centroidJSON string
	err := row.Scan(&c.ID, &c.Title, &c.Summary, &c.Category, &c.Subcategory,
		&centroidJSON, &c.ArticleCount, &c.Importance, &c.FirstSeenAt, &c.LastUpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(centroidJSON), &c.Centroid); err != nil {
		return nil, fmt.Errorf("failed to parse centroid for %s: %w", c.ID, err)
	}
	return &c, nil
}

// ClustersByCategory returns clusters in a category updated since the cutoff,
// most important first.
func (s *Store) ClustersByCategory(category string, updatedSince time.Time) ([]types.StoryCluster, error) {
	rows, err := s.db.Query(`
		SELECT cluster_id, title, summary, category, subcategory, centroid_json,
			article_count, importance, first_seen_at, last_updated_at
		FROM story_clusters
		WHERE category = ? AND last_updated_at >= ?
		ORDER BY importance DESC, last_updated_at DESC`, category, updatedSince.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []types.StoryCluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *c)
	}
	return clusters, rows.Err()
}

// ClustersByTopic returns fresh clusters matching a planner topic. A topic
// matches a cluster's category, its subcategory, or a tag carried by any
// member article. Freshness is judged on FirstSeenAt.
func (s *Store) ClustersByTopic(topic string, firstSeenSince time.Time) ([]types.StoryCluster, error) {
	tagPattern := `%"` + topic + `"%`
	rows, err := s.db.Query(`
		SELECT DISTINCT c.cluster_id, c.title, c.summary, c.category, c.subcategory,
			c.centroid_json, c.article_count, c.importance, c.first_seen_at,
			c.last_updated_at
		FROM story_clusters c
		LEFT JOIN articles a ON a.cluster_id = c.cluster_id
		WHERE c.first_seen_at >= ?
			AND (c.category = ? OR c.subcategory = ? OR a.tags_json LIKE ?)
		ORDER BY c.importance DESC, c.last_updated_at DESC`,
		firstSeenSince.UTC(), topic, topic, tagPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters for topic %q: %w", topic, err)
	}
	defer rows.Close()

	var clusters []types.StoryCluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *c)
	}
	return clusters, rows.Err()
}

// DeleteCluster removes a cluster and detaches its articles without deleting
// them, leaving them eligible for reassignment.
func (s *Store) DeleteCluster(clusterID string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if _, err := tx.Exec(`UPDATE articles SET cluster_id = '' WHERE cluster_id = ?`, clusterID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to detach articles: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM story_clusters WHERE cluster_id = ?`, clusterID); err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to delete cluster %s: %w", clusterID, err)
	}
	return tx.Commit()
}

// SetClusterCanonical replaces the cluster's representative title and summary.
func (s *Store) SetClusterCanonical(clusterID, title, summary string) error {
	_, err := s.db.Exec(`UPDATE story_clusters SET title = ?, summary = ? WHERE cluster_id = ?`,
		title, summary, clusterID)
	if err != nil {
		return fmt.Errorf("failed to update canonical fields for %s: %w", clusterID, err)
	}
	return nil
}

// AllClusters returns every stored cluster, used by rescoring sweeps.
func (s *Store) AllClusters() ([]types.StoryCluster, error) {
	rows, err := s.db.Query(`
		SELECT cluster_id, title, summary, category, subcategory, centroid_json,
			article_count, importance, first_seen_at, last_updated_at
		FROM story_clusters`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clusters: %w", err)
	}
	defer rows.Close()

	var clusters []types.StoryCluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, *c)
	}
	return clusters, rows.Err()
}

// RecordEpisodeSources remembers which clusters fed an episode so later plans
// can exclude already-heard stories.
func (s *Store) RecordEpisodeSources(episodeID, userID string, clusterIDs []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	now := time.Now().UTC()
	for _, id := range clusterIDs {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO episode_sources (episode_id, user_id, cluster_id, created_at)
			VALUES (?, ?, ?, ?)`, episodeID, userID, id, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record episode source: %w", err)
		}
	}
	return tx.Commit()
}

// HeardClusterIDs returns every cluster a user has already received in an
// episode.
func (s *Store) HeardClusterIDs(userID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT cluster_id FROM episode_sources WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query episode sources: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CategoryStats summarizes cluster inventory per category. Fresh means
// updated within the freshness window ending at now.
func (s *Store) CategoryStats(now time.Time) ([]types.CategoryStats, error) {
	cutoff := now.Add(-config.FreshnessWindow).UTC()
	rows, err := s.db.Query(`
		SELECT category,
			COUNT(*),
			COALESCE(SUM(article_count), 0),
			COALESCE(SUM(CASE WHEN last_updated_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(MAX(importance), 0)
		FROM story_clusters
		GROUP BY category
		ORDER BY category`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query category stats: %w", err)
	}
	defer rows.Close()

	var stats []types.CategoryStats
	for rows.Next() {
		var st types.CategoryStats
		if err := rows.Scan(&st.Category, &st.ClusterCount, &st.ArticleCount,
			&st.FreshClusters, &st.MaxImportance); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}
