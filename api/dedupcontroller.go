package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"newscast/types"
)

// RegisterDedupRoutes registers the standalone duplicate-check endpoint.
func RegisterDedupRoutes(r *gin.Engine, deps Deps) {
	g := r.Group("/api")
	g.POST("/dedup/check", handleDedupCheck(deps))
}

// DedupCheckRequest describes an article to test against the stored
// fingerprints without persisting it.
type DedupCheckRequest struct {
	SourceName string `json:"source_name"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Summary    string `json:"summary"`
}

// handleDedupCheck reports whether an article would be rejected as a
// duplicate, and points at the stored copy when the URL matches one.
// POST /api/dedup/check
func handleDedupCheck(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DedupCheckRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		article := &types.Article{
			ID:         types.GenerateID(req.SourceName, req.URL),
			SourceName: req.SourceName,
			Title:      req.Title,
			URL:        req.URL,
			Summary:    req.Summary,
		}
		duplicate, err := deps.Dedup.IsDuplicate(c.Request.Context(), article)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{"duplicate": duplicate}
		if duplicate && req.URL != "" {
			if existing, err := deps.Store.GetArticleByURL(req.URL); err == nil && existing != nil {
				resp["existing_article_id"] = existing.ID
				resp["cluster_id"] = existing.ClusterID
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
