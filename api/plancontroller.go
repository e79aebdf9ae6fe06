package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"newscast/common"
	"newscast/config"
	"newscast/types"
)

// RegisterPlanRoutes registers selection planning and inventory endpoints.
func RegisterPlanRoutes(r *gin.Engine, deps Deps) {
	g := r.Group("/api")
	g.POST("/plan", handlePlan(deps))
	g.GET("/categories", handleCategories(deps))
	g.GET("/clusters", handleClustersByCategory(deps))
	g.GET("/clusters/:id/backups", handleClusterBackups(deps))
	g.POST("/episodes", handleRecordEpisode(deps))
}

// handlePlan builds a selection plan for the posted preferences.
// POST /api/plan
// Returns 404 when no topic has eligible content.
func handlePlan(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var prefs types.UserPreferences
		if err := c.ShouldBindJSON(&prefs); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		plan, err := deps.Planner.Plan(prefs)
		if errors.Is(err, common.ErrNoContentAvailable) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no content available for the requested topics"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, plan)
	}
}

// handleCategories reports per-category cluster inventory.
// GET /api/categories
func handleCategories(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := deps.Store.CategoryStats(time.Now().UTC())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"categories": stats})
	}
}

// handleClustersByCategory lists clusters in one category updated within the
// freshness window, most important first.
// GET /api/clusters?category=Technology
func handleClustersByCategory(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		category := c.Query("category")
		if category == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "category query parameter is required"})
			return
		}
		since := time.Now().UTC().Add(-config.FreshnessWindow)
		clusters, err := deps.Store.ClustersByCategory(category, since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"clusters": clusters})
	}
}

// handleClusterBackups lists a cluster's member articles as content-fetch
// fallbacks.
// GET /api/clusters/:id/backups
func handleClusterBackups(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		articles, err := deps.Planner.ClusterBackups(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(articles) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "cluster has no articles"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"articles": articles})
	}
}

// RecordEpisodeRequest marks a plan's clusters as delivered to a user.
type RecordEpisodeRequest struct {
	EpisodeID  string   `json:"episode_id"`
	UserID     string   `json:"user_id" binding:"required"`
	ClusterIDs []string `json:"cluster_ids" binding:"required"`
}

// handleRecordEpisode persists which clusters fed a generated episode so
// later plans exclude them.
// POST /api/episodes
func handleRecordEpisode(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RecordEpisodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.EpisodeID == "" {
			req.EpisodeID = uuid.NewString()
		}
		if err := deps.Store.RecordEpisodeSources(req.EpisodeID, req.UserID, req.ClusterIDs); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"episode_id": req.EpisodeID, "recorded": len(req.ClusterIDs)})
	}
}
