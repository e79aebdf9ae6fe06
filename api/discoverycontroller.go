package api

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterDiscoveryRoutes registers the discovery run endpoints.
func RegisterDiscoveryRoutes(r *gin.Engine, deps Deps) {
	g := r.Group("/api")
	g.POST("/discover", handleDiscover(deps))
	g.POST("/batches/replay", handleReplayBatch(deps))
	g.GET("/status", handleStatus(deps))
}

// handleDiscover triggers a discovery run. It runs asynchronously and
// returns 202 Accepted immediately; 409 when a run is already in flight.
func handleDiscover(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := deps.State.GetStatus()
		switch status.State {
		case "fetching", "deduplicating", "embedding", "clustering", "scoring":
			c.JSON(http.StatusConflict, gin.H{"error": "discovery run already in progress"})
			return
		}

		go func() {
			if err := deps.Pipeline.Run(context.Background()); err != nil {
				log.Printf("❌ discovery run failed: %v", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "discovery started"})
	}
}

// ReplayBatchRequest names an archived batch object to reprocess.
type ReplayBatchRequest struct {
	Key string `json:"key" binding:"required"`
}

// handleReplayBatch reprocesses an archived batch through the pipeline. Like
// discovery, the work runs asynchronously.
// POST /api/batches/replay
func handleReplayBatch(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ReplayBatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		status := deps.State.GetStatus()
		switch status.State {
		case "fetching", "deduplicating", "embedding", "clustering", "scoring":
			c.JSON(http.StatusConflict, gin.H{"error": "discovery run already in progress"})
			return
		}

		go func() {
			if err := deps.Pipeline.ReplayBatch(context.Background(), req.Key); err != nil {
				log.Printf("❌ batch replay failed: %v", err)
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"status": "replay started", "key": req.Key})
	}
}

// handleStatus returns the current pipeline snapshot.
// GET /api/status
func handleStatus(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.State.GetStatus())
	}
}
