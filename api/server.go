package api

import (
	"github.com/gin-gonic/gin"

	"newscast/deduplication"
	"newscast/ingestion"
	"newscast/selection"
	"newscast/storage"
)

// Deps carries the wired components the handlers need.
type Deps struct {
	Pipeline *ingestion.Pipeline
	State    *ingestion.StateManager
	Planner  *selection.Planner
	Store    *storage.Store
	Dedup    *deduplication.Deduplicator
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	// Minimal middleware: recovery; logger optional to reduce verbosity
	r.Use(gin.Recovery())

	RegisterDiscoveryRoutes(r, deps)
	RegisterDedupRoutes(r, deps)
	RegisterPlanRoutes(r, deps)
	RegisterHealthRoutes(r)
	return r
}
