package types

// PipelineState tracks where a discovery run is in its lifecycle.
type PipelineState string

const (
	StateIdle          PipelineState = "idle"
	StateFetching      PipelineState = "fetching"
	StateDeduplicating PipelineState = "deduplicating"
	StateEmbedding     PipelineState = "embedding"
	StateClustering    PipelineState = "clustering"
	StateScoring       PipelineState = "scoring"
	StateReady         PipelineState = "ready"
	StateError         PipelineState = "error"
)

// DiscoveryStats is the running tally for one discovery run.
type DiscoveryStats struct {
	Fetched     int `json:"fetched"`
	Duplicates  int `json:"duplicates"`
	Embedded    int `json:"embedded"`
	NewClusters int `json:"new_clusters"`
	Merged      int `json:"merged"`
	Failed      int `json:"failed"`
}
