package model

// IngestionEvent asks the pipeline to process one submitted track. Delivery
// is at-least-once; the consumer's status guard makes duplicates harmless.
type IngestionEvent struct {
	TrackID int64 `json:"trackId"`
}
