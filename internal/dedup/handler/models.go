package handler

import (
	"time"

	"outletdedup/internal/dedup/models"
)

// RunResponse is the JSON view of a run summary.
type RunResponse struct {
	RunID              string    `json:"run_id"`
	StartedAt          time.Time `json:"started_at"`
	DurationMS         int64     `json:"duration_ms"`
	Metric             string    `json:"metric"`
	Threshold          float64   `json:"threshold"`
	TotalRecords       int       `json:"total_records"`
	Groups             int       `json:"groups"`
	LargestGroup       int       `json:"largest_group"`
	RecordsUpdated     int64     `json:"records_updated"`
	Unassigned         int       `json:"unassigned"`
	LookupMisses       int       `json:"lookup_misses"`
	Collisions         int       `json:"collisions"`
	DuplicateRecordIDs int       `json:"duplicate_record_ids"`
}

func FromSummary(s *models.Summary) RunResponse {
	return RunResponse{
		RunID:              s.RunID.String(),
		StartedAt:          s.StartedAt,
		DurationMS:         s.Duration.Milliseconds(),
		Metric:             s.Metric,
		Threshold:          s.Threshold,
		TotalRecords:       s.TotalRecords,
		Groups:             s.Groups,
		LargestGroup:       s.LargestGroup,
		RecordsUpdated:     s.RecordsUpdated,
		Unassigned:         s.Unassigned,
		LookupMisses:       s.LookupMisses,
		Collisions:         s.Collisions,
		DuplicateRecordIDs: s.DuplicateRecordID,
	}
}
