package models

import (
	"strings"
	"time"
)

// StagingStatus is the review state of a staged AMC reference.
type StagingStatus string

const (
	StagingPending  StagingStatus = "PENDING"
	StagingApproved StagingStatus = "APPROVED"
	StagingRejected StagingStatus = "REJECTED"
)

// StagingCandidate is one unresolved AMC reference parked for review. Rows
// are keyed by (source_table, normalized_name, source_amc_code) so the same
// reference seen twice never produces a second row.
type StagingCandidate struct {
	ID              string        `json:"id" db:"id"`
	SourceTable     Source        `json:"source_table" db:"source_table"`
	SourceAmcName   string        `json:"source_amc_name" db:"source_amc_name"`
	NormalizedName  string        `json:"normalized_name" db:"normalized_name"`
	SourceAmcCode   string        `json:"source_amc_code" db:"source_amc_code"`
	SuggestedAmcID  *string       `json:"suggested_amc_id,omitempty" db:"suggested_amc_id"`
	MatchType       MatchType     `json:"match_type" db:"match_type"`
	MatchConfidence float64       `json:"match_confidence" db:"match_confidence"`
	Status          StagingStatus `json:"status" db:"status"`
	ReviewedBy      *string       `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty" db:"reviewed_at"`
	Notes           *string       `json:"notes,omitempty" db:"notes"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
}

// ParseStagingStatus parses a status string, case-insensitively.
func ParseStagingStatus(s string) (StagingStatus, bool) {
	switch StagingStatus(strings.ToUpper(s)) {
	case StagingPending:
		return StagingPending, true
	case StagingApproved:
		return StagingApproved, true
	case StagingRejected:
		return StagingRejected, true
	}
	return "", false
}

// ReviewStagingRequest approves or rejects a single staged candidate.
type ReviewStagingRequest struct {
	Status     StagingStatus `json:"status" validate:"required,oneof=APPROVED REJECTED"`
	AmcID      string        `json:"amc_id,omitempty"`
	ReviewedBy string        `json:"reviewed_by" validate:"required"`
	Notes      string        `json:"notes,omitempty"`
}

// BulkApproveRequest approves every pending candidate whose suggested match
// scored at or above the threshold.
type BulkApproveRequest struct {
	Threshold float64 `json:"threshold" validate:"gte=0,lte=1"`
}

// BulkApproveResponse reports how many rows a bulk approval touched.
type BulkApproveResponse struct {
	Approved  int     `json:"approved"`
	Threshold float64 `json:"threshold"`
}

// StagingListResponse is a paginated staging listing.
type StagingListResponse struct {
	Items      []StagingCandidate `json:"items"`
	TotalCount int                `json:"total_count"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}
