package models

// RawAmcReference is one distinct (code, name) pair extracted from a source
// feed, before normalization or matching.
type RawAmcReference struct {
	Source  Source `json:"source" db:"source"`
	AmcCode string `json:"amc_code" db:"amc_code"`
	AmcName string `json:"amc_name" db:"amc_name"`
}

// ResolveRequest asks the engine to resolve a single raw reference.
type ResolveRequest struct {
	Source  string `json:"source" validate:"required"`
	AmcCode string `json:"amc_code"`
	AmcName string `json:"amc_name"`
}

// ResolveResult is the outcome of resolving a raw reference. Staged is true
// when the reference was parked for review instead of attached directly.
type ResolveResult struct {
	Match     MatchInfo `json:"match"`
	AmcID     string    `json:"amc_id,omitempty"`
	Staged    bool      `json:"staged"`
	StagingID string    `json:"staging_id,omitempty"`
}

// BuildSummary reports what one full build pass did.
type BuildSummary struct {
	Extracted      int            `json:"extracted"`
	DirectResolved int            `json:"direct_resolved"`
	Staged         int            `json:"staged"`
	AutoApproved   int            `json:"auto_approved"`
	Promoted       int            `json:"promoted"`
	BySource       map[string]int `json:"by_source"`
}

// CodeUpdateError is a row-level failure from a bulk code update.
type CodeUpdateError struct {
	Row    int    `json:"row"`
	AmcID  string `json:"amc_id,omitempty"`
	Reason string `json:"reason"`
}

// BulkCodeUpdateResponse reports row-level outcomes of a CSV code update.
type BulkCodeUpdateResponse struct {
	Success int               `json:"success"`
	Errors  []CodeUpdateError `json:"errors"`
}
