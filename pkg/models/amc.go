// Package models contains the data model for the AMC master and its
// reconciliation workflow.
package models

import (
	"sort"
	"strings"
	"time"
)

// Source identifies the upstream registrar that reported an AMC reference.
type Source string

const (
	SourceCams Source = "cams"
	SourceKfin Source = "kfin"
	SourceBse  Source = "bse"
	SourceNse  Source = "nse"
	SourceAmfi Source = "amfi"
)

// CodeSources are the sources that assign AMC codes. AMFI reports names
// only, so it never appears as a code column on the master.
var CodeSources = []Source{SourceCams, SourceKfin, SourceBse, SourceNse}

// ParseSource validates a source string.
func ParseSource(s string) (Source, bool) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceCams:
		return SourceCams, true
	case SourceKfin:
		return SourceKfin, true
	case SourceBse:
		return SourceBse, true
	case SourceNse:
		return SourceNse, true
	case SourceAmfi:
		return SourceAmfi, true
	}
	return "", false
}

// AmcMaster is the canonical record for one real-world asset management
// company. Per-source code columns hold comma-joined sets of uppercase raw
// codes; a set because some registrars reuse codes inconsistently over time.
type AmcMaster struct {
	AmcID        string     `json:"amc_id" db:"amc_id"`
	AmcCode      string     `json:"amc_code" db:"amc_code"`
	AmcShortName string     `json:"amc_short_name" db:"amc_short_name"`
	AmcFullName  string     `json:"amc_full_name" db:"amc_full_name"`
	CamsAmcCodes string     `json:"cams_amc_codes,omitempty" db:"cams_amc_codes"`
	KfinAmcCodes string     `json:"kfin_amc_codes,omitempty" db:"kfin_amc_codes"`
	BseAmcCodes  string     `json:"bse_amc_codes,omitempty" db:"bse_amc_codes"`
	NseAmcCodes  string     `json:"nse_amc_codes,omitempty" db:"nse_amc_codes"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// SourceCodes returns the code set for a source.
func (m *AmcMaster) SourceCodes(source Source) []string {
	return SplitCodeSet(m.codeColumn(source))
}

// HasCode reports whether the trimmed, uppercased code is present in any of
// the master's source code sets.
func (m *AmcMaster) HasCode(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return false
	}
	for _, source := range CodeSources {
		for _, c := range m.SourceCodes(source) {
			if c == code {
				return true
			}
		}
	}
	return false
}

func (m *AmcMaster) codeColumn(source Source) string {
	switch source {
	case SourceCams:
		return m.CamsAmcCodes
	case SourceKfin:
		return m.KfinAmcCodes
	case SourceBse:
		return m.BseAmcCodes
	case SourceNse:
		return m.NseAmcCodes
	}
	return ""
}

// SplitCodeSet parses a comma-joined code set column into its members.
func SplitCodeSet(column string) []string {
	if strings.TrimSpace(column) == "" {
		return nil
	}
	parts := strings.Split(column, ",")
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}

// MergeCodeSet adds a code to a comma-joined set column, preserving set
// semantics and a stable order. Returns the new column value and whether the
// code was actually new.
func MergeCodeSet(column, code string) (string, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return column, false
	}
	codes := SplitCodeSet(column)
	for _, c := range codes {
		if c == code {
			return column, false
		}
	}
	codes = append(codes, code)
	sort.Strings(codes)
	return strings.Join(codes, ","), true
}

// CreateAmcMasterRequest is the request to create a canonical AMC.
type CreateAmcMasterRequest struct {
	AmcCode      string `json:"amc_code" validate:"required"`
	AmcShortName string `json:"amc_short_name" validate:"required"`
	AmcFullName  string `json:"amc_full_name" validate:"required"`
}

// AttachCodeRequest is the request to attach a source code to a master row.
// Either AmcID or AmcName must identify the target.
type AttachCodeRequest struct {
	Source  string `json:"source" validate:"required"`
	AmcCode string `json:"amc_code" validate:"required"`
	AmcID   string `json:"amc_id,omitempty"`
	AmcName string `json:"amc_name,omitempty"`
}

// UpdateAmcCodeRequest changes a master row's canonical code.
type UpdateAmcCodeRequest struct {
	AmcCode string `json:"amc_code" validate:"required"`
}

// CoverageSummary reports master size and per-source code coverage; the
// shape consumed by the pipeline dashboards.
type CoverageSummary struct {
	MasterCount   int            `json:"master_count"`
	PendingReview int            `json:"pending_review"`
	Approved      int            `json:"approved"`
	Coverage      map[string]int `json:"coverage_by_source"`
}

// AmcMasterListResponse is a paginated master listing.
type AmcMasterListResponse struct {
	Items      []AmcMaster `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}
