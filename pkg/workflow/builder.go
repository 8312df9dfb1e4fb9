// Package workflow drives full master builds: extract raw references, match
// or stage each one, auto-approve high-confidence suggestions, promote
// unmatched names into new master rows, and report coverage.
package workflow

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/aster/pkg/matching"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// RawExtractor reads distinct references from the raw feed tables.
type RawExtractor interface {
	Sources() []models.Source
	Extract(ctx context.Context, source models.Source) ([]models.RawAmcReference, error)
}

// Resolver is the subset of the resolver service the builder drives.
type Resolver interface {
	Snapshot(ctx context.Context) (*matching.Matcher, error)
	ResolveWithMatcher(ctx context.Context, matcher *matching.Matcher, ref models.RawAmcReference) (*models.ResolveResult, error)
	BulkApprove(ctx context.Context, threshold float64) (*models.BulkApproveResponse, error)
	PromoteNewAmcs(ctx context.Context) (int, error)
	AttachCodeByTarget(ctx context.Context, req models.AttachCodeRequest) (*models.AmcMaster, error)
}

// MasterReader reports master-side counts for the coverage summary.
type MasterReader interface {
	Count(ctx context.Context) (int, error)
	CoverageBySource(ctx context.Context) (map[string]int, error)
}

// StagingReader reports staging-side state for export and the summary.
type StagingReader interface {
	ListPending(ctx context.Context) ([]models.StagingCandidate, error)
	CountByStatus(ctx context.Context) (map[models.StagingStatus]int, error)
}

// Builder runs the reconciliation pipeline end to end.
type Builder struct {
	logger               ectologger.Logger
	raw                  RawExtractor
	resolver             Resolver
	masters              MasterReader
	staging              StagingReader
	autoApproveThreshold float64
}

// NewBuilder creates a build pipeline.
func NewBuilder(logger ectologger.Logger, raw RawExtractor, resolver Resolver, masters MasterReader, staging StagingReader, autoApproveThreshold float64) *Builder {
	return &Builder{
		logger:               logger,
		raw:                  raw,
		resolver:             resolver,
		masters:              masters,
		staging:              staging,
		autoApproveThreshold: autoApproveThreshold,
	}
}

// Build runs a full pass: extract every source, resolve or stage each
// reference, bulk-approve suggestions at or above the threshold, then
// promote the remaining unmatched names.
func (b *Builder) Build(ctx context.Context) (*models.BuildSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Builder.Build")
	defer span.End()

	summary, err := b.Extract(ctx)
	if err != nil {
		return nil, err
	}

	approveResp, err := b.resolver.BulkApprove(ctx, b.autoApproveThreshold)
	if err != nil {
		return nil, err
	}
	summary.AutoApproved = approveResp.Approved

	promoted, err := b.resolver.PromoteNewAmcs(ctx)
	if err != nil {
		return nil, err
	}
	summary.Promoted = promoted

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"extracted":       summary.Extracted,
		"direct_resolved": summary.DirectResolved,
		"staged":          summary.Staged,
		"auto_approved":   summary.AutoApproved,
		"promoted":        summary.Promoted,
	}).Info("Build completed")
	return summary, nil
}

// Extract runs the extraction half of a build: read every raw table and
// resolve or stage each reference, with no approval or promotion.
func (b *Builder) Extract(ctx context.Context) (*models.BuildSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Builder.Extract")
	defer span.End()

	summary := &models.BuildSummary{BySource: make(map[string]int)}

	for _, source := range b.raw.Sources() {
		refs, err := b.raw.Extract(ctx, source)
		if err != nil {
			return nil, err
		}
		summary.Extracted += len(refs)
		summary.BySource[string(source)] = len(refs)

		// Fresh snapshot per source: direct resolutions during the previous
		// source may have attached codes that now match exactly.
		matcher, err := b.resolver.Snapshot(ctx)
		if err != nil {
			return nil, err
		}

		for _, ref := range refs {
			result, err := b.resolver.ResolveWithMatcher(ctx, matcher, ref)
			if err != nil {
				return nil, err
			}
			switch {
			case result.Staged:
				summary.Staged++
			case result.AmcID != "":
				summary.DirectResolved++
			}
		}
	}

	return summary, nil
}

// Summary reports the master and staging state after a build.
func (b *Builder) Summary(ctx context.Context) (*models.CoverageSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Builder.Summary")
	defer span.End()

	masterCount, err := b.masters.Count(ctx)
	if err != nil {
		return nil, err
	}
	coverage, err := b.masters.CoverageBySource(ctx)
	if err != nil {
		return nil, err
	}
	statusCounts, err := b.staging.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	return &models.CoverageSummary{
		MasterCount:   masterCount,
		PendingReview: statusCounts[models.StagingPending],
		Approved:      statusCounts[models.StagingApproved],
		Coverage:      coverage,
	}, nil
}

var exportHeader = []string{
	"id", "source_table", "source_amc_name", "normalized_name",
	"source_amc_code", "suggested_amc_id", "match_type", "match_confidence",
}

// ExportPending writes pending candidates as a CSV spreadsheet for human
// adjudication, highest confidence first.
func (b *Builder) ExportPending(ctx context.Context, w io.Writer) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Builder.ExportPending")
	defer span.End()

	pending, err := b.staging.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, err
	}
	for _, c := range pending {
		suggested := ""
		if c.SuggestedAmcID != nil {
			suggested = *c.SuggestedAmcID
		}
		record := []string{
			c.ID, string(c.SourceTable), c.SourceAmcName, c.NormalizedName,
			c.SourceAmcCode, suggested, string(c.MatchType),
			strconv.FormatFloat(c.MatchConfidence, 'f', 4, 64),
		}
		if err := cw.Write(record); err != nil {
			return 0, err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{"count": len(pending)}).Info("Exported pending candidates")
	return len(pending), nil
}

// ExportPendingFile writes the pending-review CSV to a path.
func (b *Builder) ExportPendingFile(ctx context.Context, path string) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to create export file: %v", err)
	}
	defer f.Close()
	return b.ExportPending(ctx, f)
}

// BulkUpdateCodes reads a CSV of (amc_name, amc_code) pairs and attaches
// each code under the given source. Bad rows are reported, not fatal; good
// rows still apply.
func (b *Builder) BulkUpdateCodes(ctx context.Context, source string, r io.Reader) (*models.BulkCodeUpdateResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Builder.BulkUpdateCodes")
	defer span.End()

	if _, ok := models.ParseSource(source); !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown source %q", source)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	resp := &models.BulkCodeUpdateResponse{}
	row := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid csv: %v", err)
		}
		row++

		// Skip a header row if present.
		if row == 1 && len(record) >= 2 && record[0] == "amc_name" {
			continue
		}

		if len(record) < 2 || record[0] == "" || record[1] == "" {
			resp.Errors = append(resp.Errors, models.CodeUpdateError{
				Row:    row,
				Reason: "expected amc_name,amc_code",
			})
			continue
		}

		if _, err := b.resolver.AttachCodeByTarget(ctx, models.AttachCodeRequest{
			Source:  source,
			AmcName: record[0],
			AmcCode: record[1],
		}); err != nil {
			resp.Errors = append(resp.Errors, models.CodeUpdateError{
				Row:    row,
				Reason: fmt.Sprintf("%v", err),
			})
			continue
		}
		resp.Success++
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"source":  source,
		"success": resp.Success,
		"errors":  len(resp.Errors),
	}).Info("Bulk code update completed")
	return resp, nil
}
