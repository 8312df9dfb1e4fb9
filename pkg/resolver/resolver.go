// Package resolver implements the reconciliation workflow: match a raw
// reference, attach it directly when confidence is high enough, otherwise
// park it in staging; approve, bulk-approve and promote staged candidates.
package resolver

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/aster/internal/repositories/amcstaging"
	"github.com/Ramsey-B/aster/pkg/codegen"
	"github.com/Ramsey-B/aster/pkg/matching"
	"github.com/Ramsey-B/aster/pkg/models"
	"github.com/Ramsey-B/aster/pkg/normalizers"
	"github.com/Ramsey-B/aster/pkg/tracing"
)

// SystemReviewer marks rows settled by the engine rather than a human.
const SystemReviewer = "system"

// MasterStore is the subset of the master repository the resolver needs.
type MasterStore interface {
	ListAll(ctx context.Context) ([]models.AmcMaster, error)
	Get(ctx context.Context, amcID string) (*models.AmcMaster, error)
	GetByShortName(ctx context.Context, shortName string) (*models.AmcMaster, error)
	Create(ctx context.Context, master models.AmcMaster) (*models.AmcMaster, bool, error)
	AttachSourceCode(ctx context.Context, amcID string, source models.Source, code string) (*models.AmcMaster, bool, error)
	ListCodes(ctx context.Context) ([]string, error)
}

// StagingStore is the subset of the staging repository the resolver needs.
type StagingStore interface {
	Upsert(ctx context.Context, candidate models.StagingCandidate) (*amcstaging.UpsertResult, error)
	Get(ctx context.Context, id string) (*models.StagingCandidate, error)
	UpdateStatus(ctx context.Context, id string, status models.StagingStatus, amcID *string, reviewedBy string, notes *string) (*models.StagingCandidate, error)
	BulkApprove(ctx context.Context, threshold float64, reviewedBy string) (int, error)
	ListPending(ctx context.Context) ([]models.StagingCandidate, error)
	ListApproved(ctx context.Context) ([]models.StagingCandidate, error)
}

// Emitter publishes lifecycle events. A nil Emitter disables emission.
type Emitter interface {
	EmitAmcCreated(ctx context.Context, master *models.AmcMaster) error
	EmitAmcCodeAttached(ctx context.Context, amcID string, source models.Source, code string) error
	EmitStagingReviewed(ctx context.Context, candidate *models.StagingCandidate) error
}

// Service orchestrates resolution of raw references against the master.
type Service struct {
	logger        ectologger.Logger
	masters       MasterStore
	staging       StagingStore
	emitter       Emitter
	directMinimum float64
}

// NewService creates a resolver. directMinimum is the confidence floor for
// resolving without review.
func NewService(logger ectologger.Logger, masters MasterStore, staging StagingStore, emitter Emitter, directMinimum float64) *Service {
	return &Service{
		logger:        logger,
		masters:       masters,
		staging:       staging,
		emitter:       emitter,
		directMinimum: directMinimum,
	}
}

// Snapshot builds a matcher over the current master set.
func (s *Service) Snapshot(ctx context.Context) (*matching.Matcher, error) {
	masters, err := s.masters.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return matching.NewMatcher(masters), nil
}

// Resolve matches one raw reference against a fresh master snapshot.
func (s *Service) Resolve(ctx context.Context, ref models.RawAmcReference) (*models.ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.Resolve")
	defer span.End()

	matcher, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.ResolveWithMatcher(ctx, matcher, ref)
}

// ResolveWithMatcher matches one raw reference against a caller-held
// snapshot. Batch builds reuse one snapshot across thousands of references.
func (s *Service) ResolveWithMatcher(ctx context.Context, matcher *matching.Matcher, ref models.RawAmcReference) (*models.ResolveResult, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.ResolveWithMatcher")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"source":   ref.Source,
		"amc_code": ref.AmcCode,
		"amc_name": ref.AmcName,
	})

	info := matcher.Match(ref)
	if info.MatchType == models.MatchEmptyInput {
		log.Debug("Skipping empty reference")
		return &models.ResolveResult{Match: info}, nil
	}

	if info.Matched() && info.Confidence >= s.directMinimum {
		if err := s.attachCode(ctx, info.AmcID, ref); err != nil {
			return nil, err
		}
		log.WithFields(map[string]any{
			"amc_id":     info.AmcID,
			"match_type": info.MatchType,
			"confidence": info.Confidence,
		}).Info("Resolved reference directly")
		return &models.ResolveResult{Match: info, AmcID: info.AmcID}, nil
	}

	candidate := models.StagingCandidate{
		SourceTable:     ref.Source,
		SourceAmcName:   ref.AmcName,
		NormalizedName:  normalizers.NormalizeAmcName(ref.AmcName),
		SourceAmcCode:   normalizers.NormalizeAmcCode(ref.AmcCode),
		MatchType:       info.MatchType,
		MatchConfidence: info.Confidence,
	}
	if info.Matched() {
		candidate.SuggestedAmcID = &info.AmcID
	}

	result, err := s.staging.Upsert(ctx, candidate)
	if err != nil {
		return nil, err
	}

	return &models.ResolveResult{
		Match:     info,
		Staged:    true,
		StagingID: result.Candidate.ID,
	}, nil
}

// attachCode adds the reference's source code to the matched master row.
// References without a code (AMFI) only confirm the match.
func (s *Service) attachCode(ctx context.Context, amcID string, ref models.RawAmcReference) error {
	code := normalizers.NormalizeAmcCode(ref.AmcCode)
	if code == "" || ref.Source == models.SourceAmfi {
		return nil
	}

	_, added, err := s.masters.AttachSourceCode(ctx, amcID, ref.Source, code)
	if err != nil {
		return err
	}
	if added && s.emitter != nil {
		if err := s.emitter.EmitAmcCodeAttached(ctx, amcID, ref.Source, code); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_id": amcID}).Warn("Failed to emit code attached event")
		}
	}
	return nil
}

// ReviewStaging approves or rejects a single staged candidate. Approval with
// an AmcID applies the candidate's code to that master row.
func (s *Service) ReviewStaging(ctx context.Context, id string, req models.ReviewStagingRequest) (*models.StagingCandidate, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.ReviewStaging")
	defer span.End()

	var amcID *string
	if req.AmcID != "" {
		if _, err := s.masters.Get(ctx, req.AmcID); err != nil {
			return nil, err
		}
		amcID = &req.AmcID
	}
	var notes *string
	if req.Notes != "" {
		notes = &req.Notes
	}

	// Approval needs a target before the row flips out of PENDING; a failed
	// check afterwards would strand the row APPROVED with no bound AMC.
	if req.Status == models.StagingApproved && amcID == nil {
		existing, err := s.staging.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing.SuggestedAmcID == nil {
			return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "approval of %s requires a target amc_id", id)
		}
	}

	candidate, err := s.staging.UpdateStatus(ctx, id, req.Status, amcID, req.ReviewedBy, notes)
	if err != nil {
		return nil, err
	}

	if req.Status == models.StagingApproved {
		if err := s.applyApproved(ctx, candidate); err != nil {
			return nil, err
		}
	}

	if s.emitter != nil {
		if err := s.emitter.EmitStagingReviewed(ctx, candidate); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"staging_id": candidate.ID}).Warn("Failed to emit staging review event")
		}
	}
	return candidate, nil
}

// BulkApprove approves every pending candidate at or above the threshold and
// applies their codes to the master.
func (s *Service) BulkApprove(ctx context.Context, threshold float64) (*models.BulkApproveResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.BulkApprove")
	defer span.End()

	approved, err := s.staging.BulkApprove(ctx, threshold, SystemReviewer)
	if err != nil {
		return nil, err
	}

	if err := s.ApplyApproved(ctx); err != nil {
		return nil, err
	}

	return &models.BulkApproveResponse{Approved: approved, Threshold: threshold}, nil
}

// ApplyApproved folds every approved candidate's source code into its
// suggested master row. Code-set merging is idempotent, so re-applying
// already settled candidates is harmless.
func (s *Service) ApplyApproved(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.ApplyApproved")
	defer span.End()

	candidates, err := s.staging.ListApproved(ctx)
	if err != nil {
		return err
	}

	for _, candidate := range candidates {
		if candidate.SuggestedAmcID == nil {
			continue
		}
		if err := s.applyApproved(ctx, &candidate); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applyApproved(ctx context.Context, candidate *models.StagingCandidate) error {
	if candidate.SuggestedAmcID == nil || candidate.SourceAmcCode == "" {
		return nil
	}
	return s.attachCode(ctx, *candidate.SuggestedAmcID, models.RawAmcReference{
		Source:  candidate.SourceTable,
		AmcCode: candidate.SourceAmcCode,
	})
}

// PromoteNewAmcs turns pending NO_MATCH candidates into new master rows with
// generated codes. Runs as a single serialized batch; the code generator is
// seeded from the codes already assigned, and duplicate normalized names
// within the batch fold into one new AMC.
func (s *Service) PromoteNewAmcs(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.PromoteNewAmcs")
	defer span.End()

	pending, err := s.staging.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	codes, err := s.masters.ListCodes(ctx)
	if err != nil {
		return 0, err
	}
	gen := codegen.NewGenerator(codes)

	promoted := 0
	created := make(map[string]string) // normalized name -> amc_id within this batch
	for _, candidate := range pending {
		if candidate.MatchType != models.MatchNone || candidate.NormalizedName == "" {
			continue
		}

		amcID, ok := created[candidate.NormalizedName]
		if !ok {
			// The name may already exist from an earlier batch.
			existing, err := s.masters.GetByShortName(ctx, candidate.NormalizedName)
			if err != nil {
				return promoted, err
			}
			if existing != nil {
				amcID = existing.AmcID
			} else {
				master := models.AmcMaster{
					AmcID:        uuid.New().String(),
					AmcCode:      gen.Next(candidate.NormalizedName),
					AmcShortName: candidate.NormalizedName,
					AmcFullName:  candidate.SourceAmcName,
				}
				createdMaster, isNew, err := s.masters.Create(ctx, master)
				if err != nil {
					return promoted, err
				}
				amcID = createdMaster.AmcID
				if isNew {
					promoted++
					if s.emitter != nil {
						if err := s.emitter.EmitAmcCreated(ctx, createdMaster); err != nil {
							s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_id": amcID}).Warn("Failed to emit amc created event")
						}
					}
				}
			}
			created[candidate.NormalizedName] = amcID
		}

		if err := s.attachCode(ctx, amcID, models.RawAmcReference{
			Source:  candidate.SourceTable,
			AmcCode: candidate.SourceAmcCode,
		}); err != nil {
			return promoted, err
		}

		if _, err := s.staging.UpdateStatus(ctx, candidate.ID, models.StagingApproved, &amcID, SystemReviewer, nil); err != nil {
			return promoted, err
		}
	}

	if promoted > 0 {
		s.logger.WithContext(ctx).WithFields(map[string]any{"count": promoted}).Info("Promoted new AMCs from staging")
	}
	return promoted, nil
}

// AttachCodeByTarget attaches one source code to a master row addressed by
// id or by name.
func (s *Service) AttachCodeByTarget(ctx context.Context, req models.AttachCodeRequest) (*models.AmcMaster, error) {
	ctx, span := tracing.StartSpan(ctx, "resolver.Service.AttachCodeByTarget")
	defer span.End()

	source, ok := models.ParseSource(req.Source)
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown source %q", req.Source)
	}

	amcID := req.AmcID
	if amcID == "" {
		if req.AmcName == "" {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "amc_id or amc_name is required")
		}
		master, err := s.masters.GetByShortName(ctx, normalizers.NormalizeAmcName(req.AmcName))
		if err != nil {
			return nil, err
		}
		if master == nil {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "amc named %q not found", req.AmcName)
		}
		amcID = master.AmcID
	}

	master, added, err := s.masters.AttachSourceCode(ctx, amcID, source, normalizers.NormalizeAmcCode(req.AmcCode))
	if err != nil {
		return nil, err
	}
	if added && s.emitter != nil {
		if err := s.emitter.EmitAmcCodeAttached(ctx, amcID, source, normalizers.NormalizeAmcCode(req.AmcCode)); err != nil {
			s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"amc_id": amcID}).Warn("Failed to emit code attached event")
		}
	}
	return master, nil
}
