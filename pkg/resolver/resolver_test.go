package resolver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/internal/repositories/amcstaging"
	"github.com/Ramsey-B/aster/pkg/models"
)

type fakeMasterStore struct {
	masters map[string]*models.AmcMaster
}

func newFakeMasterStore(masters ...models.AmcMaster) *fakeMasterStore {
	s := &fakeMasterStore{masters: make(map[string]*models.AmcMaster)}
	for i := range masters {
		m := masters[i]
		s.masters[m.AmcID] = &m
	}
	return s
}

func (s *fakeMasterStore) ListAll(ctx context.Context) ([]models.AmcMaster, error) {
	out := make([]models.AmcMaster, 0, len(s.masters))
	for _, m := range s.masters {
		out = append(out, *m)
	}
	return out, nil
}

func (s *fakeMasterStore) Get(ctx context.Context, amcID string) (*models.AmcMaster, error) {
	m, ok := s.masters[amcID]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "amc %s not found", amcID)
	}
	return m, nil
}

func (s *fakeMasterStore) GetByShortName(ctx context.Context, shortName string) (*models.AmcMaster, error) {
	for _, m := range s.masters {
		if m.AmcShortName == shortName {
			return m, nil
		}
	}
	return nil, nil
}

func (s *fakeMasterStore) Create(ctx context.Context, master models.AmcMaster) (*models.AmcMaster, bool, error) {
	for _, m := range s.masters {
		if m.AmcCode == master.AmcCode {
			return m, false, nil
		}
	}
	master.CreatedAt = time.Now().UTC()
	s.masters[master.AmcID] = &master
	return &master, true, nil
}

func (s *fakeMasterStore) AttachSourceCode(ctx context.Context, amcID string, source models.Source, code string) (*models.AmcMaster, bool, error) {
	m, ok := s.masters[amcID]
	if !ok {
		return nil, false, httperror.NewHTTPErrorf(http.StatusNotFound, "amc %s not found", amcID)
	}
	var added bool
	switch source {
	case models.SourceCams:
		m.CamsAmcCodes, added = mergeSet(m.CamsAmcCodes, code)
	case models.SourceKfin:
		m.KfinAmcCodes, added = mergeSet(m.KfinAmcCodes, code)
	case models.SourceBse:
		m.BseAmcCodes, added = mergeSet(m.BseAmcCodes, code)
	case models.SourceNse:
		m.NseAmcCodes, added = mergeSet(m.NseAmcCodes, code)
	default:
		return nil, false, httperror.NewHTTPErrorf(http.StatusBadRequest, "source %s does not carry amc codes", source)
	}
	return m, added, nil
}

func mergeSet(column, code string) (string, bool) {
	return models.MergeCodeSet(column, code)
}

func (s *fakeMasterStore) ListCodes(ctx context.Context) ([]string, error) {
	out := make([]string, 0, len(s.masters))
	for _, m := range s.masters {
		out = append(out, m.AmcCode)
	}
	return out, nil
}

type fakeStagingStore struct {
	candidates map[string]*models.StagingCandidate
}

func newFakeStagingStore() *fakeStagingStore {
	return &fakeStagingStore{candidates: make(map[string]*models.StagingCandidate)}
}

func (s *fakeStagingStore) Upsert(ctx context.Context, candidate models.StagingCandidate) (*amcstaging.UpsertResult, error) {
	for _, c := range s.candidates {
		if c.SourceTable == candidate.SourceTable &&
			c.NormalizedName == candidate.NormalizedName &&
			c.SourceAmcCode == candidate.SourceAmcCode {
			return &amcstaging.UpsertResult{Candidate: c, IsNew: false}, nil
		}
	}
	candidate.ID = uuid.New().String()
	candidate.Status = models.StagingPending
	candidate.CreatedAt = time.Now().UTC()
	s.candidates[candidate.ID] = &candidate
	return &amcstaging.UpsertResult{Candidate: &candidate, IsNew: true}, nil
}

func (s *fakeStagingStore) Get(ctx context.Context, id string) (*models.StagingCandidate, error) {
	c, ok := s.candidates[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "staging candidate %s not found", id)
	}
	return c, nil
}

func (s *fakeStagingStore) UpdateStatus(ctx context.Context, id string, status models.StagingStatus, amcID *string, reviewedBy string, notes *string) (*models.StagingCandidate, error) {
	c, ok := s.candidates[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "staging candidate %s not found", id)
	}
	if c.Status != models.StagingPending {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "staging candidate %s already %s", id, c.Status)
	}
	now := time.Now().UTC()
	c.Status = status
	c.ReviewedBy = &reviewedBy
	c.ReviewedAt = &now
	if amcID != nil {
		c.SuggestedAmcID = amcID
	}
	if notes != nil {
		c.Notes = notes
	}
	return c, nil
}

func (s *fakeStagingStore) BulkApprove(ctx context.Context, threshold float64, reviewedBy string) (int, error) {
	count := 0
	now := time.Now().UTC()
	for _, c := range s.candidates {
		if c.Status == models.StagingPending && c.SuggestedAmcID != nil && c.MatchConfidence >= threshold {
			c.Status = models.StagingApproved
			c.ReviewedBy = &reviewedBy
			c.ReviewedAt = &now
			count++
		}
	}
	return count, nil
}

func (s *fakeStagingStore) ListPending(ctx context.Context) ([]models.StagingCandidate, error) {
	return s.listByStatus(models.StagingPending), nil
}

func (s *fakeStagingStore) ListApproved(ctx context.Context) ([]models.StagingCandidate, error) {
	return s.listByStatus(models.StagingApproved), nil
}

func (s *fakeStagingStore) listByStatus(status models.StagingStatus) []models.StagingCandidate {
	var out []models.StagingCandidate
	for _, c := range s.candidates {
		if c.Status == status {
			out = append(out, *c)
		}
	}
	return out
}

type fakeEmitter struct {
	created  int
	attached int
	reviewed int
}

func (e *fakeEmitter) EmitAmcCreated(ctx context.Context, master *models.AmcMaster) error {
	e.created++
	return nil
}

func (e *fakeEmitter) EmitAmcCodeAttached(ctx context.Context, amcID string, source models.Source, code string) error {
	e.attached++
	return nil
}

func (e *fakeEmitter) EmitStagingReviewed(ctx context.Context, candidate *models.StagingCandidate) error {
	e.reviewed++
	return nil
}

func newTestService() (*Service, *fakeMasterStore, *fakeStagingStore, *fakeEmitter) {
	masters := newFakeMasterStore(
		models.AmcMaster{
			AmcID:        "amc-hdfc",
			AmcCode:      "HDF001",
			AmcShortName: "Hdfc",
			AmcFullName:  "Hdfc Asset Management Company Limited",
			CamsAmcCodes: "H",
		},
		models.AmcMaster{
			AmcID:        "amc-icici",
			AmcCode:      "ICI001",
			AmcShortName: "Icici Prudential",
			AmcFullName:  "Icici Prudential Asset Management Company Limited",
		},
	)
	staging := newFakeStagingStore()
	emitter := &fakeEmitter{}
	svc := NewService(ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}), masters, staging, emitter, 0.80)
	return svc, masters, staging, emitter
}

func TestService_Resolve_DirectByCode(t *testing.T) {
	svc, masters, staging, emitter := newTestService()

	result, err := svc.Resolve(context.Background(), models.RawAmcReference{
		Source:  models.SourceCams,
		AmcCode: "H",
		AmcName: "HDFC Mutual Fund",
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchCodeExact, result.Match.MatchType)
	assert.Equal(t, "amc-hdfc", result.AmcID)
	assert.False(t, result.Staged)
	assert.Empty(t, staging.candidates)
	// Code H was already present, so no attach event.
	assert.Equal(t, 0, emitter.attached)
	assert.Equal(t, "H", masters.masters["amc-hdfc"].CamsAmcCodes)
}

func TestService_Resolve_DirectAttachesNewCode(t *testing.T) {
	svc, masters, _, emitter := newTestService()

	result, err := svc.Resolve(context.Background(), models.RawAmcReference{
		Source:  models.SourceBse,
		AmcCode: "hdfcmf",
		AmcName: "HDFC Mutual Fund",
	})
	require.NoError(t, err)

	assert.Equal(t, models.MatchNameExact, result.Match.MatchType)
	assert.Equal(t, "amc-hdfc", result.AmcID)
	assert.Equal(t, "HDFCMF", masters.masters["amc-hdfc"].BseAmcCodes)
	assert.Equal(t, 1, emitter.attached)
}

func TestService_Resolve_LowConfidenceStages(t *testing.T) {
	svc, _, staging, _ := newTestService()

	result, err := svc.Resolve(context.Background(), models.RawAmcReference{
		Source:  models.SourceKfin,
		AmcCode: "999",
		AmcName: "Quantum Leap Ventures Private Equity Fund",
	})
	require.NoError(t, err)

	assert.True(t, result.Staged)
	assert.NotEmpty(t, result.StagingID)
	assert.Empty(t, result.AmcID)

	candidate := staging.candidates[result.StagingID]
	require.NotNil(t, candidate)
	assert.Equal(t, models.StagingPending, candidate.Status)
	assert.Equal(t, models.MatchNone, candidate.MatchType)
	assert.Equal(t, "999", candidate.SourceAmcCode)
}

func TestService_Resolve_StagingIsIdempotent(t *testing.T) {
	svc, _, staging, _ := newTestService()
	ref := models.RawAmcReference{
		Source:  models.SourceKfin,
		AmcCode: "999",
		AmcName: "Quantum Leap Ventures Private Equity Fund",
	}

	first, err := svc.Resolve(context.Background(), ref)
	require.NoError(t, err)
	second, err := svc.Resolve(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, first.StagingID, second.StagingID)
	assert.Len(t, staging.candidates, 1)
}

func TestService_Resolve_EmptyInput(t *testing.T) {
	svc, _, staging, _ := newTestService()

	result, err := svc.Resolve(context.Background(), models.RawAmcReference{Source: models.SourceAmfi})
	require.NoError(t, err)

	assert.Equal(t, models.MatchEmptyInput, result.Match.MatchType)
	assert.False(t, result.Staged)
	assert.Empty(t, staging.candidates)
}

func TestService_ReviewStaging_Approve(t *testing.T) {
	svc, masters, staging, emitter := newTestService()

	result, err := svc.Resolve(context.Background(), models.RawAmcReference{
		Source:  models.SourceNse,
		AmcCode: "ICIPRU",
		AmcName: "ICICI Pru Asset Mgmt Co Ltd",
	})
	require.NoError(t, err)
	require.True(t, result.Staged)

	reviewed, err := svc.ReviewStaging(context.Background(), result.StagingID, models.ReviewStagingRequest{
		Status:     models.StagingApproved,
		AmcID:      "amc-icici",
		ReviewedBy: "analyst",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StagingApproved, reviewed.Status)
	assert.Equal(t, "ICIPRU", masters.masters["amc-icici"].NseAmcCodes)
	assert.Equal(t, 1, emitter.reviewed)

	// A settled candidate cannot be reviewed again.
	_, err = svc.ReviewStaging(context.Background(), result.StagingID, models.ReviewStagingRequest{
		Status:     models.StagingRejected,
		ReviewedBy: "analyst",
	})
	require.Error(t, err)
	_ = staging
}

func TestService_ReviewStaging_ApproveWithoutTargetLeavesRowPending(t *testing.T) {
	svc, _, staging, _ := newTestService()

	result, err := svc.Resolve(context.Background(), models.RawAmcReference{
		Source:  models.SourceKfin,
		AmcCode: "999",
		AmcName: "Quantum Leap Ventures Private Equity Fund",
	})
	require.NoError(t, err)
	require.True(t, result.Staged)
	require.Nil(t, staging.candidates[result.StagingID].SuggestedAmcID)

	_, err = svc.ReviewStaging(context.Background(), result.StagingID, models.ReviewStagingRequest{
		Status:     models.StagingApproved,
		ReviewedBy: "analyst",
	})
	require.Error(t, err)

	// The failed approval must not settle the row; it stays reviewable.
	assert.Equal(t, models.StagingPending, staging.candidates[result.StagingID].Status)

	reviewed, err := svc.ReviewStaging(context.Background(), result.StagingID, models.ReviewStagingRequest{
		Status:     models.StagingRejected,
		ReviewedBy: "analyst",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StagingRejected, reviewed.Status)
}

func TestService_BulkApprove(t *testing.T) {
	svc, masters, staging, _ := newTestService()

	// Stage two suggestions, one above and one below the threshold.
	high := "amc-icici"
	staging.candidates["c1"] = &models.StagingCandidate{
		ID: "c1", SourceTable: models.SourceNse, SourceAmcCode: "ICIPRU",
		NormalizedName: "Icici Prudental", SuggestedAmcID: &high,
		MatchType: models.MatchNameFuzzyHigh, MatchConfidence: 0.90,
		Status: models.StagingPending,
	}
	staging.candidates["c2"] = &models.StagingCandidate{
		ID: "c2", SourceTable: models.SourceNse, SourceAmcCode: "XYZ",
		NormalizedName: "Something Else", SuggestedAmcID: &high,
		MatchType: models.MatchNameFuzzyLow, MatchConfidence: 0.55,
		Status: models.StagingPending,
	}

	resp, err := svc.BulkApprove(context.Background(), 0.85)
	require.NoError(t, err)

	assert.Equal(t, 1, resp.Approved)
	assert.Equal(t, models.StagingApproved, staging.candidates["c1"].Status)
	assert.Equal(t, models.StagingPending, staging.candidates["c2"].Status)
	assert.Equal(t, "ICIPRU", masters.masters["amc-icici"].NseAmcCodes)
}

func TestService_PromoteNewAmcs(t *testing.T) {
	svc, masters, staging, emitter := newTestService()

	staging.candidates["p1"] = &models.StagingCandidate{
		ID: "p1", SourceTable: models.SourceCams, SourceAmcCode: "QL",
		SourceAmcName: "Quantum Leap Mutual Fund", NormalizedName: "Quantum Leap",
		MatchType: models.MatchNone, Status: models.StagingPending,
	}
	staging.candidates["p2"] = &models.StagingCandidate{
		ID: "p2", SourceTable: models.SourceKfin, SourceAmcCode: "407",
		SourceAmcName: "QUANTUM LEAP MUTUAL FUND", NormalizedName: "Quantum Leap",
		MatchType: models.MatchNone, Status: models.StagingPending,
	}

	promoted, err := svc.PromoteNewAmcs(context.Background())
	require.NoError(t, err)

	// Both candidates share a normalized name, so one new AMC.
	assert.Equal(t, 1, promoted)
	assert.Equal(t, 1, emitter.created)

	master, err := masters.GetByShortName(context.Background(), "Quantum Leap")
	require.NoError(t, err)
	require.NotNil(t, master)
	assert.Equal(t, "QUA001", master.AmcCode)
	assert.Equal(t, "QL", master.CamsAmcCodes)
	assert.Equal(t, "407", master.KfinAmcCodes)
	assert.Equal(t, models.StagingApproved, staging.candidates["p1"].Status)
	assert.Equal(t, models.StagingApproved, staging.candidates["p2"].Status)
}

func TestService_AttachCodeByTarget(t *testing.T) {
	svc, masters, _, _ := newTestService()

	t.Run("by id", func(t *testing.T) {
		master, err := svc.AttachCodeByTarget(context.Background(), models.AttachCodeRequest{
			Source: "bse", AmcCode: "hdfcmf", AmcID: "amc-hdfc",
		})
		require.NoError(t, err)
		assert.Equal(t, "HDFCMF", master.BseAmcCodes)
	})

	t.Run("by name", func(t *testing.T) {
		master, err := svc.AttachCodeByTarget(context.Background(), models.AttachCodeRequest{
			Source: "nse", AmcCode: "icipru", AmcName: "ICICI Prudential Mutual Fund",
		})
		require.NoError(t, err)
		assert.Equal(t, "ICIPRU", master.NseAmcCodes)
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := svc.AttachCodeByTarget(context.Background(), models.AttachCodeRequest{
			Source: "moneymart", AmcCode: "X", AmcID: "amc-hdfc",
		})
		require.Error(t, err)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := svc.AttachCodeByTarget(context.Background(), models.AttachCodeRequest{
			Source: "bse", AmcCode: "X", AmcName: "No Such Fund House",
		})
		require.Error(t, err)
	})
	_ = masters
}
