package workflow

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/aster/pkg/matching"
	"github.com/Ramsey-B/aster/pkg/models"
)

type fakeExtractor struct {
	refs map[models.Source][]models.RawAmcReference
}

func (f *fakeExtractor) Sources() []models.Source {
	return []models.Source{models.SourceCams, models.SourceKfin}
}

func (f *fakeExtractor) Extract(ctx context.Context, source models.Source) ([]models.RawAmcReference, error) {
	return f.refs[source], nil
}

type fakeResolver struct {
	directNames map[string]string // raw name -> amc_id
	approved    int
	promoted    int
	attached    []models.AttachCodeRequest
	failNames   map[string]bool
}

func (f *fakeResolver) Snapshot(ctx context.Context) (*matching.Matcher, error) {
	return matching.NewMatcher(nil), nil
}

func (f *fakeResolver) ResolveWithMatcher(ctx context.Context, matcher *matching.Matcher, ref models.RawAmcReference) (*models.ResolveResult, error) {
	if amcID, ok := f.directNames[ref.AmcName]; ok {
		return &models.ResolveResult{
			Match: models.MatchInfo{AmcID: amcID, MatchType: models.MatchNameExact, Confidence: 0.95},
			AmcID: amcID,
		}, nil
	}
	return &models.ResolveResult{
		Match:     models.MatchInfo{MatchType: models.MatchNone},
		Staged:    true,
		StagingID: "staged-" + ref.AmcName,
	}, nil
}

func (f *fakeResolver) BulkApprove(ctx context.Context, threshold float64) (*models.BulkApproveResponse, error) {
	return &models.BulkApproveResponse{Approved: f.approved, Threshold: threshold}, nil
}

func (f *fakeResolver) PromoteNewAmcs(ctx context.Context) (int, error) {
	return f.promoted, nil
}

func (f *fakeResolver) AttachCodeByTarget(ctx context.Context, req models.AttachCodeRequest) (*models.AmcMaster, error) {
	if f.failNames[req.AmcName] {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "amc named %q not found", req.AmcName)
	}
	f.attached = append(f.attached, req)
	return &models.AmcMaster{AmcID: "amc-1"}, nil
}

type fakeMasterReader struct {
	count    int
	coverage map[string]int
}

func (f *fakeMasterReader) Count(ctx context.Context) (int, error) {
	return f.count, nil
}

func (f *fakeMasterReader) CoverageBySource(ctx context.Context) (map[string]int, error) {
	return f.coverage, nil
}

type fakeStagingReader struct {
	pending []models.StagingCandidate
	counts  map[models.StagingStatus]int
}

func (f *fakeStagingReader) ListPending(ctx context.Context) ([]models.StagingCandidate, error) {
	return f.pending, nil
}

func (f *fakeStagingReader) CountByStatus(ctx context.Context) (map[models.StagingStatus]int, error) {
	return f.counts, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestBuilder_Build(t *testing.T) {
	extractor := &fakeExtractor{refs: map[models.Source][]models.RawAmcReference{
		models.SourceCams: {
			{Source: models.SourceCams, AmcCode: "H", AmcName: "HDFC Mutual Fund"},
			{Source: models.SourceCams, AmcCode: "Q", AmcName: "Quantum Leap"},
		},
		models.SourceKfin: {
			{Source: models.SourceKfin, AmcCode: "178", AmcName: "ICICI Prudential"},
		},
	}}
	res := &fakeResolver{
		directNames: map[string]string{
			"HDFC Mutual Fund": "amc-hdfc",
			"ICICI Prudential": "amc-icici",
		},
		approved: 3,
		promoted: 1,
	}
	b := NewBuilder(testLogger(), extractor, res, &fakeMasterReader{}, &fakeStagingReader{}, 0.85)

	summary, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Extracted)
	assert.Equal(t, 2, summary.DirectResolved)
	assert.Equal(t, 1, summary.Staged)
	assert.Equal(t, 3, summary.AutoApproved)
	assert.Equal(t, 1, summary.Promoted)
	assert.Equal(t, 2, summary.BySource["cams"])
	assert.Equal(t, 1, summary.BySource["kfin"])
}

func TestBuilder_Extract(t *testing.T) {
	extractor := &fakeExtractor{refs: map[models.Source][]models.RawAmcReference{
		models.SourceCams: {
			{Source: models.SourceCams, AmcCode: "H", AmcName: "HDFC Mutual Fund"},
			{Source: models.SourceCams, AmcCode: "Q", AmcName: "Quantum Leap"},
		},
	}}
	res := &fakeResolver{
		directNames: map[string]string{"HDFC Mutual Fund": "amc-hdfc"},
		approved:    3,
		promoted:    1,
	}
	b := NewBuilder(testLogger(), extractor, res, &fakeMasterReader{}, &fakeStagingReader{}, 0.85)

	summary, err := b.Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Extracted)
	assert.Equal(t, 1, summary.DirectResolved)
	assert.Equal(t, 1, summary.Staged)
	// Extract alone approves and promotes nothing.
	assert.Zero(t, summary.AutoApproved)
	assert.Zero(t, summary.Promoted)
}

func TestBuilder_Summary(t *testing.T) {
	b := NewBuilder(testLogger(), &fakeExtractor{}, &fakeResolver{},
		&fakeMasterReader{count: 44, coverage: map[string]int{"cams": 40, "kfin": 41, "bse": 12, "nse": 9}},
		&fakeStagingReader{counts: map[models.StagingStatus]int{
			models.StagingPending:  7,
			models.StagingApproved: 30,
		}}, 0.85)

	summary, err := b.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 44, summary.MasterCount)
	assert.Equal(t, 7, summary.PendingReview)
	assert.Equal(t, 30, summary.Approved)
	assert.Equal(t, 40, summary.Coverage["cams"])
}

func TestBuilder_ExportPending(t *testing.T) {
	suggested := "amc-icici"
	b := NewBuilder(testLogger(), &fakeExtractor{}, &fakeResolver{}, &fakeMasterReader{},
		&fakeStagingReader{pending: []models.StagingCandidate{
			{
				ID: "c1", SourceTable: models.SourceNse, SourceAmcName: "ICICI Pru",
				NormalizedName: "Icici Pru", SourceAmcCode: "ICIPRU",
				SuggestedAmcID: &suggested, MatchType: models.MatchNameFuzzyMedium,
				MatchConfidence: 0.72,
			},
			{
				ID: "c2", SourceTable: models.SourceCams, SourceAmcName: "Mystery Fund",
				NormalizedName: "Mystery Fund", SourceAmcCode: "M",
				MatchType: models.MatchNone,
			},
		}}, 0.85)

	var buf bytes.Buffer
	count, err := b.ExportPending(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(exportHeader, ","), lines[0])
	assert.Contains(t, lines[1], "c1,nse,ICICI Pru,Icici Pru,ICIPRU,amc-icici,NAME_FUZZY_MEDIUM,0.7200")
	assert.Contains(t, lines[2], "c2,cams,Mystery Fund,Mystery Fund,M,,NO_MATCH,0.0000")
}

func TestBuilder_BulkUpdateCodes(t *testing.T) {
	res := &fakeResolver{failNames: map[string]bool{"No Such Fund": true}}
	b := NewBuilder(testLogger(), &fakeExtractor{}, res, &fakeMasterReader{}, &fakeStagingReader{}, 0.85)

	csvData := strings.Join([]string{
		"amc_name,amc_code",
		"HDFC,HDFCMF",
		"No Such Fund,XXX",
		"", // blank line is skipped by the csv reader
		"ICICI Prudential,ICIPRU",
		"MissingCode",
	}, "\n")

	resp, err := b.BulkUpdateCodes(context.Background(), "bse", strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Success)
	require.Len(t, resp.Errors, 2)
	assert.Equal(t, "bse", res.attached[0].Source)
	assert.Equal(t, "HDFC", res.attached[0].AmcName)
	assert.Equal(t, "ICIPRU", res.attached[1].AmcCode)

	t.Run("unknown source rejected", func(t *testing.T) {
		_, err := b.BulkUpdateCodes(context.Background(), "sebi", strings.NewReader("a,b"))
		require.Error(t, err)
	})
}
