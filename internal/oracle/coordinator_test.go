package oracle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"proptoken/internal/oracle/mocks"
	"proptoken/internal/oracle/models"
	"proptoken/internal/oracle/providers/activity"
	"proptoken/internal/oracle/providers/registry"
	"proptoken/internal/oracle/providers/satellite"
	id "proptoken/pkg/domain"
	"proptoken/pkg/requestcontext"
	"proptoken/pkg/testutil"
)

func newCoordinator(satConfidence float64, opts ...Option) *Coordinator {
	return NewCoordinator(
		satellite.New(satellite.WithConfidence(satConfidence)),
		registry.New(),
		activity.New(),
		opts...,
	)
}

func TestCoordinator_Verify(t *testing.T) {
	verifiedAt := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), verifiedAt)
	submissionID := id.NewSubmissionID()

	testutil.Given(t, "a claim with only coordinates declared", func(t *testing.T) {
		claim := models.Claim{
			SubmissionID: submissionID,
			Coordinates:  &models.Coordinates{Lat: 28.4949, Lng: 77.0887},
		}

		testutil.When(t, "default provider confidences are used", func(t *testing.T) {
			outcome, err := newCoordinator(satellite.DefaultConfidence).Verify(ctx, claim)
			require.NoError(t, err)

			testutil.Then(t, "existence is the mean of satellite and activity", func(t *testing.T) {
				assert.InDelta(t, 0.85, outcome.Existence.Score, 1e-9)
				require.Len(t, outcome.Existence.Evidences, 2)
				assert.Equal(t, models.SourceSatellite, outcome.Existence.Evidences[0].Source)
				assert.Equal(t, models.SourceActivity, outcome.Existence.Evidences[1].Source)
			})

			testutil.Then(t, "ownership is the registry confidence alone", func(t *testing.T) {
				assert.InDelta(t, 0.88, outcome.Ownership.Score, 1e-9)
				assert.Equal(t, "REG-GGM-12345", outcome.Ownership.Evidences[0].RawData["registry_id"])
			})

			testutil.Then(t, "activity is a raw passthrough of the activity evidence", func(t *testing.T) {
				assert.Equal(t, models.CategoryActivity, outcome.Activity.Category)
				assert.InDelta(t, 0.78, outcome.Activity.Score, 1e-9)
				assert.Equal(t, outcome.Existence.Evidences[1], outcome.Activity.Evidences[0])
			})

			testutil.Then(t, "the outcome is stamped and keyed", func(t *testing.T) {
				assert.Equal(t, submissionID, outcome.SubmissionID)
				assert.Equal(t, verifiedAt, outcome.VerifiedAt)
				sat, ok := outcome.Evidence(models.SourceSatellite)
				require.True(t, ok)
				assert.Contains(t, sat.ImageURL, "ll=77.088700,28.494900")
			})
		})

		testutil.When(t, "satellite confidence is raised", func(t *testing.T) {
			outcome, err := newCoordinator(0.95).Verify(ctx, claim)
			require.NoError(t, err)
			assert.InDelta(t, 0.865, outcome.Existence.Score, 1e-9)

			outcome, err = newCoordinator(1.0).Verify(ctx, claim)
			require.NoError(t, err)
			assert.InDelta(t, 0.89, outcome.Existence.Score, 1e-9)
		})
	})
}

func TestCoordinator_AllOrNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	sat := mocks.NewMockSatelliteProvider(ctrl)
	reg := mocks.NewMockRegistryProvider(ctrl)
	act := mocks.NewMockActivityProvider(ctrl)

	outage := errors.New("registry unreachable")
	sat.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(&models.Evidence{Source: models.SourceSatellite, Confidence: 0.92}, nil).AnyTimes()
	act.EXPECT().Verify(gomock.Any(), gomock.Any()).
		Return(&models.Evidence{Source: models.SourceActivity, Confidence: 0.78}, nil).AnyTimes()
	reg.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil, outage)

	outcome, err := NewCoordinator(sat, reg, act).Verify(context.Background(), models.Claim{SubmissionID: id.NewSubmissionID()})

	require.Error(t, err)
	assert.Nil(t, outcome)
	assert.ErrorIs(t, err, outage)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ProbeRegistry, pe.Source)
	assert.Equal(t, ErrorProviderOutage, pe.Category)
	assert.Equal(t, KindProviderError, pe.Kind())
}

func TestCoordinator_ProbeTimeout(t *testing.T) {
	c := NewCoordinator(
		satellite.New(satellite.WithLatency(time.Second)),
		registry.New(),
		activity.New(),
		WithProbeTimeout(20*time.Millisecond),
	)

	outcome, err := c.Verify(context.Background(), models.Claim{SubmissionID: id.NewSubmissionID()})

	require.Error(t, err)
	assert.Nil(t, outcome)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrorTimeout, pe.Category)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinator_NilEvidenceIsBadData(t *testing.T) {
	ctrl := gomock.NewController(t)
	sat := mocks.NewMockSatelliteProvider(ctrl)
	sat.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(nil, nil)

	_, err := NewCoordinator(sat, registry.New(), activity.New()).Verify(context.Background(), models.Claim{})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrorBadData, pe.Category)
}

func TestOutcome_Legacy(t *testing.T) {
	outcome, err := newCoordinator(satellite.DefaultConfidence).Verify(context.Background(), models.Claim{})
	require.NoError(t, err)

	legacy := outcome.Legacy()
	assert.Equal(t, outcome.Existence.Score, legacy.Existence.Score)
	assert.Equal(t, outcome.Ownership.Score, legacy.Ownership.Probability)
	assert.Equal(t, outcome.Activity.Score, legacy.Activity.Score)
}
