package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/bigrise/internal/common"
)

// stubRunner replaces the runner's collectors and matcher with counters so
// the orchestration can be exercised without network or filesystem work.
func stubRunner(industryErr, etfErr, newsErr error) (*Runner, *int32, *int32) {
	var collected, matched int32

	r := NewRunner(common.NewDefaultConfig(), arbor.NewLogger())
	r.collectIndustry = func(_ context.Context, _ common.RunDate) error {
		atomic.AddInt32(&collected, 1)
		return industryErr
	}
	r.collectETF = func(_ context.Context, _ common.RunDate) error {
		atomic.AddInt32(&collected, 1)
		return etfErr
	}
	r.collectNews = func(_ context.Context, _ common.RunDate) error {
		atomic.AddInt32(&collected, 1)
		return newsErr
	}
	r.runMatch = func(_ common.RunDate) error {
		atomic.AddInt32(&matched, 1)
		return nil
	}
	return r, &collected, &matched
}

func TestRunJob_AllRunsMatcherAfterCollectors(t *testing.T) {
	r, collected, matched := stubRunner(nil, nil, nil)
	date := common.RunDate("20260825")

	require.NoError(t, r.RunJob(context.Background(), JobAll, date, date))
	assert.Equal(t, int32(3), atomic.LoadInt32(collected))
	assert.Equal(t, int32(1), atomic.LoadInt32(matched))
}

func TestRunJob_CollectorFailureSkipsMatcher(t *testing.T) {
	collectErr := errors.New("portal login rejected")
	r, _, matched := stubRunner(collectErr, nil, nil)
	date := common.RunDate("20260825")

	err := r.RunJob(context.Background(), JobAll, date, date)

	require.Error(t, err)
	assert.ErrorIs(t, err, collectErr)
	assert.Contains(t, err.Error(), "industry collector")
	assert.Equal(t, int32(0), atomic.LoadInt32(matched), "matcher must not run on partial input")
}

func TestRunJob_SingleCollectorFailurePropagates(t *testing.T) {
	collectErr := errors.New("finder page unreachable")
	r, _, matched := stubRunner(nil, collectErr, nil)
	date := common.RunDate("20260825")

	err := r.RunJob(context.Background(), JobETF, date, date)

	require.Error(t, err)
	assert.ErrorIs(t, err, collectErr)
	assert.Equal(t, int32(0), atomic.LoadInt32(matched))
}

func TestRunJob_NewsUsesNewsDate(t *testing.T) {
	var gotDate common.RunDate
	r, _, _ := stubRunner(nil, nil, nil)
	r.collectNews = func(_ context.Context, date common.RunDate) error {
		gotDate = date
		return nil
	}

	require.NoError(t, r.RunJob(context.Background(), JobNews, common.RunDate("20260825"), common.RunDate("20260824")))
	assert.Equal(t, common.RunDate("20260824"), gotDate)
}

func TestRunJob_UnknownJob(t *testing.T) {
	r, _, _ := stubRunner(nil, nil, nil)

	err := r.RunJob(context.Background(), "rebalance", common.Today(), common.Today())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown job")
}
