package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRefresh(t *testing.T) {
	before := testutil.ToFloat64(Refreshes.WithLabelValues("manual", "full", "ok"))
	RecordRefresh("manual", "full", "ok")
	RecordRefresh("manual", "full", "ok")
	assert.Equal(t, before+2, testutil.ToFloat64(Refreshes.WithLabelValues("manual", "full", "ok")))
}

func TestObserveSnapshot(t *testing.T) {
	ObserveSnapshot(3, 2)
	assert.Equal(t, float64(3), testutil.ToFloat64(LiveNodes))
	assert.Equal(t, float64(2), testutil.ToFloat64(Collections))
}

func TestSetPending(t *testing.T) {
	SetPending(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(RefreshPending))
	SetPending(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(RefreshPending))
}
