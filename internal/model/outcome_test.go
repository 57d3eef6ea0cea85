package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTarget = Target{PlateNumber: "30E43807", VehicleClass: VehicleClassCar}

func TestSucceededNormalizesNilRecords(t *testing.T) {
	t.Parallel()

	o := Succeeded(testTarget, nil)
	assert.True(t, o.Success)
	assert.Empty(t, o.Error)
	require.NotNil(t, o.Records)
	assert.Empty(t, o.Records)
	assert.Equal(t, testTarget, o.Target)

	b, err := json.Marshal(o)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"records":[]`)
}

func TestFailedHasNoRecords(t *testing.T) {
	t.Parallel()

	o := Failed(testTarget, errors.New("navigate: timeout 30000ms exceeded"))
	assert.False(t, o.Success)
	assert.Empty(t, o.Records)
	assert.Equal(t, "navigate: timeout 30000ms exceeded", o.Error)

	o = Failed(testTarget, nil)
	assert.Equal(t, "unknown error", o.Error)
}

func TestFromCacheClones(t *testing.T) {
	t.Parallel()

	cached := []ViolationRecord{{PlateNumber: "30E-438.07", Status: "Chưa xử phạt"}}
	o := FromCache(testTarget, cached)
	require.Len(t, o.Records, 1)
	assert.True(t, o.Cached)
	assert.True(t, o.Success)

	o.Records[0].Status = "mutated"
	assert.Equal(t, "Chưa xử phạt", cached[0].Status)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	outcomes := []LookupOutcome{
		Succeeded(testTarget, nil),
		Failed(testTarget, errors.New("boom")),
		Succeeded(testTarget, nil),
	}
	ok, failed := Summary(outcomes)
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
}

func TestFieldString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "", Absent().String())
	assert.Equal(t, "x", Found("x").String())
	assert.True(t, Found("").Present)
}

func TestPhoneOmittedWhenEmpty(t *testing.T) {
	t.Parallel()

	b, err := json.Marshal(ViolationRecord{})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "phone")

	b, err = json.Marshal(ViolationRecord{ProcessingUnit: ProcessingUnit{Phone: "02437683373"}})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"phone":"02437683373"`)
}
