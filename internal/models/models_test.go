package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParseTime(t *testing.T, s string) time.Time {
	parsed, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return parsed
}

func TestJSONValueAndScan(t *testing.T) {
	original := JSON{
		"name":   "MyToken",
		"supply": 42.5,
		"nested": map[string]interface{}{"symbol": "MTK"},
	}

	value, err := original.Value()
	require.NoError(t, err)
	require.NotNil(t, value)

	var scanned JSON
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, "MyToken", scanned["name"])
	assert.Equal(t, 42.5, scanned["supply"])
	assert.Equal(t, map[string]interface{}{"symbol": "MTK"}, scanned["nested"])
}

func TestJSONNilHandling(t *testing.T) {
	var j JSON
	value, err := j.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	var scanned JSON
	require.NoError(t, scanned.Scan(nil))
	assert.Nil(t, scanned)

	require.NoError(t, scanned.Scan([]byte{}))
	assert.Nil(t, scanned)
}

func TestJSONScanString(t *testing.T) {
	var scanned JSON
	require.NoError(t, scanned.Scan(`{"key":"value"}`))
	assert.Equal(t, "value", scanned["key"])
}

func TestJSONScanRejectsUnsupportedTypes(t *testing.T) {
	var scanned JSON
	assert.Error(t, scanned.Scan(123))
	assert.Error(t, scanned.Scan([]byte(`{broken`)))
}

func TestJSONArrayValueAndScan(t *testing.T) {
	original := JSONArray{"MyToken", "MTK", float64(1000000)}

	value, err := original.Value()
	require.NoError(t, err)

	var scanned JSONArray
	require.NoError(t, scanned.Scan(value))
	assert.Equal(t, original, scanned)
}

func TestJSONArrayNilHandling(t *testing.T) {
	var j JSONArray
	value, err := j.Value()
	require.NoError(t, err)
	assert.Nil(t, value)

	var scanned JSONArray
	require.NoError(t, scanned.Scan(""))
	assert.Nil(t, scanned)
}

func TestDeploymentStatusTerminal(t *testing.T) {
	assert.False(t, DeploymentStatusPending.Terminal())
	assert.False(t, DeploymentStatusProcessing.Terminal())
	assert.True(t, DeploymentStatusSuccess.Terminal())
	assert.True(t, DeploymentStatusFailed.Terminal())
}

func TestMetricDay(t *testing.T) {
	day := MetricDay(mustParseTime(t, "2026-08-29T23:30:00-03:00"))
	// The day key is always derived in UTC.
	assert.Equal(t, "2026-08-30", day)
}
