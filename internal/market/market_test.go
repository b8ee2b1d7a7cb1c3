package market

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamashdown/polysignal/internal/polymarket/gammaapi"
)

func decode(t *testing.T, s string) gammaapi.Market {
	t.Helper()
	var m gammaapi.Market
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func ptr[T any](v T) *T { return &v }

func TestNewSnapshot(t *testing.T) {
	listing := decode(t, `{"question":"Rain?","slug":"rain","conditionId":"0xr","endDate":"2031-01-01T00:00:00Z"}`)
	detail := decode(t, `{"outcomes":"[\"Yes\",\"No\"]","outcomePrices":"[\"0.3\",\"0.7\"]","active":true,"closed":false,"closedTime":"2030-06-01T00:00:00Z"}`)

	s := NewSnapshot(listing, &detail)
	assert.Equal(t, "0xr", s.ConditionID)
	assert.Equal(t, "Rain?", s.Question)
	assert.Equal(t, []string{"Yes", "No"}, s.Outcomes)
	assert.Equal(t, []float64{0.3, 0.7}, s.ImpliedProbabilities)
	assert.Equal(t, ptr(true), s.Active)
	assert.Equal(t, ptr(false), s.Closed)
	require.NotNil(t, s.EndTime)
	assert.True(t, s.EndTime.Equal(time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNewSnapshotWithoutDetail(t *testing.T) {
	listing := decode(t, `{"question":"Q?","conditionId":"0xq","outcomes":["A","B","C"],"outcomePrices":[20,30]}`)

	s := NewSnapshot(listing, nil)
	assert.Equal(t, []string{"A", "B", "C"}, s.Outcomes)
	assert.Equal(t, []float64{0.2, 0.3, 0}, s.ImpliedProbabilities)
	assert.Nil(t, s.Active)
	assert.Nil(t, s.Closed)
	assert.Nil(t, s.EndTime)
	assert.Len(t, s.ImpliedProbabilities, len(s.Outcomes))
}

func TestProbabilities(t *testing.T) {
	assert.Equal(t, []float64{0.1, 0.9}, Probabilities([]float64{10, 90}, 2))
	assert.Equal(t, []float64{0.5, 1.5}, Probabilities([]float64{0.5, 1.5}, 2))
	assert.Equal(t, []float64{0.4}, Probabilities([]float64{0.4, 0.6}, 1))
	assert.Empty(t, Probabilities(nil, 0))
}

func TestGate(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		snap Snapshot
		want string
	}{
		{"closed wins over everything", Snapshot{Closed: ptr(true), Active: ptr(false), EndTime: &past}, GateClosed},
		{"inactive", Snapshot{Closed: ptr(false), Active: ptr(false)}, GateInactive},
		{"inactive before expired", Snapshot{Active: ptr(false), EndTime: &past}, GateInactive},
		{"expired", Snapshot{Closed: ptr(false), Active: ptr(true), EndTime: &past}, GateExpired},
		{"open", Snapshot{Closed: ptr(false), Active: ptr(true), EndTime: &future}, ""},
		{"unknown status is eligible", Snapshot{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Gate(tt.snap, now))
		})
	}
}
