package evaluation

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(tp bool, conf float32, class int) MatchRecord {
	return MatchRecord{TruePositive: tp, Confidence: conf, Class: class}
}

func TestComputeAP_Empty(t *testing.T) {
	assert.Nil(t, ComputeAP(nil, []int{0, 1}))
}

func TestComputeAP_Perfect(t *testing.T) {
	classes := ComputeAP([]MatchRecord{
		rec(true, 0.9, 0),
		rec(true, 0.8, 0),
		rec(true, 0.7, 0),
	}, []int{0, 0, 0})

	require.Len(t, classes, 1)
	c := classes[0]
	assert.Equal(t, 0, c.Class)
	assert.InDelta(t, 1.0, c.AP, 1e-12)
	assert.InDelta(t, 1.0, c.Precision, 1e-12)
	assert.InDelta(t, 1.0, c.Recall, 1e-12)
	assert.InDelta(t, 1.0, c.F1, 1e-12)
	assert.Equal(t, 3, c.Predictions)
	assert.Equal(t, 3, c.GroundTruth)
}

func TestComputeAP_Curve(t *testing.T) {
	// Ranked: TP, FP, TP against three ground-truth boxes.
	//   recall    = 1/3, 1/3, 2/3
	//   precision = 1,   1/2, 2/3
	// Envelope: 1, 2/3, 2/3 -> AP = 1/3*1 + 1/3*2/3 = 5/9.
	want := ClassMetrics{Class: 0, Precision: 2.0 / 3, Recall: 2.0 / 3, AP: 5.0 / 9, F1: 2.0 / 3, Predictions: 3, GroundTruth: 3}

	tests := []struct {
		name    string
		records []MatchRecord
	}{
		{
			name:    "already ranked",
			records: []MatchRecord{rec(true, 0.9, 0), rec(false, 0.8, 0), rec(true, 0.7, 0)},
		},
		{
			name:    "concatenated out of order",
			records: []MatchRecord{rec(true, 0.7, 0), rec(true, 0.9, 0), rec(false, 0.8, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes := ComputeAP(tt.records, []int{0, 0, 0})
			require.Len(t, classes, 1)
			got := classes[0]
			assert.Equal(t, want.Class, got.Class)
			assert.InDelta(t, want.AP, got.AP, 1e-9)
			assert.InDelta(t, want.Precision, got.Precision, 1e-9)
			assert.InDelta(t, want.Recall, got.Recall, 1e-9)
			assert.InDelta(t, want.F1, got.F1, 1e-9)
			assert.Equal(t, want.Predictions, got.Predictions)
		})
	}
}

func TestComputeAP_SawtoothIsFlattened(t *testing.T) {
	// FP, TP against one box: raw precision 0 then 1/2. The envelope lifts the first point
	// so AP = 1 * 1/2.
	classes := ComputeAP([]MatchRecord{rec(false, 0.9, 4), rec(true, 0.5, 4)}, []int{4})
	require.Len(t, classes, 1)
	assert.InDelta(t, 0.5, classes[0].AP, 1e-12)
	assert.InDelta(t, 0.5, classes[0].Precision, 1e-12)
	assert.InDelta(t, 1.0, classes[0].Recall, 1e-12)
}

func TestComputeAP_ClassWithoutGroundTruth(t *testing.T) {
	classes := ComputeAP([]MatchRecord{rec(false, 0.9, 0)}, []int{1})

	// Class 1 has no predictions and is left out; class 0 has no ground truth.
	require.Len(t, classes, 1)
	c := classes[0]
	assert.Equal(t, 0, c.Class)
	assert.Equal(t, 0.0, c.AP)
	assert.Equal(t, 0.0, c.Recall)
	assert.Equal(t, 0.0, c.Precision)
	assert.Equal(t, 0.0, c.F1)
	assert.Equal(t, 0, c.GroundTruth)
}

func TestComputeAP_PrecisionWithoutGroundTruth(t *testing.T) {
	// Precision is still computed normally when n_gt is 0.
	classes := ComputeAP([]MatchRecord{rec(true, 0.9, 2), rec(false, 0.8, 2)}, nil)
	require.Len(t, classes, 1)
	assert.InDelta(t, 0.5, classes[0].Precision, 1e-12)
	assert.Equal(t, 0.0, classes[0].Recall)
	assert.Equal(t, 0.0, classes[0].AP)
}

func TestComputeAP_ClassOrder(t *testing.T) {
	classes := ComputeAP([]MatchRecord{
		rec(true, 0.9, 5),
		rec(true, 0.8, 2),
		rec(false, 0.7, 9),
		rec(true, 0.6, 2),
	}, []int{2, 2, 5, 7})

	ids := make([]int, len(classes))
	for i, c := range classes {
		ids[i] = c.Class
	}
	assert.Equal(t, []int{2, 5, 9}, ids)
}

func TestComputeAPParallel_MatchesSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	var records []MatchRecord
	var labels []int
	for i := 0; i < 500; i++ {
		records = append(records, rec(rng.Intn(3) == 0, rng.Float32(), rng.Intn(12)))
	}
	for i := 0; i < 1000; i++ {
		labels = append(labels, rng.Intn(14))
	}

	sequential := ComputeAP(records, labels)
	for _, workers := range []int{2, 4, 16} {
		assert.Equal(t, sequential, ComputeAPParallel(records, labels, workers))
	}
	for _, c := range sequential {
		assert.GreaterOrEqual(t, c.AP, 0.0)
		assert.LessOrEqual(t, c.AP, 1.0)
	}
}

func TestMeanAP(t *testing.T) {
	assert.Equal(t, 0.0, MeanAP(nil))
	assert.InDelta(t, 0.5, MeanAP([]ClassMetrics{{AP: 1}, {AP: 0}}), 1e-12)
	assert.InDelta(t, 0.25, MeanAP([]ClassMetrics{{AP: 0.25}}), 1e-12)
}
