package evaluation

import (
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ClassMetrics are the detection-quality metrics of one class.
type ClassMetrics struct {
	// Class is the class id.
	Class int `json:"class" yaml:"class"`
	// Precision with every detection of the class accepted.
	Precision float64 `json:"precision" yaml:"precision"`
	// Recall with every detection of the class accepted.
	Recall float64 `json:"recall" yaml:"recall"`
	// AP is the area under the corrected precision-recall curve.
	AP float64 `json:"ap" yaml:"ap"`
	// F1 is the harmonic mean of Precision and Recall.
	F1 float64 `json:"f1" yaml:"f1"`
	// Predictions is the number of detections predicted as the class.
	Predictions int `json:"predictions" yaml:"predictions"`
	// GroundTruth is the number of ground-truth boxes of the class.
	GroundTruth int `json:"ground_truth" yaml:"ground_truth"`
}

// ComputeAP scores every class that has at least one prediction.
//
// Records may come from any number of images and batches in any order; they are ranked
// by descending confidence (stable) before per-class curves are built. Classes that only
// appear in labels are left out rather than reported with AP 0.
//
// Arguments:
//   - records: Every match record of the dataset.
//   - labels: The class id of every ground-truth box of the dataset, matched or not.
//
// Returns:
//   - []ClassMetrics: One entry per predicted class, ordered by class id. Nil when records
//     is empty.
func ComputeAP(records []MatchRecord, labels []int) []ClassMetrics {
	return ComputeAPParallel(records, labels, 1)
}

// ComputeAPParallel is ComputeAP with up to workers classes scored concurrently. The
// result is identical to ComputeAP.
func ComputeAPParallel(records []MatchRecord, labels []int, workers int) []ClassMetrics {
	if len(records) == 0 {
		return nil
	}

	ranked := rankByConfidence(records)
	classes := predictedClasses(ranked)
	nGT := make(map[int]int)
	for _, l := range labels {
		nGT[l]++
	}

	out := make([]ClassMetrics, len(classes))
	if workers <= 1 {
		for i, c := range classes {
			out[i] = scoreClass(ranked, c, nGT[c])
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, c := range classes {
		g.Go(func() error {
			out[i] = scoreClass(ranked, c, nGT[c])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// MeanAP is the arithmetic mean of AP over the given classes, 0 when there are none.
func MeanAP(classes []ClassMetrics) float64 {
	if len(classes) == 0 {
		return 0
	}
	aps := make([]float64, len(classes))
	for i, c := range classes {
		aps[i] = c.AP
	}
	return stat.Mean(aps, nil)
}

// rankByConfidence orders records by descending confidence only. Equal confidences keep
// their arrival order, so with ties the curve, and therefore AP, follows batch order; final
// precision and recall do not.
func rankByConfidence(records []MatchRecord) []MatchRecord {
	ranked := make([]MatchRecord, len(records))
	copy(ranked, records)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

func predictedClasses(records []MatchRecord) []int {
	seen := make(map[int]struct{})
	var classes []int
	for _, r := range records {
		if _, ok := seen[r.Class]; ok {
			continue
		}
		seen[r.Class] = struct{}{}
		classes = append(classes, r.Class)
	}
	sort.Ints(classes)
	return classes
}

// scoreClass builds the precision-recall curve of one class from confidence-ranked records.
func scoreClass(ranked []MatchRecord, class, nGT int) ClassMetrics {
	var tp, fp []float64
	for _, r := range ranked {
		if r.Class != class {
			continue
		}
		if r.TruePositive {
			tp, fp = append(tp, 1), append(fp, 0)
		} else {
			tp, fp = append(tp, 0), append(fp, 1)
		}
	}

	m := ClassMetrics{Class: class, Predictions: len(tp), GroundTruth: nGT}
	if len(tp) == 0 {
		return m
	}

	floats.CumSum(tp, tp)
	floats.CumSum(fp, fp)

	recall := make([]float64, len(tp))
	precision := make([]float64, len(tp))
	for i := range tp {
		// Recall stays 0 when the class has no ground truth.
		if nGT > 0 {
			recall[i] = tp[i] / float64(nGT)
		}
		precision[i] = tp[i] / (tp[i] + fp[i])
	}

	last := len(tp) - 1
	m.Precision = precision[last]
	m.Recall = recall[last]
	if nGT > 0 {
		m.AP = areaUnderCurve(recall, precision)
	}
	m.F1 = f1(m.Precision, m.Recall)
	return m
}

// areaUnderCurve integrates the monotonic precision envelope over recall, with sentinel
// points (0, 1) and (1, 0) at either end.
func areaUnderCurve(recall, precision []float64) float64 {
	n := len(recall)
	mrec := make([]float64, 0, n+2)
	mrec = append(mrec, 0)
	mrec = append(mrec, recall...)
	mrec = append(mrec, 1)

	mpre := make([]float64, 0, n+2)
	mpre = append(mpre, 1)
	mpre = append(mpre, precision...)
	mpre = append(mpre, 0)

	for i := len(mpre) - 1; i > 0; i-- {
		mpre[i-1] = max(mpre[i-1], mpre[i])
	}

	var ap float64
	for i := 1; i < len(mrec); i++ {
		if d := mrec[i] - mrec[i-1]; d > 0 {
			ap += d * mpre[i]
		}
	}
	return ap
}

func f1(precision, recall float64) float64 {
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}
