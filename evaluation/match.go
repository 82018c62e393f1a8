// Package evaluation - Scores detector output against ground truth: per-image matching,
// dataset-wide precision/recall curves and Average Precision.
package evaluation

import (
	"github.com/nvr-ai/go-eval/dataset"
	"github.com/nvr-ai/go-eval/images"
	"github.com/nvr-ai/go-eval/models/postprocess"
)

// MatchRecord is the outcome of one kept detection.
type MatchRecord struct {
	// TruePositive is set when the detection claimed a ground-truth box.
	TruePositive bool `json:"tp" yaml:"tp"`
	// Confidence of the detection.
	Confidence float32 `json:"confidence" yaml:"confidence"`
	// Class predicted by the detection.
	Class int `json:"class" yaml:"class"`
}

// Match labels one image's detections as true or false positives.
//
// Detections are visited in the order given, which must be descending confidence. Each
// detection is compared with the ground-truth boxes of its own class that no earlier
// detection has claimed; if the best IoU reaches iouThreshold the detection claims that box.
// A claimed box can never be matched again.
//
// Arguments:
//   - dets: The image's kept detections, confidence-descending.
//   - truth: The image's ground-truth boxes, in any order.
//   - iouThreshold: Minimum IoU for a hit.
//
// Returns:
//   - []MatchRecord: One record per detection, in the same order. Nil when dets is empty.
func Match(dets []postprocess.Result, truth []dataset.Annotation, iouThreshold float32) []MatchRecord {
	if len(dets) == 0 {
		return nil
	}

	records := make([]MatchRecord, len(dets))
	for i, d := range dets {
		records[i] = MatchRecord{Confidence: d.Score, Class: d.Class}
	}
	if len(truth) == 0 {
		return records
	}

	used := make([]bool, len(truth))
	claimed := 0
	for i, d := range dets {
		if claimed == len(truth) {
			break
		}

		best, bestIoU := -1, float32(0)
		for j, gt := range truth {
			if used[j] || gt.Class != d.Class {
				continue
			}
			if iou := images.CalculateIoU(d.Box, gt.Box); best < 0 || iou > bestIoU {
				best, bestIoU = j, iou
			}
		}

		if best >= 0 && bestIoU >= iouThreshold {
			used[best] = true
			claimed++
			records[i].TruePositive = true
		}
	}
	return records
}
