// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-eval/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// ConfidenceThreshold drops candidates scoring below it before suppression.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold is the overlap at or above which a lower ranked box is suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAgnostic lets boxes of different classes suppress each other.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`
	// MaxCandidates caps the ranked candidates entering suppression. Zero means unlimited.
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates"`
	// MaxDetections caps the kept detections per image. Zero means unlimited.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
}

// Suppress turns one image's raw candidates into a sparse, confidence-ranked set of
// detections.
//
// Each candidate is scored as objectness × its best class score and labelled with that
// class. Candidates below the confidence threshold are dropped, the rest are converted to
// corner form, stably sorted by descending confidence and greedily suppressed.
//
// Arguments:
//   - raw: The image's raw candidates.
//   - config: NMS configuration.
//
// Returns:
//   - Kept detections ordered by descending confidence. Nil when nothing survives.
func Suppress(raw []RawDetection, config NMSConfig) []Result {
	candidates := make([]Result, 0, len(raw))
	for _, r := range raw {
		score, class := r.Confidence()
		// Written as a negated >= so NaN scores are rejected too.
		if class < 0 || !(score >= config.ConfidenceThreshold) {
			continue
		}
		candidates = append(candidates, Result{
			Box:   r.Box.ToCorner(),
			Score: score,
			Class: class,
		})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if config.MaxCandidates > 0 && len(candidates) > config.MaxCandidates {
		candidates = candidates[:config.MaxCandidates]
	}

	return ApplyGreedyNMS(candidates, config)
}

// SuppressBatch runs Suppress over every image of a batch.
//
// Returns:
//   - One detection slice per image, in input order. Images without survivors get nil.
func SuppressBatch(raw [][]RawDetection, config NMSConfig) [][]Result {
	out := make([][]Result, len(raw))
	for i, dets := range raw {
		out[i] = Suppress(dets, config)
	}
	return out
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// The highest ranked remaining detection is kept, then every remaining detection that
// overlaps it with IoU >= IoUThreshold is dropped. Unless ClassAgnostic is set only
// detections sharing the kept detection's class are dropped.
//
// Arguments:
//   - detections: Slice of detections sorted by descending confidence.
//   - config: NMS configuration. ConfidenceThreshold and MaxCandidates are not applied here.
//
// Returns:
//   - Filtered slice of detections.
func ApplyGreedyNMS(detections []Result, config NMSConfig) []Result {
	n := len(detections)
	if n == 0 {
		return nil
	}

	filtered := make([]Result, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := detections[i]
		filtered = append(filtered, anchor)
		used[i] = true
		if config.MaxDetections > 0 && len(filtered) == config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if !config.ClassAgnostic && detections[j].Class != anchor.Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, detections[j].Box) >= config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
