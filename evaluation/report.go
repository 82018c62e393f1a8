package evaluation

import "time"

// Outcome is the terminal state of an evaluation run.
type Outcome string

const (
	// OutcomeMeasured means at least one detection survived NMS and metrics were computed.
	OutcomeMeasured Outcome = "measured"
	// OutcomeNoDetections means no detection survived NMS anywhere in the dataset.
	OutcomeNoDetections Outcome = "no_detections"
)

// Timings captures where the time of a run went.
type Timings struct {
	Inference time.Duration `json:"inference_duration"`
	NMS       time.Duration `json:"nms_duration"`
	Matching  time.Duration `json:"matching_duration"`
	Scoring   time.Duration `json:"scoring_duration"`
	Total     time.Duration `json:"total_duration"`
}

// Report is the metric bundle of a finished run.
type Report struct {
	Outcome Outcome `json:"outcome"`
	// Classes holds one entry per predicted class, ordered by class id.
	Classes []ClassMetrics `json:"classes"`

	Batches       int `json:"batches"`
	Images        int `json:"images"`
	Annotations   int `json:"annotations"`
	Detections    int `json:"detections"`
	TruePositives int `json:"true_positives"`

	Timings Timings `json:"timings"`
}

// Measured reports whether metrics were computed.
func (r *Report) Measured() bool {
	return r.Outcome == OutcomeMeasured
}

// MeanAP is the mean AP over the evaluated classes, 0 when nothing was measured.
func (r *Report) MeanAP() float64 {
	return MeanAP(r.Classes)
}

// ClassIDs lists the evaluated classes in report order.
func (r *Report) ClassIDs() []int {
	ids := make([]int, len(r.Classes))
	for i, c := range r.Classes {
		ids[i] = c.Class
	}
	return ids
}

// Class returns the metrics of one class and whether it was evaluated.
func (r *Report) Class(id int) (ClassMetrics, bool) {
	for _, c := range r.Classes {
		if c.Class == id {
			return c, true
		}
	}
	return ClassMetrics{}, false
}
