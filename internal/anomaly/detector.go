package anomaly

import (
	"fmt"
)

// Detector flags consumption that departs sharply from a contract's history
type Detector struct {
	spikeThreshold            float64
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            spikeThreshold,
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// DetectUsageSpike checks a period's usage against previously synced usages
// of the same contract and utility.
func (d *Detector) DetectUsageSpike(usage float64, history []float64) (bool, string) {
	if usage < 0 {
		return true, "negative usage"
	}

	if len(history) < d.minDataPointsForDetection {
		return false, ""
	}

	sum := 0.0
	for _, v := range history {
		sum += v
	}
	average := sum / float64(len(history))

	if average > 0 && usage > d.spikeThreshold*average {
		return true, fmt.Sprintf("usage spike: %.2f exceeds %.1fx rolling average %.2f",
			usage, d.spikeThreshold, average)
	}

	return false, ""
}
