package anomaly_test

import (
	"testing"

	"github.com/septivank/rental-meter-worker/internal/anomaly"
)

const (
	testSpikeThreshold            = 3.0
	testMinDataPointsForDetection = 3
)

func TestDetectUsageSpike_NegativeUsage(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, reason := detector.DetectUsageSpike(-10, []float64{100, 105, 98})

	if !isAnomaly {
		t.Error("Expected anomaly for negative usage")
	}
	if reason != "negative usage" {
		t.Errorf("Expected reason 'negative usage', got '%s'", reason)
	}
}

func TestDetectUsageSpike_SuddenSpike(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, reason := detector.DetectUsageSpike(350, []float64{100, 105, 98, 102, 99})

	if !isAnomaly {
		t.Error("Expected anomaly for sudden spike")
	}
	if reason == "" {
		t.Error("Expected reason for spike anomaly")
	}
}

func TestDetectUsageSpike_NormalUsage(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, reason := detector.DetectUsageSpike(103, []float64{100, 105, 98, 102, 99})

	if isAnomaly {
		t.Errorf("Expected no anomaly, but got: %s", reason)
	}
}

func TestDetectUsageSpike_InsufficientHistory(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, _ := detector.DetectUsageSpike(300, []float64{100, 105})

	if isAnomaly {
		t.Error("Should not detect spike with insufficient history")
	}
}

func TestDetectUsageSpike_ZeroAverage(t *testing.T) {
	detector := anomaly.NewDetector(testSpikeThreshold, testMinDataPointsForDetection)

	isAnomaly, _ := detector.DetectUsageSpike(100, []float64{0, 0, 0})

	if isAnomaly {
		t.Error("Should not detect spike when historical average is 0")
	}
}
