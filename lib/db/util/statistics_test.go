package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
	assert.Equal(t, 5.0, s.Mean)
	assert.InDelta(t, 2.0, s.StdDeviation, 1e-9)

	assert.Equal(t, Stats{}, NewStats(nil))
}

func TestDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	assert.InDelta(t, 1.0, even.DistributionQuality, 1e-9)

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	assert.Less(t, skewed.DistributionQuality, even.DistributionQuality)
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	assert.Equal(t, 0, h.MedianEstimate())

	for i := 0; i < 90; i++ {
		h.AddSample(400)
	}
	for i := 0; i < 10; i++ {
		h.AddSample(3)
	}

	assert.Equal(t, int64(100), h.GetCount())
	assert.Equal(t, 360, h.AverageSize())
	assert.Equal(t, 350, h.MedianEstimate())
	assert.Equal(t, 3, h.GetPercentileEstimate(5))
	assert.Equal(t, 0, h.GetPercentileEstimate(101))

	h.Reset()
	assert.Equal(t, int64(0), h.GetCount())
}
