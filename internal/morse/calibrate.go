package morse

import (
	"errors"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	// MinCalibrationMarks is the fewest ON samples needed to split dots from dashes
	MinCalibrationMarks = 4
	// MinCalibrationGaps is the fewest OFF samples needed to split gap classes
	MinCalibrationGaps = 4
	// kmeansIterations bounds the 1-D clustering loop
	kmeansIterations = 50
	// wordGapStretch widens the letter window when no word gaps were recorded
	wordGapStretch = 1.4
)

var (
	// ErrNotEnoughMarks indicates the recording has too few ON intervals
	ErrNotEnoughMarks = errors.New("not enough ON intervals to calibrate")
	// ErrNotEnoughGaps indicates the recording has too few OFF intervals
	ErrNotEnoughGaps = errors.New("not enough OFF intervals to calibrate")
)

// Cluster summarises one group of similar durations in milliseconds.
type Cluster struct {
	Mean   float64
	StdDev float64
	Count  int
}

// Calibration is the result of analysing a recorded duration log.
type Calibration struct {
	Dots       Cluster
	Dashes     Cluster
	IntraGaps  Cluster
	LetterGaps Cluster
	// WordGaps is empty when the recording had no distinct word gaps
	WordGaps Cluster
	// Suggested holds base with the timing cutoffs replaced
	Suggested Thresholds
}

// SuggestThresholds derives timing cutoffs from a recording of signed
// durations (positive ON, negative OFF). It is an offline aid for tuning the
// configuration against one sender; the decoder itself never adapts.
func SuggestThresholds(log DurationLog, base Thresholds) (Calibration, error) {
	var marks, gaps []float64
	for _, d := range log {
		switch {
		case d > 0:
			marks = append(marks, float64(d))
		case d < 0:
			gaps = append(gaps, float64(-d))
		}
	}
	if len(marks) < MinCalibrationMarks {
		return Calibration{}, ErrNotEnoughMarks
	}
	if len(gaps) < MinCalibrationGaps {
		return Calibration{}, ErrNotEnoughGaps
	}

	var cal Calibration
	onClusters := kmeans1D(marks, 2)
	cal.Dots, cal.Dashes = onClusters[0], onClusters[1]

	offClusters := kmeans1D(gaps, 3)
	if !separated(offClusters[0], offClusters[1]) || !separated(offClusters[1], offClusters[2]) {
		two := kmeans1D(gaps, 2)
		cal.IntraGaps, cal.LetterGaps = two[0], two[1]
	} else {
		cal.IntraGaps, cal.LetterGaps, cal.WordGaps = offClusters[0], offClusters[1], offClusters[2]
	}

	s := base
	s.DotMax = msDuration(midpoint(cal.Dots, cal.Dashes))
	s.LetterGapMin = msDuration(midpoint(cal.IntraGaps, cal.LetterGaps))
	if cal.WordGaps.Count > 0 {
		s.WordGapMin = msDuration(midpoint(cal.LetterGaps, cal.WordGaps))
	} else {
		s.WordGapMin = msDuration(cal.LetterGaps.Mean * wordGapStretch)
	}
	s.LetterGapMax = s.WordGapMin
	if floor := 2 * s.WordGapMin; s.InactivityTimeout < floor {
		s.InactivityTimeout = floor
	}
	cal.Suggested = s
	return cal, nil
}

// kmeans1D splits values into k clusters ordered by mean. Empty clusters
// come back with Count 0.
func kmeans1D(values []float64, k int) []Cluster {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	centres := make([]float64, k)
	for i := range centres {
		p := (float64(i) + 0.5) / float64(k)
		centres[i] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}

	groups := make([][]float64, k)
	for iter := 0; iter < kmeansIterations; iter++ {
		for i := range groups {
			groups[i] = groups[i][:0]
		}
		for _, v := range sorted {
			best := 0
			for i := 1; i < k; i++ {
				if math.Abs(v-centres[i]) < math.Abs(v-centres[best]) {
					best = i
				}
			}
			groups[best] = append(groups[best], v)
		}

		moved := false
		for i, g := range groups {
			if len(g) == 0 {
				continue
			}
			if m := stat.Mean(g, nil); m != centres[i] {
				centres[i] = m
				moved = true
			}
		}
		if !moved {
			break
		}
	}

	clusters := make([]Cluster, k)
	for i, g := range groups {
		if len(g) == 0 {
			continue
		}
		c := Cluster{Mean: stat.Mean(g, nil), Count: len(g)}
		if len(g) > 1 {
			c.StdDev = stat.StdDev(g, nil)
		}
		clusters[i] = c
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		if clusters[i].Count == 0 || clusters[j].Count == 0 {
			return clusters[i].Count > clusters[j].Count
		}
		return clusters[i].Mean < clusters[j].Mean
	})
	return clusters
}

// separated reports whether two clusters are both populated and at least
// 1.25x apart.
func separated(lo, hi Cluster) bool {
	return lo.Count > 0 && hi.Count > 0 && hi.Mean >= lo.Mean*1.25
}

func midpoint(lo, hi Cluster) float64 {
	return (lo.Mean + hi.Mean) / 2
}

func msDuration(ms float64) time.Duration {
	return time.Duration(math.Round(ms)) * time.Millisecond
}
