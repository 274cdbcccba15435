package fingerprint

// MatchParams controls fingerprint matching.
type MatchParams struct {
	// HistogramFilterSize is the width of the sliding-sum filter applied to
	// the time-offset histogram before taking its maximum.
	HistogramFilterSize int
}

// DefaultMatchParams returns the matcher parameters used across the system.
func DefaultMatchParams() MatchParams {
	return MatchParams{HistogramFilterSize: 3}
}

// Match scores two fingerprints against each other by voting on time-offset
// consistency. For every descriptor present in both fingerprints, every
// pairwise time delta across their time sets casts a vote; the votes form a
// histogram with 1-wide bins that is smoothed with a zero-padded sliding sum,
// and the score is the maximum of the smoothed histogram. A score of 0 means
// the fingerprints share no descriptors; larger means a stronger time-aligned
// correspondence. Scores are not normalized by fingerprint size.
//
// Both fingerprints must have been computed with the same sampling frequency
// and pipeline parameters, otherwise the score is meaningless.
func Match(these, those Fingerprint, params MatchParams) int {
	var deltas []int
	for descriptor, times := range these {
		otherTimes, ok := those[descriptor]
		if !ok {
			continue
		}
		for thisTime := range times {
			for thatTime := range otherTimes {
				deltas = append(deltas, thisTime-thatTime)
			}
		}
	}
	if len(deltas) == 0 {
		return 0
	}

	min, max := deltas[0], deltas[0]
	for _, d := range deltas[1:] {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	histogram := make([]int, max-min+1)
	for _, d := range deltas {
		histogram[d-min]++
	}

	// Sliding sum accumulates votes from adjacent, noise-perturbed offsets
	// into a single peak.
	size := params.HistogramFilterSize
	if size < 1 {
		size = 1
	}
	score := 0
	for i := range histogram {
		var sum int
		for j := i - size/2; j < i-size/2+size; j++ {
			if j >= 0 && j < len(histogram) {
				sum += histogram[j]
			}
		}
		if sum > score {
			score = sum
		}
	}
	return score
}
