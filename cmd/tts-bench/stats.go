package main

import (
	"math"
	"sort"
	"time"
)

type sample struct {
	firstAudio time.Duration
	total      time.Duration
	bytes      int
	fragments  int
	timing     int
	err        error
}

type summary struct {
	ok, failed int

	firstMin, firstAvg, firstP95, firstMax time.Duration
	totalAvg                               time.Duration
	bytesAvg                               int
}

// summarize aggregates successful samples. Failed samples only count.
func summarize(samples []sample) summary {
	var (
		s      summary
		firsts []time.Duration
		total  time.Duration
		bytes  int
	)
	for _, x := range samples {
		if x.err != nil {
			s.failed++
			continue
		}
		s.ok++
		firsts = append(firsts, x.firstAudio)
		total += x.total
		bytes += x.bytes
	}
	if s.ok == 0 {
		return s
	}

	sort.Slice(firsts, func(i, j int) bool { return firsts[i] < firsts[j] })
	var sum time.Duration
	for _, d := range firsts {
		sum += d
	}
	s.firstMin = firsts[0]
	s.firstMax = firsts[len(firsts)-1]
	s.firstAvg = sum / time.Duration(s.ok)
	s.firstP95 = percentile(firsts, 0.95)
	s.totalAvg = (total / time.Duration(s.ok)).Round(time.Millisecond)
	s.bytesAvg = bytes / s.ok
	return s
}

// percentile uses nearest rank on sorted input.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	return sorted[rank]
}
