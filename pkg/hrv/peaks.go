package hrv

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/itohio/goecg/pkg/dsp"
)

// Threshold offsets tried by fitPeaks, in percent of the mean rolling mean.
var maPercents = []float64{5, 10, 15, 20, 25, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 150, 200, 300}

const (
	minRRSD          = 0.1   // ms; a perfectly regular fit is treated as spurious
	firstPeakGuard   = 150.0 // ms; a peak this close to the start is dropped
	outlierFraction  = 0.3
	outlierMinBand   = 300.0 // ms
	segmentBeats     = 10
	segmentMaxReject = 3
)

// detectPeaks marks every run of samples above the raised rolling mean and
// takes the highest sample of each run as a peak.
func detectPeaks(x, rm []float64, percent, fs float64) (peaks []int, threshold []float64) {
	raise := stat.Mean(rm, nil) / 100 * percent
	threshold = make([]float64, len(rm))
	for i, v := range rm {
		threshold[i] = v + raise
	}

	for i := 0; i < len(x); {
		if x[i] <= threshold[i] {
			i++
			continue
		}
		best := i
		for ; i < len(x) && x[i] > threshold[i]; i++ {
			if x[i] > x[best] {
				best = i
			}
		}
		peaks = append(peaks, best)
	}

	if len(peaks) > 0 && float64(peaks[0]) <= fs/1000*firstPeakGuard {
		peaks = peaks[1:]
	}
	return peaks, threshold
}

func intervals(positions []float64, fs float64) []float64 {
	if len(positions) < 2 {
		return nil
	}
	rr := make([]float64, len(positions)-1)
	for i := range rr {
		rr[i] = (positions[i+1] - positions[i]) / fs * 1000
	}
	return rr
}

func positions(peaks []int) []float64 {
	out := make([]float64, len(peaks))
	for i, p := range peaks {
		out[i] = float64(p)
	}
	return out
}

// fitPeaks picks the threshold whose peaks give the most regular intervals
// while keeping the heart rate within [bpmMin, bpmMax].
func (wd *WorkingData) fitPeaks(bpmMin, bpmMax float64) error {
	duration := float64(len(wd.Signal)) / wd.Rate

	best := math.Inf(1)
	found := false
	for _, p := range maPercents {
		peaks, _ := detectPeaks(wd.Signal, wd.RollingMean, p, wd.Rate)
		rrsd := math.Inf(1)
		if rr := intervals(positions(peaks), wd.Rate); len(rr) > 0 {
			rrsd = stat.PopStdDev(rr, nil)
		}
		bpm := float64(len(peaks)) / duration * 60

		if rrsd > minRRSD && bpm >= bpmMin && bpm <= bpmMax && rrsd < best {
			best = rrsd
			wd.BestPercent = p
			found = true
		}
	}
	if !found {
		return ErrBadFit
	}

	wd.Peaks, wd.Threshold = detectPeaks(wd.Signal, wd.RollingMean, wd.BestPercent, wd.Rate)
	wd.PeakPositions = positions(wd.Peaks)
	wd.PeakValues = make([]float64, len(wd.Peaks))
	for i, p := range wd.Peaks {
		wd.PeakValues[i] = wd.Signal[p]
	}
	return nil
}

// interpolatePeaks refines each peak by upsampling 100 ms either side of it to fsHigh.
func (wd *WorkingData) interpolatePeaks(fsHigh float64) error {
	half := int(0.1 * wd.Rate)
	ratio := wd.Rate / fsHigh

	for i, p := range wd.Peaks {
		lo, hi := max(p-half, 0), min(p+half, len(wd.Signal))
		seg := wd.Signal[lo:hi]
		up, err := dsp.Resample(seg, int(float64(len(seg))*fsHigh/wd.Rate))
		if err != nil {
			return err
		}
		wd.PeakPositions[i] = float64(lo) + float64(floats.MaxIdx(up))*ratio
	}
	return nil
}

func (wd *WorkingData) calcRR() {
	wd.RR = intervals(wd.PeakPositions, wd.Rate)
}

// checkPeaks rejects beats whose preceding interval deviates from the mean
// interval by more than 30%, or by 300 ms when that is wider.
func (wd *WorkingData) checkPeaks(segmentwise bool) {
	meanRR := stat.Mean(wd.RR, nil)
	band := outlierFraction * meanRR
	if band <= outlierMinBand {
		band = outlierMinBand
	}
	lower, upper := meanRR-band, meanRR+band

	wd.Accepted = make([]bool, len(wd.Peaks))
	for i := range wd.Accepted {
		wd.Accepted[i] = true
	}
	for i, rr := range wd.RR {
		if rr <= lower || rr >= upper {
			wd.Accepted[i+1] = false
		}
	}

	if segmentwise {
		wd.rejectSegments()
	}
	wd.updateRR()
}

// rejectSegments drops whole 10 beat segments holding more than 3 rejected beats.
func (wd *WorkingData) rejectSegments() {
	wd.RejectedSegments = nil
	for start := 0; start+segmentBeats <= len(wd.Accepted); start += segmentBeats {
		rejected := 0
		for _, ok := range wd.Accepted[start : start+segmentBeats] {
			if !ok {
				rejected++
			}
		}
		if rejected <= segmentMaxReject {
			continue
		}

		for i := start; i < start+segmentBeats; i++ {
			wd.Accepted[i] = false
		}
		end := wd.Peaks[len(wd.Peaks)-1]
		if start+segmentBeats < len(wd.Peaks) {
			end = wd.Peaks[start+segmentBeats]
		}
		wd.RejectedSegments = append(wd.RejectedSegments, [2]int{wd.Peaks[start], end})
	}
}

// updateRR keeps only intervals bounded by two accepted peaks.
func (wd *WorkingData) updateRR() {
	wd.RRMask = make([]bool, len(wd.RR))
	wd.RRCorrected = wd.RRCorrected[:0]
	for i, rr := range wd.RR {
		if wd.Accepted[i] && wd.Accepted[i+1] {
			wd.RRCorrected = append(wd.RRCorrected, rr)
		} else {
			wd.RRMask[i] = true
		}
	}

	wd.RRDiff = wd.RRDiff[:0]
	wd.RRSqDiff = wd.RRSqDiff[:0]
	for i := 0; i+1 < len(wd.RR); i++ {
		if wd.RRMask[i] || wd.RRMask[i+1] {
			continue
		}
		d := math.Abs(wd.RR[i+1] - wd.RR[i])
		wd.RRDiff = append(wd.RRDiff, d)
		wd.RRSqDiff = append(wd.RRSqDiff, d*d)
	}
}
