package sid

import (
	"math"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Envelope calibration data, measured on real 6581 chips (MAME).
var (
	masterLevels = [16]int{0, 17, 34, 51, 68, 85, 102, 119, 136, 153, 170, 187, 204, 221, 238, 255}

	attackTimesMS = [16]float64{
		2.2528606, 8.0099577, 15.7696042, 23.7795619,
		37.2963655, 55.0684591, 66.8330845, 78.3473987,
		98.1219818, 244.554021, 489.108042, 782.472742,
		977.715461, 2933.64701, 4889.07793, 7822.72493,
	}

	decayReleaseTimesMS = [16]float64{
		8.91777693, 24.594051, 48.4185907, 73.0116639,
		114.512475, 169.078356, 205.199432, 240.551975,
		301.266125, 750.858245, 1501.71551, 2402.43682,
		3001.89298, 9007.21405, 15010.998, 24018.2111,
	}
)

const attackTabLen = 255

// releaseSegments describes the exponential release curve as runs of
// descending values: from, run length per value, down to (inclusive).
var releaseSegments = [][3]int{
	{255, 2, 95},
	{94, 4, 56},
	{55, 8, 28},
	{27, 16, 16},
	{15, 32, 8},
	{7, 60, 1},
}

var (
	releaseTab = buildReleaseTab()
	releasePos = buildReleasePos(releaseTab)

	measuredVolume = map[Model]*[256]uint8{
		MOS6581: buildVolumeCurve(func(i float64) float64 { return 293.0*(1-math.Exp(i/-130.0)) + 4.0 }),
		MOS8580: buildVolumeCurve(func(i float64) float64 {
			return 255.0 * (1 - math.Exp(i/-180.0)) / (1 - math.Exp(255.0/-180.0))
		}),
	}
)

func buildReleaseTab() []uint8 {
	var tab []uint8
	for _, seg := range releaseSegments {
		for v := seg[0]; v >= seg[2]; v-- {
			for k := 0; k < seg[1]; k++ {
				tab = append(tab, uint8(v))
			}
		}
	}
	return append(tab, 0)
}

// buildReleasePos maps a level to the first release table index at or below it.
func buildReleasePos(tab []uint8) [256]int {
	var pos [256]int
	for i := range pos {
		j := 0
		for j < len(tab) && int(tab[j]) > i {
			j++
		}
		if j >= len(tab) {
			j = len(tab) - 1
		}
		pos[i] = j
	}
	return pos
}

func buildVolumeCurve(f func(float64) float64) *[256]uint8 {
	var curve [256]uint8
	for i := 1; i < 256; i++ {
		curve[i] = clampByte(math.Round(f(float64(i))))
	}
	return &curve
}

// Rates are envelope step increments per sample at one sample rate: an
// integer part plus a 16-bit fractional part.
type Rates struct {
	Attack     [16]int
	AttackFrac [16]int
	Decay      [16]int
	DecayFrac  [16]int
	SampleRate float64
}

var (
	ratesCache sync.Map
	ratesGroup singleflight.Group
)

// RatesFor returns the rate table for sampleRate, computing it at most once
// per distinct rate. The result is shared and must not be modified.
func RatesFor(sampleRate float64) *Rates {
	if r, ok := ratesCache.Load(sampleRate); ok {
		return r.(*Rates)
	}
	v, _, _ := ratesGroup.Do(strconv.FormatFloat(sampleRate, 'g', -1, 64), func() (any, error) {
		if r, ok := ratesCache.Load(sampleRate); ok {
			return r, nil
		}
		r := computeRates(sampleRate)
		ratesCache.Store(sampleRate, r)
		return r, nil
	})
	return v.(*Rates)
}

func computeRates(sampleRate float64) *Rates {
	r := &Rates{SampleRate: sampleRate}
	scale := func(ms float64) int {
		return max(1, int(math.Floor(ms*sampleRate/1000.0)))
	}
	for i := 0; i < 16; i++ {
		scl := scale(attackTimesMS[i])
		r.Attack[i] = attackTabLen / scl
		r.AttackFrac[i] = int(int64(attackTabLen%scl) * 65536 / int64(scl))

		scl = scale(decayReleaseTimesMS[i])
		n := len(releaseTab)
		r.Decay[i] = n / scl
		r.DecayFrac[i] = int(int64(n%scl) * 65536 / int64(scl))
	}
	return r
}
