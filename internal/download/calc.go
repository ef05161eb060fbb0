package download

import (
	"math"

	"torrentctl/internal/domain"
)

// MaxRatio caps the reported share ratio.
const MaxRatio = 9999.0

// ETAUnknown is returned by ETA while downloading with no measurable rate.
const ETAUnknown int64 = -1

// ProgressPercent converts engine progress in [0, 1] to a whole percentage.
func ProgressPercent(p float64) int {
	if p == 1.0 {
		return 100
	}
	if math.IsNaN(p) || p <= 0 {
		return 0
	}
	pct := math.Floor(p * 100)
	if pct >= 100 {
		return 100
	}
	return int(pct)
}

// ETA returns the remaining download time in seconds. It is only defined
// while downloading; every other state reports 0.
func ETA(state domain.TorrentState, totalSize, totalDone, downloadRate int64) int64 {
	if state != domain.TorrentStateDownloading {
		return 0
	}
	left := totalSize - totalDone
	if left <= 0 {
		return 0
	}
	if downloadRate <= 0 {
		return ETAUnknown
	}
	return left / downloadRate
}

// ShareRatio computes uploaded/downloaded capped at MaxRatio. A seeder that
// lost its lifetime download counter falls back to the completed byte count.
func ShareRatio(uploaded, allTimeReceived, totalDone int64) float64 {
	downloaded := allTimeReceived
	if float64(allTimeReceived) < float64(totalDone)*0.01 {
		downloaded = totalDone
	}

	if downloaded == 0 {
		if uploaded == 0 {
			return 0
		}
		return MaxRatio
	}

	ratio := float64(uploaded) / float64(downloaded)
	if ratio > MaxRatio {
		return MaxRatio
	}
	return ratio
}
