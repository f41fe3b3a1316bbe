package sound

import (
	"time"
)

// HasFadeOut reports whether the last second of audio decreases steadily in
// loudness.
func (a *Analyzer) HasFadeOut() bool {
	rmsWindow := 100 * time.Millisecond
	fadeOutWindow := 1 * time.Second
	analysisWindow := int(fadeOutWindow.Seconds() / rmsWindow.Seconds())
	rms := a.RMS(rmsWindow)
	if len(rms) < analysisWindow {
		return false
	}

	rms = rms[len(rms)-analysisWindow:]

	// Check for a consistent decrease in RMS values
	var count int
	for i := 1; i < len(rms); i++ {
		inc := rms[i] - rms[i-1]
		if inc >= 0 || inc*-1.0 <= 0.001 {
			count++
		}
	}
	return count <= 1
}
