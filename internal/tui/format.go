package tui

import "fmt"

const (
	warningThreshold  = 300
	criticalThreshold = 60
)

type timerLevel int

const (
	timerNormal timerLevel = iota
	timerWarning
	timerCritical
)

// formatClock renders seconds as HH:MM:SS.
func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

func levelFor(remaining int) timerLevel {
	switch {
	case remaining <= criticalThreshold:
		return timerCritical
	case remaining <= warningThreshold:
		return timerWarning
	}
	return timerNormal
}
