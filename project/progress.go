package project

import "math"

// Progress is the single 0–100 figure shown on the progress bar. The
// backend's completionPercentage wins when present; otherwise the task
// ratio; otherwise zero.
func Progress(p *Project) int {
	if p == nil {
		return 0
	}
	if c := p.CompletionPercentage; c != nil && !math.IsNaN(*c) {
		return clampRound(*c)
	}
	if p.TotalTasks > 0 {
		return clampRound(float64(p.CompletedTasks) / float64(p.TotalTasks) * 100)
	}
	return 0
}

// CompletionRate backs the secondary "completion rate" display. It is the
// same figure as Progress so the two never disagree.
func CompletionRate(p *Project) int { return Progress(p) }

func clampRound(v float64) int {
	switch {
	case math.IsInf(v, 1):
		return 100
	case math.IsInf(v, -1):
		return 0
	}
	r := math.Round(v)
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return int(r)
}
