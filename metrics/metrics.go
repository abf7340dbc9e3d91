// Package metrics holds the system-wide metrics snapshot pushed by the
// systemMetricsStream subscription.
package metrics

import "time"

// Snapshot is one full metrics push. Each push replaces the previous one.
type Snapshot struct {
	Timestamp                  time.Time `json:"timestamp"`
	CPUUsagePercent            float64   `json:"cpuUsage"`
	MemoryUsagePercent         float64   `json:"memoryUsage"`
	ActiveAgents               int       `json:"activeAgents"`
	ActiveTasks                int       `json:"activeTasks"`
	TasksCompletedToday        int       `json:"tasksCompletedToday"`
	TasksFailedToday           int       `json:"tasksFailedToday"`
	AverageTaskDurationSeconds float64   `json:"averageTaskDuration"`
	SystemHealthScore          float64   `json:"systemHealthScore"`
}

// Healthy reports whether the health score is at or above the given floor.
func (s Snapshot) Healthy(floor float64) bool {
	return s.SystemHealthScore >= floor
}
