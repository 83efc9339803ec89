package models

import "time"

// Job is a recurring maintenance task run by the scheduler.
type Job struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	CronExpression string     `json:"cronExpression"` // e.g., "0 6 * * *" for 6 AM daily
	TaskType       string     `json:"taskType"`       // e.g., "pantry_sweep", "price_refresh"
	IsActive       bool       `json:"isActive"`
	LastRunAt      *time.Time `json:"lastRunAt"`
	NextRunAt      *time.Time `json:"nextRunAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}
