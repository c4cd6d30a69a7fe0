package sla

import "time"

// Status classifies the health of one SLA clock.
type Status string

const (
	StatusNormal    Status = "normal"
	StatusWarning   Status = "warning"
	StatusUrgent    Status = "urgent"
	StatusViolated  Status = "violated"
	StatusCompleted Status = "completed"
)

const (
	warningRatio = 0.5
	urgentRatio  = 0.2
)

// Alerting reports whether the status should surface an alert.
func (s Status) Alerting() bool {
	switch s {
	case StatusWarning, StatusUrgent, StatusViolated:
		return true
	case StatusNormal, StatusCompleted:
		return false
	}
	return false
}

// Critical reports whether the status is urgent or violated.
func (s Status) Critical() bool {
	return s == StatusUrgent || s == StatusViolated
}

// Severity orders statuses for queue ranking, higher is worse.
func (s Status) Severity() int {
	switch s {
	case StatusViolated:
		return 4
	case StatusUrgent:
		return 3
	case StatusWarning:
		return 2
	case StatusNormal:
		return 1
	case StatusCompleted:
		return 0
	}
	return 0
}

// classify maps remaining/target onto a status:
// >0.5 normal, (0.2,0.5] warning, (0,0.2] urgent, <=0 violated.
func classify(remaining, target time.Duration) Status {
	if target <= 0 || remaining <= 0 {
		return StatusViolated
	}
	ratio := float64(remaining) / float64(target)
	switch {
	case ratio > warningRatio:
		return StatusNormal
	case ratio > urgentRatio:
		return StatusWarning
	default:
		return StatusUrgent
	}
}

func remainingRatio(remaining, target time.Duration) float64 {
	if target <= 0 {
		return 0
	}
	return float64(remaining) / float64(target)
}
