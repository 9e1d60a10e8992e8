package health

import (
	"regexp"
	"time"
)

// Status describes the health of one component at a point in time.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"` // "healthy", "degraded", "unhealthy"
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"subStatuses,omitempty"`
}

// IsHealthy reports whether the status is healthy.
func (s Status) IsHealthy() bool {
	return s.Status == "healthy"
}

// IsDegraded reports whether the status is degraded.
func (s Status) IsDegraded() bool {
	return s.Status == "degraded"
}

// IsUnhealthy reports whether the status is unhealthy.
func (s Status) IsUnhealthy() bool {
	return s.Status == "unhealthy"
}

// WithSubStatus returns a copy with the sub-status appended. The copy
// gets its own backing array, so the receiver is never mutated.
func (s Status) WithSubStatus(sub Status) Status {
	subs := make([]Status, len(s.SubStatuses), len(s.SubStatuses)+1)
	copy(subs, s.SubStatuses)
	s.SubStatuses = append(subs, sub)
	return s
}

// NewHealthy creates a healthy status stamped with the current time.
func NewHealthy(component, message string) Status {
	return Status{
		Component: component,
		Healthy:   true,
		Status:    "healthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewDegraded creates a degraded status stamped with the current time.
func NewDegraded(component, message string) Status {
	return Status{
		Component: component,
		Status:    "degraded",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewUnhealthy creates an unhealthy status stamped with the current time.
func NewUnhealthy(component, message string) Status {
	return Status{
		Component: component,
		Status:    "unhealthy",
		Message:   message,
		Timestamp: time.Now(),
	}
}

// FromError derives a status from an operation result: healthy when err
// is nil, otherwise unhealthy carrying the redacted error text.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ok")
	}
	return NewUnhealthy(component, Redact(err.Error()))
}

// Aggregate combines sub-statuses into one status under the given name:
// any unhealthy sub-status makes the aggregate unhealthy, otherwise any
// degraded one makes it degraded, otherwise it is healthy. The input
// slice is copied into SubStatuses in the order given.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no components reporting")
	}

	hasUnhealthy := false
	hasDegraded := false
	for _, sub := range subStatuses {
		switch {
		case sub.IsUnhealthy():
			hasUnhealthy = true
		case sub.IsDegraded():
			hasDegraded = true
		}
	}

	var status Status
	switch {
	case hasUnhealthy:
		status = NewUnhealthy(component, "one or more components are unhealthy")
	case hasDegraded:
		status = NewDegraded(component, "one or more components are degraded")
	default:
		status = NewHealthy(component, "all components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

var (
	urlPattern        = regexp.MustCompile(`(?:https?|wss?|nats)://[^\s]+`)
	credentialPattern = regexp.MustCompile(`(?i)(?:password|token|secret|credential|bearer)\s*[:=]\s*[^,\s}]+`)
	addrPattern       = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}(?::\d+)?\b`)
)

// Redact masks URLs, socket addresses, and credential assignments in a
// message. Status messages frequently embed transport errors, which
// carry dial targets and auth material verbatim.
func Redact(message string) string {
	if message == "" {
		return ""
	}
	message = urlPattern.ReplaceAllString(message, "[URL]")
	message = credentialPattern.ReplaceAllString(message, "[REDACTED]")
	return addrPattern.ReplaceAllString(message, "[ADDR]")
}
