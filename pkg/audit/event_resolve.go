package audit

import "fmt"

// ResolveEvent records the outcome of a role resolution.
type ResolveEvent struct {
	Principal string
	Role      string
	Degraded  bool
}

func (e ResolveEvent) MessageID() string {
	return "resolve"
}

func (e ResolveEvent) Message() string {
	if e.Degraded {
		return fmt.Sprintf("%s degraded to role %s after retry", e.Principal, e.Role)
	}
	return fmt.Sprintf("%s resolved to role %s", e.Principal, e.Role)
}

func (e ResolveEvent) Severity() Severity {
	if e.Degraded {
		return SeverityWarning
	}
	return SeverityInfo
}

func (e ResolveEvent) Facility() int {
	return FacilityAuth
}

func (e ResolveEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"principal": e.Principal,
		},
		SDIDResolve: {
			"role":     e.Role,
			"degraded": fmt.Sprintf("%t", e.Degraded),
		},
	}
}
