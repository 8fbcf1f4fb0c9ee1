package audit

import "fmt"

// AccessEvent records an edge-gate decision on a protected path.
type AccessEvent struct {
	Principal string
	Path      string
	Allowed   bool
	Reason    string
}

func (e AccessEvent) MessageID() string {
	return "access"
}

func (e AccessEvent) Message() string {
	subject := e.Principal
	if subject == "" {
		subject = "anonymous"
	}
	if e.Allowed {
		return fmt.Sprintf("%s allowed on %s", subject, e.Path)
	}
	return fmt.Sprintf("%s denied on %s (%s)", subject, e.Path, e.Reason)
}

func (e AccessEvent) Severity() Severity {
	if e.Allowed {
		return SeverityInfo
	}
	return SeverityWarning
}

func (e AccessEvent) Facility() int {
	return FacilityAuthPriv
}

func (e AccessEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"principal": e.Principal,
		},
		SDIDAccess: {
			"path":    e.Path,
			"allowed": fmt.Sprintf("%t", e.Allowed),
			"reason":  e.Reason,
		},
	}
}
