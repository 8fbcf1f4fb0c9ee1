package audit

import "fmt"

// SimulateEvent records an administrator switching the UI preview role.
type SimulateEvent struct {
	Principal string
	RealRole  string
	Simulated string
	Cleared   bool
}

func (e SimulateEvent) MessageID() string {
	return "simulate"
}

func (e SimulateEvent) Message() string {
	if e.Cleared {
		return fmt.Sprintf("%s cleared simulated role", e.Principal)
	}
	return fmt.Sprintf("%s (%s) simulating role %s", e.Principal, e.RealRole, e.Simulated)
}

func (e SimulateEvent) Severity() Severity {
	return SeverityNotice
}

func (e SimulateEvent) Facility() int {
	return FacilityAuth
}

func (e SimulateEvent) StructuredData() map[string]map[string]string {
	return map[string]map[string]string{
		SDIDSubject: {
			"principal": e.Principal,
			"real_role": e.RealRole,
		},
	}
}
