package server

import (
	"encoding/json"
	"net/http"

	"github.com/atelierforma/gatekeeper/pkg/audit"
	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/role"
)

// SimulateRequest is the body of a POST /me/simulate request
type SimulateRequest struct {
	Role string `json:"role"`
}

// RegisterSimulateEndpoints registers the role-simulation endpoints
func RegisterSimulateEndpoints(s *Server) {
	s.Router.HandleFunc("/me/simulate", handleSimulate(s)).Methods("POST")
	s.Router.HandleFunc("/me/simulate", handleClearSimulate(s)).Methods("DELETE")
}

func handleSimulate(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, session, ok := simulationSession(s, r)
		if !ok {
			http.Error(w, "Unable to determine identity", http.StatusUnauthorized)
			return
		}

		var req SimulateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}

		simulated, err := role.RoleString(req.Role)
		if err != nil {
			http.Error(w, "unknown role: "+req.Role, http.StatusBadRequest)
			return
		}

		if !session.SetSimulated(simulated) {
			http.Error(w, "role simulation requires admin or superadmin", http.StatusForbidden)
			return
		}

		audit.Log(audit.SimulateEvent{
			Principal: string(principal),
			RealRole:  session.Real().String(),
			Simulated: simulated.String(),
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"role":           session.Real().String(),
			"effective_role": session.Effective().String(),
		})
	}
}

func handleClearSimulate(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, session, ok := simulationSession(s, r)
		if !ok {
			http.Error(w, "Unable to determine identity", http.StatusUnauthorized)
			return
		}

		session.ClearSimulated()

		audit.Log(audit.SimulateEvent{
			Principal: string(principal),
			RealRole:  session.Real().String(),
			Cleared:   true,
		})

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"role":           session.Real().String(),
			"effective_role": session.Effective().String(),
		})
	}
}

func simulationSession(s *Server, r *http.Request) (identity.Principal, *role.Session, bool) {
	principal, ok := identity.Get(r.Context())
	if !ok || principal == "" {
		return "", nil, false
	}

	session := s.Resolver.Session()
	if session == nil || s.Resolver.Snapshot().Principal != principal {
		return "", nil, false
	}
	return principal, session, true
}
