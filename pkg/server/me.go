package server

import (
	"encoding/json"
	"net/http"

	"github.com/atelierforma/gatekeeper/pkg/identity"
	"github.com/atelierforma/gatekeeper/pkg/resolver"
)

// MeResponse represents the response from the /me endpoint
type MeResponse struct {
	Principal     string               `json:"principal"`
	State         string               `json:"state"`
	Role          string               `json:"role"`
	EffectiveRole string               `json:"effective_role"`
	CurrentOrg    string               `json:"current_org,omitempty"`
	TrainerActive bool                 `json:"trainer_active"`
	Memberships   []MembershipResponse `json:"memberships,omitempty"`
	DisplayName   string               `json:"display_name,omitempty"`
	Email         string               `json:"email,omitempty"`
}

// MembershipResponse is one organization membership in a /me response
type MembershipResponse struct {
	Organization string `json:"organization"`
	SubRole      string `json:"sub_role"`
	Primary      bool   `json:"primary"`
}

// RegisterMeEndpoint registers the /me endpoint
func RegisterMeEndpoint(s *Server) {
	s.Router.HandleFunc("/me", handleMe(s)).Methods("GET")
}

func handleMe(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := identity.Get(r.Context())
		if !ok || principal == "" {
			http.Error(w, "Unable to determine identity", http.StatusUnauthorized)
			return
		}

		snap := s.Resolver.Snapshot()
		if snap.Principal != principal {
			// The resolver has not caught up with this session yet.
			snap = resolver.Snapshot{State: resolver.StateIdle, Principal: principal}
		}

		response := MeResponse{
			Principal:     string(principal),
			State:         snap.State.String(),
			Role:          snap.Role.String(),
			EffectiveRole: snap.Role.String(),
			CurrentOrg:    snap.CurrentOrg,
			TrainerActive: snap.TrainerActive,
		}

		if session := s.Resolver.Session(); session != nil && snap.Principal == principal {
			response.EffectiveRole = session.Effective().String()
		}

		for _, m := range snap.Memberships {
			response.Memberships = append(response.Memberships, MembershipResponse{
				Organization: m.Organization,
				SubRole:      string(m.SubRole),
				Primary:      m.Primary,
			})
		}

		if snap.Profile != nil {
			response.DisplayName = snap.Profile.DisplayName
			response.Email = snap.Profile.Email
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}
}
