package server

import (
	"net/http"
	"strings"

	"github.com/atelierforma/gatekeeper/pkg/identity"
)

// RegisterAuthEndpoints registers the sign-in and sign-out endpoints.
func RegisterAuthEndpoints(s *Server) {
	s.Router.HandleFunc("/auth/sign-in", handleSignIn(s)).Methods("POST")
	s.Router.HandleFunc("/auth/sign-out", handleSignOut(s)).Methods("POST")
}

func handleSignIn(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}

		principal := strings.TrimSpace(r.PostFormValue("principal"))
		if principal == "" {
			http.Error(w, "principal is required", http.StatusBadRequest)
			return
		}

		cookie, err := s.Sessions.SignIn(r.Context(), identity.Principal(principal))
		if err != nil {
			http.Error(w, "failed to establish session", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, cookie)

		http.Redirect(w, r, signInTarget(r, s.Config.SiteRoot), http.StatusFound)
	}
}

func handleSignOut(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie := s.Sessions.SignOut(r.Context())
		http.SetCookie(w, cookie)

		http.Redirect(w, r, s.Config.SiteRoot, http.StatusFound)
	}
}

// signInTarget returns the post-sign-in destination. The redirect parameter
// carries the path the caller originally asked for; anything that is not a
// local absolute path falls back to the site root.
func signInTarget(r *http.Request, fallback string) string {
	target := r.URL.Query().Get("redirect")
	if target == "" {
		target = r.PostFormValue("redirect")
	}
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") {
		return fallback
	}
	return target
}
