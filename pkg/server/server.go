package server

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/atelierforma/gatekeeper/pkg/config"
	"github.com/atelierforma/gatekeeper/pkg/gate"
	"github.com/atelierforma/gatekeeper/pkg/identity/jwtsession"
	"github.com/atelierforma/gatekeeper/pkg/resolver"
	"github.com/atelierforma/gatekeeper/pkg/store"
)

type Server struct {
	Sessions *jwtsession.Provider
	Roles    store.RoleStore
	Gate     *gate.Gate
	Resolver *resolver.Resolver
	Config   *config.Config
	Router   *mux.Router
	srv      *http.Server
}

func NewServer(
	sessions *jwtsession.Provider,
	roles store.RoleStore,
	g *gate.Gate,
	res *resolver.Resolver,
	cfg *config.Config,
	host string,
	port string,
) *Server {

	router := mux.NewRouter().UseEncodedPath()
	srv := &http.Server{
		Handler: handlers.LoggingHandler(os.Stdout, router),
		Addr:    host + ":" + port,
		// Good practice: enforce timeouts for servers you create!
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	return &Server{
		Sessions: sessions,
		Roles:    roles,
		Gate:     g,
		Resolver: res,
		Config:   cfg,
		Router:   router,
		srv:      srv,
	}
}

func (s *Server) Start() error {
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// RegisterAll registers all endpoints on the server and installs the gate
// in front of everything it serves.
func RegisterAll(s *Server) {
	RegisterAuthEndpoints(s)
	RegisterMeEndpoint(s)
	RegisterSimulateEndpoints(s)
	RegisterMetricsEndpoint(s)
	RegisterPagesEndpoint(s)

	s.Router.Use(s.Gate.Middleware)
}
