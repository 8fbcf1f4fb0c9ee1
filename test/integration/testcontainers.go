package integration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atelierforma/gatekeeper/pkg/config"
	"github.com/atelierforma/gatekeeper/pkg/gate"
	"github.com/atelierforma/gatekeeper/pkg/identity/jwtsession"
	"github.com/atelierforma/gatekeeper/pkg/resolver"
	"github.com/atelierforma/gatekeeper/pkg/rolecache"
	"github.com/atelierforma/gatekeeper/pkg/server"
	storegorm "github.com/atelierforma/gatekeeper/pkg/store/gorm"
)

// TestContext holds all the resources needed for integration tests
type TestContext struct {
	DB          *gorm.DB
	RawDB       *sql.DB
	Container   testcontainers.Container
	ServerURL   string
	DatabaseURL string
	Server      *server.Server
	Resolver    *resolver.Resolver
	Sessions    *jwtsession.Provider
	Cancel      context.CancelFunc
}

// NewTestContext starts a PostgreSQL testcontainer, migrates it, and runs
// the gatekeeper server in-process against it.
func NewTestContext(ctx context.Context) (*TestContext, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %w", err)
	}
	migrationsDir := filepath.Join(projectRoot, "db", "migrations")

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("gatekeeper_test"),
		tcpostgres.WithUsername("gatekeeper"),
		tcpostgres.WithPassword("gatekeeper"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}
	port, err := pgContainer.MappedPort(ctx, "5432")
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}
	connStr := fmt.Sprintf("postgres://gatekeeper:gatekeeper@%s:%s/gatekeeper_test?sslmode=disable", host, port.Port())

	db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{
		DSN:                  connStr,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	rawDB, err := db.DB()
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to get raw db: %w", err)
	}

	if err := runMigrations(rawDB, migrationsDir); err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	serverPort := "18080"
	serverURL := fmt.Sprintf("http://127.0.0.1:%s", serverPort)

	srv, res, sessions, cancel, err := startInlineServer(db, serverPort)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("failed to start inline server: %w", err)
	}

	if err := waitForServer(serverURL, 30*time.Second); err != nil {
		cancel()
		_ = pgContainer.Terminate(ctx)
		return nil, fmt.Errorf("server failed to become ready: %w", err)
	}

	return &TestContext{
		DB:          db,
		RawDB:       rawDB,
		Container:   pgContainer,
		ServerURL:   serverURL,
		DatabaseURL: connStr,
		Server:      srv,
		Resolver:    res,
		Sessions:    sessions,
		Cancel:      cancel,
	}, nil
}

// startInlineServer runs the gatekeeper server in-process.
func startInlineServer(db *gorm.DB, port string) (*server.Server, *resolver.Resolver, *jwtsession.Provider, context.CancelFunc, error) {
	ctx, cancel := context.WithCancel(context.Background())

	contentDir, err := os.MkdirTemp("", "gatekeeper-content")
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}
	pages := map[string]string{
		"index.md":     "# Welcome\n",
		"admin.md":     "# Back office\n",
		"formateur.md": "# Trainer workspace\n",
	}
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(contentDir, name), []byte(content), 0o600); err != nil {
			cancel()
			return nil, nil, nil, nil, err
		}
	}
	if err := os.MkdirAll(filepath.Join(contentDir, "admin"), 0o700); err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}
	for _, name := range []string{"users.md", "roles.md", "security.md", "settings.md"} {
		if err := os.WriteFile(filepath.Join(contentDir, "admin", name), []byte("# "+name+"\n"), 0o600); err != nil {
			cancel()
			return nil, nil, nil, nil, err
		}
	}

	cacheDir, err := os.MkdirTemp("", "gatekeeper-cache")
	if err != nil {
		cancel()
		return nil, nil, nil, nil, err
	}

	cfg := &config.Config{
		SignInPath: "/auth",
		SiteRoot:   "/",
		AdminRoot:  "/admin",
		ContentDir: contentDir,
	}

	roles := storegorm.NewRoleStore(db)
	cache := rolecache.New(filepath.Join(cacheDir, "role-cache.json"), 5*time.Minute)
	sessions := jwtsession.New([]byte("integration-test-secret"), time.Hour)

	g := gate.New(sessions, roles)
	res := resolver.New(roles, cache, resolver.RetryPolicy{MaxAttempts: 2, Delay: 50 * time.Millisecond})

	events, unsubscribe := sessions.Subscribe()
	go res.Run(ctx, events)
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	s := server.NewServer(sessions, roles, g, res, cfg, "127.0.0.1", port)
	server.RegisterAll(s)

	go func() {
		_ = s.Start()
	}()

	return s, res, sessions, cancel, nil
}

// waitForServer polls the server until it responds or times out
func waitForServer(serverURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(serverURL + "/")
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server did not become ready within %v", timeout)
}

// Close cleans up all test resources
func (tc *TestContext) Close(ctx context.Context) {
	if tc.Cancel != nil {
		tc.Cancel()
	}
	if tc.Server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = tc.Server.Shutdown(shutdownCtx)
		cancel()
	}
	if tc.RawDB != nil {
		_ = tc.RawDB.Close()
	}
	if tc.Container != nil {
		_ = tc.Container.Terminate(ctx)
	}
}

// findProjectRoot locates the project root directory
func findProjectRoot() (string, error) {
	paths := []string{
		"../..",
		"..",
		".",
	}

	for _, p := range paths {
		goMod := filepath.Join(p, "go.mod")
		if _, err := os.Stat(goMod); err == nil {
			return filepath.Abs(p)
		}
	}

	return "", fmt.Errorf("project root not found (looking for go.mod)")
}

// runMigrations executes the up migration files in order
func runMigrations(db *sql.DB, migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return err
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			// Ignore errors for idempotent migrations
			log.Printf("Migration %s: %v (may be expected)", filepath.Base(file), err)
		}
	}

	return nil
}
