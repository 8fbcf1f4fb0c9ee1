package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/atelierforma/gatekeeper/pkg/config"
	"github.com/atelierforma/gatekeeper/pkg/db"
	"github.com/atelierforma/gatekeeper/pkg/gate"
	"github.com/atelierforma/gatekeeper/pkg/identity/jwtsession"
	"github.com/atelierforma/gatekeeper/pkg/resolver"
	"github.com/atelierforma/gatekeeper/pkg/rolecache"
	"github.com/atelierforma/gatekeeper/pkg/server"
	storegorm "github.com/atelierforma/gatekeeper/pkg/store/gorm"
)

func defaultBindAddress() string {
	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		return addr
	}
	return "0.0.0.0"
}

func defaultPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

func defaultPortInt() int {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			return p
		}
	}
	return 8000
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the gatekeeper application server",
	Long: `Run the gatekeeper application server

To run the server requires the environment variables GATEKEEPER_SESSION_KEY
and DATABASE_URL.

By default, database migrations are run on startup. Use --no-migrate to skip.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Validate required environment variables first (fail fast)
		sessionKeyB64, ok := os.LookupEnv("GATEKEEPER_SESSION_KEY")
		if !ok {
			fmt.Fprintln(os.Stderr, "GATEKEEPER_SESSION_KEY environment variable is required")
			os.Exit(1)
		}

		if os.Getenv("DATABASE_URL") == "" {
			fmt.Fprintln(os.Stderr, "DATABASE_URL environment variable is required")
			os.Exit(1)
		}

		// Run migrations unless --no-migrate is set
		noMigrate, _ := cmd.Flags().GetBool("no-migrate")
		if !noMigrate {
			log.Println("Running database migrations...")
			if err := runMigrations(); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
		}

		sessionKey, err := base64.StdEncoding.DecodeString(sessionKeyB64)
		if err != nil {
			fmt.Println("Bad GATEKEEPER_SESSION_KEY:", err)
			os.Exit(1)
		}

		configureLogging()

		cfg := config.Get()
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
			os.Exit(1)
		}

		gormDB, err := db.Connect(db.Config{})
		if err != nil {
			fmt.Println("Unable to connect to DB:", err)
			os.Exit(1)
		}

		roles := storegorm.NewRoleStore(gormDB)
		cache := rolecache.New(cfg.RoleCachePath, cfg.RoleCacheTTL())
		sessions := jwtsession.New(sessionKey, cfg.SessionTTL())

		metrics := server.NewMetrics()

		g := gate.New(sessions, roles)
		g.SignInPath = cfg.SignInPath
		g.SiteRoot = cfg.SiteRoot
		g.AdminRoot = cfg.AdminRoot
		g.Recorder = metrics

		res := resolver.New(roles, cache, resolver.RetryPolicy{
			MaxAttempts: cfg.ResolverRetryAttempts,
			Delay:       cfg.RetryDelay(),
		})
		res.Recorder = metrics

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, unsubscribe := sessions.Subscribe()
		defer unsubscribe()
		go res.Run(ctx, events)

		go func() {
			if err := config.Watch(ctx, nil); err != nil {
				logrus.WithError(err).Warn("config watch stopped")
			}
		}()

		host, _ := cmd.Flags().GetString("bind-address")
		port, _ := cmd.Flags().GetString("port")
		s := server.NewServer(sessions, roles, g, res, cfg, host, port)

		server.RegisterAll(s)

		log.Printf("Running server at http://%s:%s...\n", host, port)
		log.Fatal(s.Start())
	},
}

func configureLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(os.Getenv("GATEKEEPER_LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringP("port", "p", defaultPort(), "server listen port")
	serverCmd.Flags().StringP("bind-address", "b", defaultBindAddress(), "server bind address")
	serverCmd.Flags().Bool("no-migrate", false, "skip running database migrations on start")
}
