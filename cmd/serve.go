package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/platformsec/rbacgate/internal/db/bunx"
	gatemw "github.com/platformsec/rbacgate/internal/middleware"
	"github.com/platformsec/rbacgate/internal/repository"
	"github.com/platformsec/rbacgate/internal/server"
	"github.com/platformsec/rbacgate/internal/services/authn"
	"github.com/platformsec/rbacgate/internal/services/iam"
	"github.com/platformsec/rbacgate/internal/services/tenants"
	"github.com/platformsec/rbacgate/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the RBAC gateway server",
	Long:  `Starts the HTTP server with identity resolution middleware and the tenant-scoped access management API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Connect to database
		db, err := bunx.NewDB(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		// Initialize repositories
		tenantRepo := repository.NewBunTenantRepository(db)
		principalRepo := repository.NewBunPrincipalRepository(db)
		groupRepo := repository.NewBunGroupRepository(db)
		roleRepo := repository.NewBunRoleRepository(db)
		policyRepo := repository.NewBunPolicyRepository(db)
		accessRepo := repository.NewBunAccessRepository(db)

		// Initialize services
		directory, err := tenants.NewDirectory(tenantRepo, cfg.TenantCacheSize)
		if err != nil {
			return fmt.Errorf("create tenant directory: %w", err)
		}
		validator := authn.NewValidator(cfg.ServicePSKs)
		resolver := iam.NewResolver(principalRepo)
		accessBuilder := iam.NewAccessBuilder(accessRepo)

		authMetrics, err := telemetry.NewAuthMetrics()
		if err != nil {
			return fmt.Errorf("create auth metrics: %w", err)
		}

		identityMiddleware, err := gatemw.NewIdentityMiddleware(cfg, gatemw.IdentityDependencies{
			Tenants:   directory,
			Validator: validator,
			Resolver:  resolver,
			Metrics:   authMetrics,
		})
		if err != nil {
			return fmt.Errorf("configure identity middleware: %w", err)
		}

		// Assemble the shared router with the production middleware.
		r := server.NewRouter(server.RouterOptions{
			Cfg:        cfg,
			Identity:   identityMiddleware,
			Status:     server.NewStatusHandler(),
			Access:     server.NewAccessHandlers(accessBuilder),
			Management: server.NewManagementHandlers(principalRepo, groupRepo, roleRepo, policyRepo),
		})

		// Wrap router with h2c for HTTP/2 cleartext support
		h2cHandler := h2c.NewHandler(r, &http2.Server{})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      h2cHandler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Start server in goroutine
		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		// Wait for interrupt signal
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
