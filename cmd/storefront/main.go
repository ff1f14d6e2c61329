// Package main boots the storefront cart and checkout HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fairyhunter13/storefront-cart-service/internal/cart"
	"github.com/fairyhunter13/storefront-cart-service/internal/catalog"
	"github.com/fairyhunter13/storefront-cart-service/internal/checkout"
	"github.com/fairyhunter13/storefront-cart-service/internal/config"
	httpapi "github.com/fairyhunter13/storefront-cart-service/internal/http"
	"github.com/fairyhunter13/storefront-cart-service/internal/obs"
	"github.com/fairyhunter13/storefront-cart-service/internal/orders"
	"github.com/fairyhunter13/storefront-cart-service/internal/realtime"
	"github.com/fairyhunter13/storefront-cart-service/internal/store"
	"github.com/fairyhunter13/storefront-cart-service/internal/store/postgres"
)

var version = "dev"

// vcfg carries flag bindings into config.LoadFrom.
var vcfg = viper.New()

func main() {
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Storefront cart and checkout service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}
	root.PersistentFlags().String("seed", "", "YAML catalog to load into the memory backend (overrides SEED_FILE)")
	_ = vcfg.BindPFlag("SEED_FILE", root.PersistentFlags().Lookup("seed"))
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP server",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the postgres schema and exit",
			RunE:  runMigrate,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the build version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// openStore returns the configured backend and a function releasing it.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("DATABASE_URL is required for the postgres backend")
		}
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
		return pg, func() { _ = pg.Close() }, nil
	case config.BackendMemory, "":
		mem := store.New()
		if cfg.SeedFile != "" {
			if err := mem.LoadSeedFile(cfg.SeedFile); err != nil {
				return nil, nil, err
			}
		}
		return mem, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.LoadFrom(vcfg)
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	pg, err := postgres.Open(cmd.Context(), cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pg.Close()
	return pg.Migrate(cmd.Context())
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.LoadFrom(vcfg)
	if err := obs.InitLogger(cfg.LogLevel); err != nil {
		return err
	}
	defer obs.Sync()
	obs.Logger.Infow("service_starting", "version", version, "backend", cfg.Backend)

	st, closeStore, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	hub := realtime.NewHub(cfg.StreamBuffer)
	app := httpapi.NewApp(cfg,
		cart.NewRegistry(),
		catalog.NewService(st),
		checkout.NewService(st, st, hub, cfg.CheckoutMaxConcurrent),
		orders.NewService(st, hub),
		hub,
	)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go app.RunJanitor(janitorCtx, cfg.SweepInterval, cfg.CartIdleTTL)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(app),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		obs.Logger.Infow("http_listen", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sigc:
		obs.Logger.Infow("shutdown_signal", "signal", s.String())
	case err := <-errc:
		obs.Logger.Errorw("http_server_error", "error", err)
		return err
	}

	app.StartShutdown()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		obs.Logger.Errorw("http_shutdown_error", "error", err)
	}
	obs.Logger.Infow("service_stopped", "carts", app.Carts.Len())
	return nil
}
