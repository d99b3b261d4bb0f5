package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/safar/storefront/internal/api"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/coupon"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/logging"
	"github.com/safar/storefront/internal/payment/stripe"
	"github.com/safar/storefront/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending up migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logging.New(cfg.Log)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	log.Info("connected to database")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if migrateOnStart {
		if _, err := database.Migrate(ctx, db, database.MigrateUp, log); err != nil {
			return err
		}
	}

	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not set; checkout calls will fail")
	}

	publisher, closePublisher := newPublisher(cfg.AMQP, log)
	defer closePublisher()

	st := store.New(db)
	coupons := coupon.NewValidator(st)
	orders := checkout.NewService(st, coupons, stripe.New(cfg.Stripe), publisher, log)

	router := api.NewRouter(api.Deps{
		Orders:  orders,
		Coupons: coupons,
		Repo:    st,
		Health: func(ctx context.Context) error {
			return database.HealthCheck(ctx, db)
		},
		Log: log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newPublisher connects to the broker when AMQP_URL is set. Events are
// best-effort, so a broker that cannot be reached only disables them.
func newPublisher(cfg config.AMQPConfig, log logrus.FieldLogger) (events.Publisher, func()) {
	if cfg.URL == "" {
		log.Info("AMQP_URL is not set; order events are disabled")
		return events.NopPublisher{}, func() {}
	}

	p, err := events.DialAMQP(cfg.URL, cfg.Exchange, log)
	if err != nil {
		log.WithError(err).Warn("event broker unavailable; order events are disabled")
		return events.NopPublisher{}, func() {}
	}

	return p, func() {
		if err := p.Close(); err != nil {
			log.WithError(err).Warn("close event publisher")
		}
	}
}
