package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/GregMSThompson/household-ledger/internal/bootstrap"
	"github.com/GregMSThompson/household-ledger/internal/config"
	"github.com/GregMSThompson/household-ledger/internal/handlers"
	"github.com/GregMSThompson/household-ledger/internal/middleware"
	"github.com/GregMSThompson/household-ledger/internal/response"
	"github.com/GregMSThompson/household-ledger/internal/router"
	"github.com/GregMSThompson/household-ledger/internal/services"
)

const shutdownTimeout = 10 * time.Second

func exitOnError(message string, err error, log *slog.Logger) {
	if err != nil {
		log.Error(message, "error", err)
		os.Exit(1)
	}
}

func main() {
	// a missing .env is fine outside local development
	_ = godotenv.Load()

	// bootstrap
	cfg := config.New()
	bs, err := bootstrap.Run(cfg)
	if err != nil {
		bs.Close()
	}
	exitOnError("bootstrap failed", err, bs.Log)
	defer bs.Close()

	// services
	membershipSvc := services.NewMembershipService(bs.Store)
	categorySvc := services.NewCategoryService(bs.Store, bs.Publisher)
	ledgerSvc := services.NewLedgerService(bs.Store, categorySvc, bs.Publisher, bs.Metrics)
	aggregationSvc := services.NewAggregationService(bs.Store, bs.Location)
	inviteSvc := services.NewInviteService(bs.Store, membershipSvc, bs.Publisher, cfg.InviteBaseURL)

	// response handler
	rh := response.New(bs.Log)

	// dependancies
	deps := new(handlers.Deps)
	deps.Log = bs.Log
	deps.ResponseHandler = rh
	deps.MembershipSvc = membershipSvc
	deps.InviteSvc = inviteSvc
	deps.CategorySvc = categorySvc
	deps.LedgerSvc = ledgerSvc
	deps.AggregationSvc = aggregationSvc
	if bs.VertexAdapter != nil {
		deps.AssistantSvc = services.NewAssistantService(bs.VertexAdapter, bs.Store, ledgerSvc, aggregationSvc, bs.Store, services.AssistantOptions{
			MaxHops: cfg.AIMaxHops,
			TTL:     cfg.AITTL,
			Metrics: bs.Metrics,
		})
	}

	// router
	mw := middleware.NewMiddleware(bs.Verifier, rh)
	r := router.NewRouter(deps, mw, bs.Metrics, cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		bs.Log.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			exitOnError("server start failed", err, bs.Log)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		bs.Log.Error("server shutdown failed", "error", err)
	}
	bs.Log.Info("server stopped")
}
