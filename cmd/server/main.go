package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-oauth-provider/auth"
	"github.com/jrsteele09/go-oauth-provider/clients/fakerepo"
	"github.com/jrsteele09/go-oauth-provider/internal/config"
	"github.com/jrsteele09/go-oauth-provider/server"
	"github.com/jrsteele09/go-oauth-provider/server/loginsession"
	"github.com/jrsteele09/go-oauth-provider/users/repofake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "oauth-provider",
		Short: "OAuth 2.0 authorization and token server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg := config.New()
	displayAppname(cfg.GetAppName())

	clientRepo := fakerepo.NewFakeClientRepo()
	userRepo := repofake.NewFakeUserRepo()
	if cfg.GetEnv() == "DEV" {
		if err := server.SeedDevData(clientRepo, userRepo); err != nil {
			return errors.Wrap(err, "[run] SeedDevData")
		}
	}

	loginSessions := loginsession.NewCacheRepo(cfg.GetLoginSessionTTL())
	srv, err := server.New(cfg, auth.Repos{Clients: clientRepo, Users: userRepo}, loginSessions)
	if err != nil {
		return errors.Wrap(err, "[run] server.New")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv.StartJanitor(ctx)

	httpServer := &http.Server{Addr: cfg.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

func listenAndServe(httpServer *http.Server) {
	log.Info().Str("addr", httpServer.Addr).Msg("server listening")
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "[shutdown] server.Shutdown")
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
