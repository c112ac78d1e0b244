package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/medbill/internal/email"
	"github.com/gyeh/medbill/internal/exitcode"
	"github.com/gyeh/medbill/internal/gemini"
	"github.com/gyeh/medbill/internal/hospital"
	"github.com/gyeh/medbill/internal/httpapi"
	"github.com/gyeh/medbill/internal/logging"
	"github.com/gyeh/medbill/internal/pipeline"
	"github.com/gyeh/medbill/internal/session"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bill analysis HTTP service",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "8000", "Listen port (or set PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prices, err := buildResolver(ctx, log)
	if err != nil {
		log.Error().Err(err).Msg("fee table invalid")
		os.Exit(exitcode.ValidationError)
	}
	defer prices.Close()

	hospitals := hospital.NewDirectory(log)
	if cfg.HospitalDirectoryFile != "" {
		hospitals, err = hospital.LoadDirectory(cfg.HospitalDirectoryFile, log)
		if err != nil {
			log.Error().Err(err).Msg("hospital directory invalid")
			os.Exit(exitcode.ValidationError)
		}
	}

	deps := pipeline.Deps{
		Store:     session.NewStore(),
		Prices:    prices.resolver,
		Hospitals: hospitals,
	}
	caps := prices.capabilities()
	if cfg.GeminiAPIKey != "" {
		client := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiBaseURL, cfg.GeminiModel, cfg.AITimeout, log)
		deps.Extractor = gemini.NewExtractor(client)
		deps.Conversation = gemini.NewConversation(client)
		deps.Drafter = gemini.NewDrafter(client)
		caps.Extraction, caps.Conversation, caps.Drafting = true, true, true
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set; extraction, interview and drafting are unavailable")
	}
	if cfg.ResendAPIKey != "" {
		deps.Email = email.NewSender(cfg.ResendAPIKey, cfg.ResendBaseURL, cfg.EmailFrom, cfg.AITimeout, log)
		caps.Email = true
	} else {
		log.Warn().Msg("RESEND_API_KEY not set; dispute email is unavailable")
	}

	p := pipeline.New(deps, log)
	srv := httpapi.NewHTTPServer(":"+cfg.Port, httpapi.New(cfg, p, caps, log), cfg.RequestTimeout)

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Interface("capabilities", caps).
			Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(exitcode.ServeError)
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
			os.Exit(exitcode.ServeError)
		}
	}
	return nil
}
