package cmd

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

	"askbot/backend"
	"askbot/config"
	"askbot/discord"
	"askbot/handler"
	"askbot/logging"
	"askbot/queue"
)

var log = logging.GetLogger()

const shutdownTimeout = 10 * time.Second

// NewRootCommand builds the askbot command tree.
func NewRootCommand() *cobra.Command {
	args := &config.CliConfig{}
	cmd := &cobra.Command{
		Use:           "askbot",
		Short:         "Discord bot that answers questions with a hosted text-generation model",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*args)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	args.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Errorln(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if err := logging.InitLogger(level, cfg.LogFormat); err != nil {
		return err
	}
	log.Infoln("Tokens loaded successfully")

	client := backend.NewBackendClient(backend.Options{
		APIURL:            cfg.APIURL,
		Token:             cfg.HuggingFaceToken,
		Timeout:           cfg.RequestTimeout,
		Backoff:           cfg.RetryBackoff,
		DefaultRetryAfter: cfg.DefaultRetryAfter,
		MaxRetryAfter:     cfg.MaxRetryAfter,
	})
	reqQueue := queue.NewRequestQueue(client, cfg.Workers, cfg.QueueSize)
	defer reqQueue.Shutdown()

	session, err := discord.NewSession(cfg.DiscordBotToken)
	if err != nil {
		return err
	}
	msgHandler := handler.NewMessageHandler(reqQueue, handler.Options{
		CommandPrefix: cfg.CommandPrefix,
		Command:       cfg.Command,
		ListenAll:     cfg.ListenAll,
		Parameters: backend.Parameters{
			MaxLength:   cfg.MaxLength,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			DoSample:    cfg.DoSample,
		},
		MaxRetries: cfg.MaxRetries,
		Typist:     discord.NewTypist(session),
	})
	bot := discord.NewBot(session, msgHandler)

	server := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           handler.NewLivenessHandler(handler.LivenessBody),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting liveness server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := bot.Open(ctx); err != nil {
		shutdownServer(server)
		return err
	}
	log.Infof("Listening for %s%s commands", cfg.CommandPrefix, cfg.Command)

	var runErr error
	select {
	case <-ctx.Done():
		log.Infoln("Shutting down")
	case err := <-serverErr:
		runErr = fmt.Errorf("liveness server failed: %w", err)
	}

	if closeErr := bot.Close(); closeErr != nil {
		log.Warnf("Closing discord session: %v", closeErr)
	}
	shutdownServer(server)
	return runErr
}

func shutdownServer(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warnf("Liveness server shutdown: %v", err)
	}
}
