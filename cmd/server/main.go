package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/jusunglee/railboard/api/handlers"
	"github.com/jusunglee/railboard/pkg/railboard"
)

func main() {
	if err := railboard.LoadDotEnv("."); err != nil {
		slog.Error("Failed to load env files", "error", err)
		os.Exit(1)
	}

	config, err := railboard.FromEnv()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	var (
		port           = flag.String("port", "", "Server port")
		consumerKey    = flag.String("consumer-key", "", "ODPT consumer key")
		challengeKey   = flag.String("challenge-consumer-key", "", "ODPT challenge consumer key")
		mock           = flag.Bool("mock", config.Mock, "Serve generated data instead of ODPT")
		updateInterval = flag.Duration("update-interval", config.UpdateInterval, "Feed update interval")
		timeWeighted   = flag.Bool("time-weighted", config.TimeWeighted, "Space trains by timetable running time")
		allowedOrigins = flag.String("allowed-origins", "*", "Comma-separated CORS origins")
		logLevel       = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	)
	flag.Parse()

	// Fall back to environment variables for flags that were not provided
	if *port == "" {
		*port = os.Getenv("PORT")
	}
	if *port == "" {
		*port = "8080"
	}
	if *consumerKey != "" {
		config.ConsumerKey = *consumerKey
	}
	if *challengeKey != "" {
		config.ChallengeConsumerKey = *challengeKey
	}
	if *logLevel == "" {
		*logLevel = os.Getenv("LOG_LEVEL")
	}
	config.Mock = *mock
	config.UpdateInterval = *updateInterval
	config.TimeWeighted = *timeWeighted

	logger := railboard.NewLogger(os.Stderr, *logLevel)
	slog.SetDefault(logger)

	client, err := railboard.NewLocal(config, logger)
	if err != nil {
		logger.Error("Failed to create client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	r := mux.NewRouter()
	h := handlers.NewHandler(client)
	h.RegisterRoutes(r)
	r.Use(loggingMiddleware(logger))

	// CORS wraps the router so preflight requests never reach route matching
	handler := cors.Handler(cors.Options{
		AllowedOrigins: splitList(*allowedOrigins),
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	})(r)

	srv := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("Server starting", "port", *port, "mock", config.Mock)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

func loggingMiddleware(logger *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "uri", r.RequestURI, "duration", time.Since(start))
		})
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
