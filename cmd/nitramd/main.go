// Command nitramd is a demo bootstrap for the nitram gateway: it wires
// a handful of example handlers into a Builder, serves the WebSocket
// upgrade endpoint alongside a static demo page, and shuts down
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/martinschaer/nitram"
	"github.com/martinschaer/nitram/authn"
	"github.com/martinschaer/nitram/internal/logger"
	"github.com/martinschaer/nitram/token"
	"github.com/martinschaer/nitram/transport/ws"
)

// greeter is a toy application resource: real deployments would
// inject a database handle or a repository here instead.
type greeter struct{ greeting string }

func (*greeter) NitramResource() {}

func helloHandler(g *greeter, _ nitram.AnonymousSession) (string, error) {
	return g.greeting, nil
}

type echoParams struct {
	Msg string `json:"msg"`
}

func echoHandler(auth nitram.AuthenticatedSession, params echoParams) (string, error) {
	return "Hello " + auth.UserID + ": " + params.Msg, nil
}

func signalHandler(auth nitram.AuthenticatedSession) (string, error) {
	return "Hello " + auth.UserID, nil
}

func main() {
	logger.Initialize(getEnv("LOG_LEVEL", "info"), getEnv("LOG_PRETTY", "true") == "true")

	port := getEnv("API_PORT", "8000")
	strategy := token.EmailLink
	if getEnv("AUTH_STRATEGY", "EmailLink") == "JWTBearer" {
		strategy = token.JWTBearer
	}
	signingKey := []byte(getEnv("AUTH_JWT_SECRET", "dev-secret-change-me"))
	janitorInterval := time.Duration(getEnvInt("JANITOR_INTERVAL_SECONDS", 60)) * time.Second

	builder := nitram.NewBuilder().
		PingIntervalSeconds(getEnvInt("PING_INTERVAL_SECONDS", 5)).
		TimeoutSeconds(getEnvInt("SESSION_TIMEOUT_SECONDS", 10)).
		ServerMessagesIntervalMillis(getEnvInt("PUSH_INTERVAL_MILLIS", 0)).
		MaxFrameSize(int64(getEnvInt("MAX_FRAME_SIZE_BYTES", 128*1024)))

	auth := authn.New(builder.Store(), strategy, signingKey)
	builder.AddPublicHandler("Authenticate", auth.Authenticate)

	builder.AddResource(&greeter{greeting: "hello"})
	builder.AddPublicHandler("Hello", helloHandler)
	builder.AddPrivateHandler("Echo", echoHandler)
	builder.AddPushHandler("Signal", signalHandler)

	engine := builder.Build()
	stopJanitor := engine.StartJanitor(janitorInterval)
	defer stopJanitor()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginRequestLog())

	ws.NewHandlerFromEnv(engine).RegisterRoutes(router)
	router.StaticFile("/", "./web/index.html")
	router.Static("/assets", "./web/assets")

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", port).Msg("nitramd listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func ginRequestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
