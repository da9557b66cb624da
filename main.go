package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/bai-labs/figmaproxy/api"
	"github.com/bai-labs/figmaproxy/cache"
	cachememory "github.com/bai-labs/figmaproxy/cache/memory"
	cacheredis "github.com/bai-labs/figmaproxy/cache/redis"
	"github.com/bai-labs/figmaproxy/config"
	"github.com/bai-labs/figmaproxy/figma"
	"github.com/bai-labs/figmaproxy/handshake"
	handshakememory "github.com/bai-labs/figmaproxy/handshake/memory"
	handshakeredis "github.com/bai-labs/figmaproxy/handshake/redis"
	"github.com/bai-labs/figmaproxy/mq"
	"github.com/bai-labs/figmaproxy/mq/sqsmq"
	"github.com/bai-labs/figmaproxy/store/dynamo"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.DevMode {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	identityStore, err := dynamo.NewDynamoIdentityStore(ctx, cfg.DevMode, cfg.DynamoDBEndpoint, cfg.DynamoDBTable)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create dynamodb store")
	}

	// The document cache and handshake store are best-effort: without
	// Redis the service falls back to in-process state, and a Redis that
	// is configured but unreachable degrades to an uncached passthrough.
	var documentCache cache.DocumentCache
	var handshakes handshake.Repo
	if cfg.RedisEndpoint == "" {
		documentCache = cachememory.NewMemoryDocumentCache()
		handshakes = handshakememory.NewMemoryHandshakeRepo()
	} else {
		redisCache, err := cacheredis.NewRedisDocumentCache(ctx, cfg.DevMode, cfg.RedisEndpoint)
		if err != nil {
			log.Warn().Err(err).Msg("redis unreachable, running without document cache")
			documentCache = cache.NoopDocumentCache{}
			handshakes = handshakememory.NewMemoryHandshakeRepo()
		} else {
			documentCache = redisCache
			redisHandshakes, err := handshakeredis.NewRedisHandshakeRepo(ctx, cfg.DevMode, cfg.RedisEndpoint)
			if err != nil {
				log.Warn().Err(err).Msg("redis unreachable for handshakes, using in-process store")
				handshakes = handshakememory.NewMemoryHandshakeRepo()
			} else {
				handshakes = redisHandshakes
			}
		}
	}

	var invalidationQueue mq.MessageQueue
	if cfg.InvalidationQueue != "" {
		queue, err := sqsmq.NewSQSMessageQueue(ctx, cfg.DevMode, cfg.SQSEndpoint, cfg.InvalidationQueue)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create SQS MQ")
		}
		invalidationQueue = queue
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.FigmaClientID,
		ClientSecret: cfg.FigmaClientSecret,
		RedirectURL:  cfg.FigmaRedirectURI,
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	figmaProxyApi, err := api.NewFigmaProxyAPI(
		identityStore,
		documentCache,
		handshakes,
		invalidationQueue,
		figma.NewHTTPClient(""),
		oauthConfig,
		cfg.JWTSecret,
		cfg.FrontendURL,
		!cfg.DevMode,
		shutdownCtx,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create figma proxy api")
	}

	mux := http.NewServeMux()
	figmaProxyApi.RegisterRoutes(mux)

	server := &http.Server{Addr: ":" + cfg.HostPort, Handler: mux}
	go func() {
		<-shutdownCtx.Done()
		log.Info().Msg("server shutting down...")
		server.Shutdown(context.Background())
	}()

	log.Info().Str("port", cfg.HostPort).Msg("starting server")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
