package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/bai-labs/figmaproxy/api/rest"
	"github.com/bai-labs/figmaproxy/cache"
	"github.com/bai-labs/figmaproxy/figma"
	"github.com/bai-labs/figmaproxy/handshake"
	"github.com/bai-labs/figmaproxy/mq"
	"github.com/bai-labs/figmaproxy/service"
	"github.com/bai-labs/figmaproxy/store"
	"github.com/bai-labs/figmaproxy/worker"
)

type FigmaProxyAPI struct {
	restHandler *rest.Handler
	shutdownCtx context.Context
}

func NewFigmaProxyAPI(
	identityStore store.IdentityStore,
	documentCache cache.DocumentCache,
	handshakes handshake.Repo,
	invalidationQueue mq.MessageQueue,
	figmaClient figma.Client,
	oauthConfig *oauth2.Config,
	jwtSecret []byte,
	frontendURL string,
	secureCookies bool,
	shutdownCtx context.Context,
) (*FigmaProxyAPI, error) {
	svc, err := service.NewService(
		identityStore,
		documentCache,
		handshakes,
		figmaClient,
		oauthConfig,
		jwtSecret,
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create service")
		return &FigmaProxyAPI{}, err
	}

	if invalidationQueue != nil {
		mqConsumer := worker.NewMQConsumer(invalidationQueue, svc)
		go mqConsumer.Run(shutdownCtx)
	}

	restHandler := rest.NewHandler(svc, frontendURL, secureCookies)

	return &FigmaProxyAPI{
		restHandler: restHandler,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (figmaProxyAPI *FigmaProxyAPI) RegisterRoutes(mux *http.ServeMux) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /auth/figma/login", figmaProxyAPI.restHandler.HandleFigmaLogin)
	mux.HandleFunc("GET /auth/figma/callback", figmaProxyAPI.restHandler.HandleFigmaCallback)
	mux.HandleFunc("GET /me", figmaProxyAPI.restHandler.HandleMe)
	mux.HandleFunc("POST /logout", figmaProxyAPI.restHandler.HandleLogout)

	mux.HandleFunc("GET /figma/file/{fileKey}", figmaProxyAPI.restHandler.HandleGetFile)
	mux.HandleFunc("GET /figma/instance/{fileKey}/{nodeId}", figmaProxyAPI.restHandler.HandleGetInstance)
	mux.HandleFunc("DELETE /figma/cache/file/{fileKey}", figmaProxyAPI.restHandler.HandleInvalidateFile)
	mux.HandleFunc("DELETE /figma/cache/instance/{fileKey}/{nodeId}", figmaProxyAPI.restHandler.HandleInvalidateInstance)
	mux.HandleFunc("DELETE /figma/cache/all", figmaProxyAPI.restHandler.HandleInvalidateAll)
	mux.HandleFunc("GET /figma/cache/stats", figmaProxyAPI.restHandler.HandleCacheStats)
}
