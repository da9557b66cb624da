package service

import (
	"errors"

	"golang.org/x/oauth2"

	"github.com/bai-labs/figmaproxy/cache"
	"github.com/bai-labs/figmaproxy/figma"
	"github.com/bai-labs/figmaproxy/handshake"
	"github.com/bai-labs/figmaproxy/store"
)

// Figma's token endpoint authenticates the client with Basic auth.
var figmaOAuthEndpoint = oauth2.Endpoint{
	AuthURL:   "https://www.figma.com/oauth",
	TokenURL:  "https://api.figma.com/v1/oauth/token",
	AuthStyle: oauth2.AuthStyleInHeader,
}

const oauthScope = "file_read"

const minJWTSecretBytes = 32

type Service struct {
	Store       store.IdentityStore
	Cache       cache.DocumentCache
	Handshakes  handshake.Repo
	Figma       figma.Client
	OAuthConfig *oauth2.Config
	JWTSecret   []byte
}

func NewService(
	identityStore store.IdentityStore,
	documentCache cache.DocumentCache,
	handshakes handshake.Repo,
	figmaClient figma.Client,
	oauthConfig *oauth2.Config,
	jwtSecret []byte,
) (*Service, error) {
	if len(jwtSecret) < minJWTSecretBytes {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if oauthConfig == nil {
		return nil, errors.New("oauth config is required")
	}
	oauthConfig.Endpoint = figmaOAuthEndpoint
	oauthConfig.Scopes = []string{oauthScope}

	return &Service{
		Store:       identityStore,
		Cache:       documentCache,
		Handshakes:  handshakes,
		Figma:       figmaClient,
		OAuthConfig: oauthConfig,
		JWTSecret:   jwtSecret,
	}, nil
}
