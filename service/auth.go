package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/bai-labs/figmaproxy/handshake"
	"github.com/bai-labs/figmaproxy/models"
	"github.com/bai-labs/figmaproxy/store"
)

const (
	tokenIssuer     = "figmaproxy"
	sessionTokenTTL = 7 * 24 * time.Hour
)

// BuildAuthorizationURL starts a login attempt: it generates the PKCE
// material and state nonce, records the handshake session, and returns
// the Figma authorization URL to redirect the caller to.
func (s *Service) BuildAuthorizationURL(ctx context.Context) (string, error) {
	verifier := newVerifier()
	state, err := newState()
	if err != nil {
		return "", err
	}
	sessionId, err := newSessionId()
	if err != nil {
		return "", err
	}

	// Opportunistic sweep keeps the handshake store bounded without a
	// background job
	if _, err := s.Handshakes.Sweep(ctx, time.Now()); err != nil {
		log.Warn().Err(err).Msg("handshake sweep failed")
	}

	session := handshake.Session{
		State:     state,
		SessionId: sessionId,
		Verifier:  verifier,
		CreatedAt: time.Now(),
	}
	if err := s.Handshakes.Insert(ctx, session); err != nil {
		return "", fmt.Errorf("failed to record handshake session: %w", err)
	}

	return s.OAuthConfig.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", challengeOf(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	), nil
}

// HandleCallback validates the OAuth callback, exchanges the code for
// tokens using the verifier bound to this state, fetches the Figma
// profile and upserts the user. No identity write happens on any
// failure before the upsert.
func (s *Service) HandleCallback(ctx context.Context, code string, state string) (models.User, string, error) {
	if state == "" {
		return models.User{}, "", ErrInvalidState
	}

	if _, err := s.Handshakes.Sweep(ctx, time.Now()); err != nil {
		log.Warn().Err(err).Msg("handshake sweep failed")
	}

	session, err := s.Handshakes.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, handshake.ErrNotFound) {
			return models.User{}, "", ErrInvalidState
		}
		return models.User{}, "", err
	}
	if session.Verifier == "" {
		return models.User{}, "", ErrPkceMissing
	}

	tok, err := s.OAuthConfig.Exchange(ctx, code, oauth2.VerifierOption(session.Verifier))
	if err != nil {
		log.Warn().Err(err).Msg("token exchange with figma failed")
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
			retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
			return models.User{}, "", ErrInvalidGrant
		}
		return models.User{}, "", ErrExchangeFailed
	}

	me, err := s.Figma.Me(ctx, tok.AccessToken)
	if err != nil {
		log.Warn().Err(err).Msg("figma profile fetch failed")
		return models.User{}, "", ErrExchangeFailed
	}

	user, err := s.Store.UpsertUser(ctx, models.User{
		FigmaId:      me.Id,
		Email:        me.Email,
		Name:         me.Handle,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	})
	if err != nil {
		return models.User{}, "", fmt.Errorf("failed to persist user: %w", err)
	}

	token, err := s.CreateJWT(user.Id, user.FigmaId)
	if err != nil {
		return models.User{}, "", fmt.Errorf("token generation failed: %w", err)
	}

	return user, token, nil
}

func (s *Service) CreateJWT(id string, figmaId string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId":  id,
		"figmaId": figmaId,
		"iss":     tokenIssuer,
		"iat":     now.Unix(),
		"exp":     now.Add(sessionTokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.JWTSecret)
}

func (s *Service) VerifyJWT(tokenString string) (string, string, time.Time, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, ErrIssuerMismatch
		}
		return s.JWTSecret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return "", "", time.Time{}, ErrTokenExpired
		case errors.Is(err, ErrIssuerMismatch), errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return "", "", time.Time{}, ErrIssuerMismatch
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return "", "", time.Time{}, ErrBadSignature
		default:
			return "", "", time.Time{}, ErrUnauthenticated
		}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", time.Time{}, ErrUnauthenticated
	}

	userId, ok := claims["userId"].(string)
	if !ok {
		return "", "", time.Time{}, ErrUnauthenticated
	}
	figmaId, ok := claims["figmaId"].(string)
	if !ok {
		return "", "", time.Time{}, ErrUnauthenticated
	}
	expFloat, ok := claims["exp"].(float64)
	if !ok {
		return "", "", time.Time{}, ErrUnauthenticated
	}

	return userId, figmaId, time.Unix(int64(expFloat), 0), nil
}

func (s *Service) AuthenticateToken(ctx context.Context, token string) (models.User, error) {
	if len(token) == 0 {
		return models.User{}, ErrUnauthenticated
	}

	_, figmaId, _, err := s.VerifyJWT(token)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.Store.GetUser(ctx, figmaId)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			return models.User{}, ErrUnauthenticated
		}
		return models.User{}, err
	}

	return user, nil
}
