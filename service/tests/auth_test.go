package service_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/oauth2"

	cachemocks "github.com/bai-labs/figmaproxy/cache/mocks"
	"github.com/bai-labs/figmaproxy/figma"
	figmamocks "github.com/bai-labs/figmaproxy/figma/mocks"
	handshakememory "github.com/bai-labs/figmaproxy/handshake/memory"
	handshakemocks "github.com/bai-labs/figmaproxy/handshake/mocks"
	"github.com/bai-labs/figmaproxy/models"
	"github.com/bai-labs/figmaproxy/service"
	"github.com/bai-labs/figmaproxy/store"
	storemocks "github.com/bai-labs/figmaproxy/store/mocks"
)

var testJWTSecret = []byte("0123456789abcdef0123456789abcdef")

// Helper to setup the service with mocks and a real in-process
// handshake store
func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *figmamocks.MockClient) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockFigma := new(figmamocks.MockClient)

	svc, err := service.NewService(
		mockStore,
		mockCache,
		handshakememory.NewMemoryHandshakeRepo(),
		mockFigma,
		&oauth2.Config{
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			RedirectURL:  "http://localhost/auth/figma/callback",
		},
		testJWTSecret,
	)
	assert.NoError(t, err)

	return svc, mockStore, mockCache, mockFigma
}

func TestNewService_ShortSecret(t *testing.T) {
	_, err := service.NewService(
		new(storemocks.MockStore),
		new(cachemocks.MockCache),
		handshakememory.NewMemoryHandshakeRepo(),
		new(figmamocks.MockClient),
		&oauth2.Config{},
		[]byte("too short"),
	)
	assert.Error(t, err)
}

func TestCreateAndVerifyJWT(t *testing.T) {
	svc, _, _, _ := setupService(t)

	token, err := svc.CreateJWT("user123", "figma456")
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	userId, figmaId, expiry, err := svc.VerifyJWT(token)
	assert.NoError(t, err)
	assert.Equal(t, "user123", userId)
	assert.Equal(t, "figma456", figmaId)
	assert.True(t, expiry.After(time.Now()))
	assert.True(t, expiry.Before(time.Now().Add(7*24*time.Hour+time.Minute)))
}

func TestVerifyJWT_Garbage(t *testing.T) {
	svc, _, _, _ := setupService(t)

	_, _, _, err := svc.VerifyJWT("invalid.token.string")
	assert.Error(t, err)
}

func TestVerifyJWT_Expired(t *testing.T) {
	svc, _, _, _ := setupService(t)

	claims := jwt.MapClaims{
		"userId":  "user123",
		"figmaId": "figma456",
		"iss":     "figmaproxy",
		"iat":     time.Now().Add(-8 * 24 * time.Hour).Unix(),
		"exp":     time.Now().Add(-24 * time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	assert.NoError(t, err)

	_, _, _, err = svc.VerifyJWT(token)
	assert.ErrorIs(t, err, service.ErrTokenExpired)
}

func TestVerifyJWT_WrongSecret(t *testing.T) {
	svc, _, _, _ := setupService(t)

	claims := jwt.MapClaims{
		"userId":  "user123",
		"figmaId": "figma456",
		"iss":     "figmaproxy",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("another-secret-another-secret-!!"))
	assert.NoError(t, err)

	_, _, _, err = svc.VerifyJWT(token)
	assert.ErrorIs(t, err, service.ErrBadSignature)
}

func TestVerifyJWT_WrongIssuer(t *testing.T) {
	svc, _, _, _ := setupService(t)

	claims := jwt.MapClaims{
		"userId":  "user123",
		"figmaId": "figma456",
		"iss":     "someone-else",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testJWTSecret)
	assert.NoError(t, err)

	_, _, _, err = svc.VerifyJWT(token)
	assert.ErrorIs(t, err, service.ErrIssuerMismatch)
}

func TestVerifyJWT_NoneAlgorithm(t *testing.T) {
	svc, _, _, _ := setupService(t)

	header := map[string]string{"alg": "none", "typ": "JWT"}
	payload := map[string]any{
		"userId":  "attacker",
		"figmaId": "attacker123",
		"iss":     "figmaproxy",
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}

	headerBytes, _ := json.Marshal(header)
	payloadBytes, _ := json.Marshal(payload)

	enc := base64.RawURLEncoding
	noneToken := enc.EncodeToString(headerBytes) + "." + enc.EncodeToString(payloadBytes) + "."

	_, _, _, err := svc.VerifyJWT(noneToken)
	assert.ErrorIs(t, err, service.ErrIssuerMismatch)
}

func TestAuthenticateToken_Success(t *testing.T) {
	svc, mockStore, _, _ := setupService(t)
	ctx := context.Background()

	user := models.User{
		Id:      "user1",
		FigmaId: "figma1",
		Email:   "test@example.com",
		Name:    "testuser",
	}
	token, _ := svc.CreateJWT(user.Id, user.FigmaId)

	mockStore.On("GetUser", ctx, user.FigmaId).Return(user, nil)

	gotUser, err := svc.AuthenticateToken(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, user.Id, gotUser.Id)
	assert.Equal(t, user.Email, gotUser.Email)
}

func TestAuthenticateToken_UserNotFound(t *testing.T) {
	svc, mockStore, _, _ := setupService(t)
	ctx := context.Background()

	token, _ := svc.CreateJWT("u1", "f1")

	mockStore.On("GetUser", ctx, "f1").Return(models.User{}, store.ErrItemNotFound)

	_, err := svc.AuthenticateToken(ctx, token)
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestAuthenticateToken_EmptyToken(t *testing.T) {
	svc, _, _, _ := setupService(t)

	_, err := svc.AuthenticateToken(context.Background(), "")
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestBuildAuthorizationURL(t *testing.T) {
	svc, _, _, _ := setupService(t)

	authURL, err := svc.BuildAuthorizationURL(context.Background())
	assert.NoError(t, err)

	parsed, err := url.Parse(authURL)
	assert.NoError(t, err)
	assert.Equal(t, "www.figma.com", parsed.Host)

	query := parsed.Query()
	assert.NotEmpty(t, query.Get("state"))
	assert.NotEmpty(t, query.Get("code_challenge"))
	assert.Equal(t, "S256", query.Get("code_challenge_method"))
	assert.Equal(t, "file_read", query.Get("scope"))
	assert.Equal(t, "client-id", query.Get("client_id"))
}

func TestBuildAuthorizationURL_FreshStateEachCall(t *testing.T) {
	svc, _, _, _ := setupService(t)

	first, err := svc.BuildAuthorizationURL(context.Background())
	assert.NoError(t, err)
	second, err := svc.BuildAuthorizationURL(context.Background())
	assert.NoError(t, err)

	firstQuery, _ := url.Parse(first)
	secondQuery, _ := url.Parse(second)
	assert.NotEqual(t, firstQuery.Query().Get("state"), secondQuery.Query().Get("state"))
	assert.NotEqual(t, firstQuery.Query().Get("code_challenge"), secondQuery.Query().Get("code_challenge"))
}

// newTokenServer returns a test token endpoint. The handler receives the
// form-decoded exchange request and decides the response.
func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, form url.Values)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		handler(w, r.PostForm)
	}))
}

func stateFromAuthURL(t *testing.T, authURL string) string {
	parsed, err := url.Parse(authURL)
	assert.NoError(t, err)
	return parsed.Query().Get("state")
}

func TestHandleCallback_Success(t *testing.T) {
	svc, mockStore, _, mockFigma := setupService(t)
	ctx := context.Background()

	var gotVerifier string
	server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		gotVerifier = form.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "figma-access",
			"refresh_token": "figma-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	defer server.Close()
	svc.OAuthConfig.Endpoint = oauth2.Endpoint{TokenURL: server.URL + "/token"}

	authURL, err := svc.BuildAuthorizationURL(ctx)
	assert.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	mockFigma.On("Me", mock.Anything, "figma-access").Return(figma.Me{
		Id:     "figma1",
		Email:  "test@example.com",
		Handle: "testuser",
	}, nil)

	mockStore.On("UpsertUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.FigmaId == "figma1" && u.AccessToken == "figma-access" && u.RefreshToken == "figma-refresh"
	})).Return(models.User{Id: "user1", FigmaId: "figma1"}, nil)

	user, token, err := svc.HandleCallback(ctx, "auth-code", state)
	assert.NoError(t, err)
	assert.Equal(t, "user1", user.Id)
	assert.NotEmpty(t, gotVerifier)

	userId, figmaId, _, err := svc.VerifyJWT(token)
	assert.NoError(t, err)
	assert.Equal(t, "user1", userId)
	assert.Equal(t, "figma1", figmaId)
}

func TestHandleCallback_UnknownState(t *testing.T) {
	svc, mockStore, _, _ := setupService(t)

	_, _, err := svc.HandleCallback(context.Background(), "auth-code", "forged-state")
	assert.ErrorIs(t, err, service.ErrInvalidState)
	mockStore.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
}

func TestHandleCallback_EmptyState(t *testing.T) {
	svc, mockStore, _, _ := setupService(t)

	_, _, err := svc.HandleCallback(context.Background(), "auth-code", "")
	assert.ErrorIs(t, err, service.ErrInvalidState)
	mockStore.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
}

func TestHandleCallback_StateConsumedOnce(t *testing.T) {
	svc, mockStore, _, mockFigma := setupService(t)
	ctx := context.Background()

	server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "figma-access",
			"token_type":   "Bearer",
		})
	})
	defer server.Close()
	svc.OAuthConfig.Endpoint = oauth2.Endpoint{TokenURL: server.URL + "/token"}

	authURL, err := svc.BuildAuthorizationURL(ctx)
	assert.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	mockFigma.On("Me", mock.Anything, mock.Anything).Return(figma.Me{Id: "figma1"}, nil)
	mockStore.On("UpsertUser", mock.Anything, mock.Anything).Return(models.User{Id: "user1", FigmaId: "figma1"}, nil)

	_, _, err = svc.HandleCallback(ctx, "auth-code", state)
	assert.NoError(t, err)

	// Replay of the same state must fail
	_, _, err = svc.HandleCallback(ctx, "auth-code", state)
	assert.ErrorIs(t, err, service.ErrInvalidState)
}

func TestHandleCallback_ExchangeRejected(t *testing.T) {
	svc, mockStore, _, _ := setupService(t)
	ctx := context.Background()

	server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
	})
	defer server.Close()
	svc.OAuthConfig.Endpoint = oauth2.Endpoint{TokenURL: server.URL + "/token"}

	authURL, err := svc.BuildAuthorizationURL(ctx)
	assert.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, _, err = svc.HandleCallback(ctx, "stolen-code", state)
	assert.ErrorIs(t, err, service.ErrInvalidGrant)
	mockStore.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
}

func TestHandleCallback_TokenEndpointDown(t *testing.T) {
	svc, mockStore, _, _ := setupService(t)
	ctx := context.Background()

	server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer server.Close()
	svc.OAuthConfig.Endpoint = oauth2.Endpoint{TokenURL: server.URL + "/token"}

	authURL, err := svc.BuildAuthorizationURL(ctx)
	assert.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	_, _, err = svc.HandleCallback(ctx, "auth-code", state)
	assert.ErrorIs(t, err, service.ErrExchangeFailed)
	mockStore.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
}

func TestHandleCallback_ProfileFetchFails(t *testing.T) {
	svc, mockStore, _, mockFigma := setupService(t)
	ctx := context.Background()

	server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "figma-access",
			"token_type":   "Bearer",
		})
	})
	defer server.Close()
	svc.OAuthConfig.Endpoint = oauth2.Endpoint{TokenURL: server.URL + "/token"}

	authURL, err := svc.BuildAuthorizationURL(ctx)
	assert.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	mockFigma.On("Me", mock.Anything, "figma-access").Return(figma.Me{}, assert.AnError)

	_, _, err = svc.HandleCallback(ctx, "auth-code", state)
	assert.ErrorIs(t, err, service.ErrExchangeFailed)
	mockStore.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
}

func TestHandleCallback_VerifierSentToTokenEndpoint(t *testing.T) {
	svc, mockStore, _, mockFigma := setupService(t)
	ctx := context.Background()

	var sentVerifier string
	server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		sentVerifier = form.Get("code_verifier")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "figma-access",
			"token_type":   "Bearer",
		})
	})
	defer server.Close()
	svc.OAuthConfig.Endpoint = oauth2.Endpoint{TokenURL: server.URL + "/token"}

	authURL, err := svc.BuildAuthorizationURL(ctx)
	assert.NoError(t, err)
	state := stateFromAuthURL(t, authURL)

	parsed, _ := url.Parse(authURL)
	challenge := parsed.Query().Get("code_challenge")

	mockFigma.On("Me", mock.Anything, mock.Anything).Return(figma.Me{Id: "figma1"}, nil)
	mockStore.On("UpsertUser", mock.Anything, mock.Anything).Return(models.User{Id: "user1", FigmaId: "figma1"}, nil)

	_, _, err = svc.HandleCallback(ctx, "auth-code", state)
	assert.NoError(t, err)

	// The verifier paired with this state must hash to the challenge
	// advertised in the authorization URL
	assert.NotEmpty(t, sentVerifier)
	assert.Equal(t, challenge, oauth2.S256ChallengeFromVerifier(sentVerifier))
	assert.False(t, strings.Contains(authURL, sentVerifier))
}

func TestBuildAuthorizationURL_SweepFailureTolerated(t *testing.T) {
	mockHandshakes := new(handshakemocks.MockRepo)

	svc, err := service.NewService(
		new(storemocks.MockStore),
		new(cachemocks.MockCache),
		mockHandshakes,
		new(figmamocks.MockClient),
		&oauth2.Config{ClientID: "client-id"},
		testJWTSecret,
	)
	assert.NoError(t, err)

	mockHandshakes.On("Sweep", mock.Anything, mock.Anything).Return(0, assert.AnError)
	mockHandshakes.On("Insert", mock.Anything, mock.Anything).Return(nil)

	_, err = svc.BuildAuthorizationURL(context.Background())
	assert.NoError(t, err)
	mockHandshakes.AssertCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestBuildAuthorizationURL_InsertFailure(t *testing.T) {
	mockHandshakes := new(handshakemocks.MockRepo)

	svc, err := service.NewService(
		new(storemocks.MockStore),
		new(cachemocks.MockCache),
		mockHandshakes,
		new(figmamocks.MockClient),
		&oauth2.Config{ClientID: "client-id"},
		testJWTSecret,
	)
	assert.NoError(t, err)

	mockHandshakes.On("Sweep", mock.Anything, mock.Anything).Return(0, nil)
	mockHandshakes.On("Insert", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err = svc.BuildAuthorizationURL(context.Background())
	assert.Error(t, err)
}
