package rest

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/bai-labs/figmaproxy/models"
	"github.com/bai-labs/figmaproxy/service"
)

const sessionCookieName = "token"

const sessionCookieMaxAge = 7 * 24 * 60 * 60

type Handler struct {
	Service       *service.Service
	FrontendURL   string
	SecureCookies bool
	loginLimiter  *rate.Limiter
}

func NewHandler(svc *service.Service, frontendURL string, secureCookies bool) *Handler {
	return &Handler{
		Service:       svc,
		FrontendURL:   frontendURL,
		SecureCookies: secureCookies,
		loginLimiter:  rate.NewLimiter(rate.Every(time.Second), 10),
	}
}

func (h *Handler) HandleFigmaLogin(w http.ResponseWriter, r *http.Request) {
	if !h.loginLimiter.Allow() {
		h.sendError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	authURL, err := h.Service.BuildAuthorizationURL(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to start oauth flow")
		h.sendError(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	http.Redirect(w, r, authURL, http.StatusFound)
}

func (h *Handler) HandleFigmaCallback(w http.ResponseWriter, r *http.Request) {
	if !h.loginLimiter.Allow() {
		h.sendError(w, http.StatusTooManyRequests, "too many requests")
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	_, token, err := h.Service.HandleCallback(r.Context(), code, state)
	if err != nil {
		h.redirectWithError(w, r, err)
		return
	}

	h.setSessionCookie(w, token)
	http.Redirect(w, r, h.FrontendURL, http.StatusFound)
}

// redirectWithError sends the browser back to the frontend login page
// with a coarse error code. Remote error detail stays in the logs.
func (h *Handler) redirectWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := "auth_failed"
	switch {
	case errors.Is(err, service.ErrInvalidState):
		code = "invalid_state"
	case errors.Is(err, service.ErrPkceMissing):
		code = "pkce_missing"
	case errors.Is(err, service.ErrInvalidGrant):
		code = "invalid_grant"
	}
	log.Warn().Err(err).Str("code", code).Msg("oauth callback failed")

	http.Redirect(w, r, h.FrontendURL+"/login?error="+url.QueryEscape(code), http.StatusFound)
}

type meResponse struct {
	User meUser `json:"user"`
}

type meUser struct {
	Id      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	FigmaId string `json:"figmaId"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	resp := meResponse{
		User: meUser{
			Id:      user.Id,
			Email:   user.Email,
			Name:    user.Name,
			FigmaId: user.FigmaId,
		},
	}
	h.sendResponse(w, resp)
}

type logoutResponse struct {
	Message string `json:"message"`
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.clearSessionCookie(w)
	h.sendResponse(w, logoutResponse{Message: "logged out"})
}

type fileResponse struct {
	FileKey       string           `json:"fileKey"`
	FileName      string           `json:"fileName"`
	Tree          *models.TreeNode `json:"tree"`
	LastModified  time.Time        `json:"lastModified"`
	Cached        bool             `json:"cached"`
	CachedAt      *time.Time       `json:"cachedAt,omitempty"`
	WasCompressed bool             `json:"wasCompressed"`
}

func (h *Handler) HandleGetFile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	fileKey := r.PathValue("fileKey")
	result, err := h.Service.GetFile(r.Context(), user, fileKey)
	if err != nil {
		h.sendDocumentError(w, err)
		return
	}

	resp := fileResponse{
		FileKey:       fileKey,
		FileName:      result.FileName,
		Tree:          result.Tree,
		LastModified:  result.LastModified,
		Cached:        result.Cached,
		WasCompressed: result.WasCompressed,
	}
	if result.Cached {
		resp.CachedAt = &result.CachedAt
	}
	h.sendResponse(w, resp)
}

type instanceResponse struct {
	FileKey       string           `json:"fileKey"`
	NodeId        string           `json:"nodeId"`
	Tree          *models.TreeNode `json:"tree"`
	ThumbnailUrl  string           `json:"thumbnailUrl,omitempty"`
	LastModified  time.Time        `json:"lastModified"`
	Cached        bool             `json:"cached"`
	CachedAt      *time.Time       `json:"cachedAt,omitempty"`
	WasCompressed bool             `json:"wasCompressed"`
}

func (h *Handler) HandleGetInstance(w http.ResponseWriter, r *http.Request) {
	user, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	fileKey := r.PathValue("fileKey")
	nodeId := r.PathValue("nodeId")
	result, err := h.Service.GetNode(r.Context(), user, fileKey, nodeId)
	if err != nil {
		h.sendDocumentError(w, err)
		return
	}

	resp := instanceResponse{
		FileKey:       fileKey,
		NodeId:        nodeId,
		Tree:          result.Tree,
		ThumbnailUrl:  result.ThumbnailUrl,
		LastModified:  result.LastModified,
		Cached:        result.Cached,
		WasCompressed: result.WasCompressed,
	}
	if result.Cached {
		resp.CachedAt = &result.CachedAt
	}
	h.sendResponse(w, resp)
}

func (h *Handler) sendDocumentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrNodeNotFound):
		h.sendError(w, http.StatusNotFound, "node not found")
	case errors.Is(err, service.ErrRemoteFetchFailed):
		log.Error().Err(err).Msg("figma fetch failed")
		h.sendError(w, http.StatusBadGateway, "failed to fetch document")
	default:
		log.Error().Err(err).Msg("document request failed")
		h.sendError(w, http.StatusInternalServerError, "internal error")
	}
}

type invalidateFileResponse struct {
	Message string `json:"message"`
	FileKey string `json:"fileKey"`
}

func (h *Handler) HandleInvalidateFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	fileKey := r.PathValue("fileKey")
	if err := h.Service.InvalidateFileCache(r.Context(), fileKey); err != nil {
		log.Error().Err(err).Str("fileKey", fileKey).Msg("file invalidation failed")
		h.sendError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}

	h.sendResponse(w, invalidateFileResponse{
		Message: "cache invalidated",
		FileKey: fileKey,
	})
}

type invalidateInstanceResponse struct {
	Message string `json:"message"`
	FileKey string `json:"fileKey"`
	NodeId  string `json:"nodeId"`
}

func (h *Handler) HandleInvalidateInstance(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	fileKey := r.PathValue("fileKey")
	nodeId := r.PathValue("nodeId")
	if err := h.Service.InvalidateNodeCache(r.Context(), fileKey, nodeId); err != nil {
		log.Error().Err(err).Str("fileKey", fileKey).Str("nodeId", nodeId).Msg("instance invalidation failed")
		h.sendError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}

	h.sendResponse(w, invalidateInstanceResponse{
		Message: "cache invalidated",
		FileKey: fileKey,
		NodeId:  nodeId,
	})
}

type invalidateAllResponse struct {
	Message          string `json:"message"`
	DeletedFiles     int64  `json:"deletedFiles"`
	DeletedInstances int64  `json:"deletedInstances"`
}

func (h *Handler) HandleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	files, instances, err := h.Service.InvalidateAllCache(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("full cache invalidation failed")
		h.sendError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}

	h.sendResponse(w, invalidateAllResponse{
		Message:          "cache cleared",
		DeletedFiles:     files,
		DeletedInstances: instances,
	})
}

type entityStatsResponse struct {
	Count  int64      `json:"count"`
	Oldest *time.Time `json:"oldest"`
	Newest *time.Time `json:"newest"`
}

type cacheStatsResponse struct {
	Files     entityStatsResponse `json:"files"`
	Instances entityStatsResponse `json:"instances"`
}

func (h *Handler) HandleCacheStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authenticate(w, r); !ok {
		return
	}

	stats, err := h.Service.CacheStats(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("cache stats failed")
		h.sendError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}

	h.sendResponse(w, cacheStatsResponse{
		Files: entityStatsResponse{
			Count:  stats.Files.Count,
			Oldest: stats.Files.Oldest,
			Newest: stats.Files.Newest,
		},
		Instances: entityStatsResponse{
			Count:  stats.Instances.Count,
			Oldest: stats.Instances.Oldest,
			Newest: stats.Instances.Newest,
		},
	})
}

// authenticate resolves the session cookie to a user. On failure it
// clears the cookie and writes a 401, so the browser drops stale
// sessions instead of retrying them.
func (h *Handler) authenticate(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, err := h.Service.AuthenticateToken(r.Context(), h.getTokenFromCookie(r))
	if err != nil {
		h.clearSessionCookie(w)
		h.sendError(w, http.StatusUnauthorized, "not authenticated")
		return models.User{}, false
	}
	return user, true
}

func (h *Handler) getTokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) sendError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
