package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/auth"
	"github.com/reliefdesk/reliefdesk-backend/internal/middleware"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
	"github.com/reliefdesk/reliefdesk-backend/internal/timeline"
	"github.com/reliefdesk/reliefdesk-backend/internal/workflow"
)

const archiveLinkTTL = 15 * time.Minute

type CreateRequestBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type TransitionBody struct {
	CurrentStatus string `json:"current_status"`
	TargetStatus  string `json:"target_status"`
	Note          string `json:"note"`
}

type RequestList struct {
	Data []workflow.Request `json:"data"`
	Meta PaginationMeta     `json:"meta"`
}

type ArchiveLink struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Server) CreateRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLoggerFromContext(ctx)

	id, ok := s.authorize(w, r, access.RequireCapability(rbac.CanCreateRequests))
	if !ok {
		return
	}

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid request body", nil))
		return
	}
	body.Title = strings.TrimSpace(body.Title)
	if body.Title == "" {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid request body", []ErrorDetail{{Field: "title", Message: "title is required"}}))
		return
	}

	req := &workflow.Request{
		Title:       body.Title,
		Description: body.Description,
		Status:      rbac.StatusSubmitted,
		RequesterID: id.UserID,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		logger.Error("Failed to create request", "error", err)
		writeError(w, http.StatusInternalServerError, InternalError("An unexpected error occurred."))
		return
	}

	if _, err := s.store.AppendAuditEntry(ctx, workflow.AuditEntry{
		RequestID:   req.ID,
		Description: "Request submitted",
		Metadata:    map[string]any{"actor_id": id.UserID, "status": string(req.Status)},
		CreatedAt:   req.CreatedAt,
	}); err != nil {
		logger.Warn("Failed to append audit entry", "request_id", req.ID, "error", err)
	}

	logger.Info("Request created", "request_id", req.ID)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) ListRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLoggerFromContext(ctx)

	id, ok := s.authorize(w, r, nil)
	if !ok {
		return
	}

	var (
		requester     *string
		limit, offset *int
	)
	for _, p := range []struct {
		name string
		dest any
	}{{"requester", &requester}, {"limit", &limit}, {"offset", &offset}} {
		if err := runtime.BindQueryParameter("form", true, false, p.name, r.URL.Query(), p.dest); err != nil {
			writeError(w, http.StatusBadRequest, ValidationErr("Invalid query parameter", []ErrorDetail{{Field: p.name, Message: err.Error()}}))
			return
		}
	}

	// staff see every request; everyone else only their own
	viewAll := s.guard.Decide(id, access.RequireCapability(rbac.CanViewRequests), access.Context{}).Allowed()
	filter := id.UserID
	if viewAll {
		filter = ""
	}
	if requester != nil && *requester != "" {
		if *requester != id.UserID && !viewAll {
			s.authorize(w, r, access.RequireCapability(rbac.CanViewRequests))
			return
		}
		filter = *requester
	}
	if filter == id.UserID {
		if _, ok := s.authorize(w, r, access.RequireCapability(rbac.CanViewOwnRequests)); !ok {
			return
		}
	}

	all, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		logger.Error("Failed to list requests", "error", err)
		writeError(w, http.StatusInternalServerError, InternalError("An unexpected error occurred."))
		return
	}

	l, o := parsePagination(limit, offset)
	writeJSON(w, http.StatusOK, RequestList{
		Data: page(all, l, o),
		Meta: buildPaginationMeta(int64(len(all)), l, o),
	})
}

func (s *Server) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := s.loadVisibleRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *Server) TransitionRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := middleware.GetLoggerFromContext(ctx)

	id, ok := s.authorize(w, r, nil)
	if !ok {
		return
	}
	requestID, ok := bindRequestID(w, r)
	if !ok {
		return
	}

	var body TransitionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid request body", nil))
		return
	}

	current := body.CurrentStatus
	if current == "" {
		req, err := s.store.GetRequest(ctx, requestID)
		if errors.Is(err, workflow.ErrRequestNotFound) {
			writeError(w, http.StatusNotFound, NotFound("Request"))
			return
		}
		if err != nil {
			logger.Error("Failed to load request", "request_id", requestID, "error", err)
			writeError(w, http.StatusInternalServerError, InternalError("An unexpected error occurred."))
			return
		}
		current = string(req.Status)
	}

	rec, err := s.executor.RequestTransition(ctx, workflow.TransitionRequest{
		RequestID:     requestID,
		CurrentStatus: current,
		TargetStatus:  body.TargetStatus,
		Actor:         id,
		Note:          body.Note,
	})
	if err != nil {
		status, b := WorkflowErr(err)
		if status == http.StatusForbidden || rbac.IsCode(err, rbac.CodeIllegalTransition) {
			s.notifyFailure(r, "Status change not allowed", b.Message)
		}
		logger.Info("Request transition rejected", "request_id", requestID, "code", b.Code)
		writeError(w, status, b)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) GetRequestTimeline(w http.ResponseWriter, r *http.Request) {
	req, ok := s.loadVisibleRequest(w, r)
	if !ok {
		return
	}

	tl, err := timeline.Build(r.Context(), s.store, req.ID)
	if err != nil {
		middleware.GetLoggerFromContext(r.Context()).Error("Failed to build timeline", "request_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, InternalError("An unexpected error occurred."))
		return
	}
	writeJSON(w, http.StatusOK, tl)
}

// GetTimelineArchive links to the archive written when the request closed.
func (s *Server) GetTimelineArchive(w http.ResponseWriter, r *http.Request) {
	req, ok := s.loadVisibleRequest(w, r)
	if !ok {
		return
	}
	if s.archives == nil || !req.Status.IsTerminal() {
		writeError(w, http.StatusNotFound, NotFound("Timeline archive"))
		return
	}

	key := timeline.Key(req.ID)
	url, err := s.archives.PresignGet(r.Context(), key, archiveLinkTTL)
	if err != nil {
		middleware.GetLoggerFromContext(r.Context()).Error("Failed to presign archive", "request_id", req.ID, "error", err)
		writeError(w, http.StatusInternalServerError, InternalError("An unexpected error occurred."))
		return
	}
	writeJSON(w, http.StatusOK, ArchiveLink{
		Key:       key,
		URL:       url,
		ExpiresAt: time.Now().UTC().Add(archiveLinkTTL),
	})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, nil); !ok {
		return
	}

	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if s.sessions != nil && found {
		if err := s.sessions.Revoke(r.Context(), token); err != nil {
			middleware.GetLoggerFromContext(r.Context()).Warn("Failed to revoke session", "error", err)
			writeError(w, http.StatusUnauthorized, Unauthorized("Invalid session token"))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadVisibleRequest fetches the request named in the path if the caller may
// see it: staff with canViewRequests, or the requester with canViewOwnRequests.
func (s *Server) loadVisibleRequest(w http.ResponseWriter, r *http.Request) (*workflow.Request, bool) {
	ctx := r.Context()

	id, ok := s.authorize(w, r, nil)
	if !ok {
		return nil, false
	}
	requestID, ok := bindRequestID(w, r)
	if !ok {
		return nil, false
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if errors.Is(err, workflow.ErrRequestNotFound) {
		writeError(w, http.StatusNotFound, NotFound("Request"))
		return nil, false
	}
	if err != nil {
		middleware.GetLoggerFromContext(ctx).Error("Failed to load request", "request_id", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, InternalError("An unexpected error occurred."))
		return nil, false
	}

	need := rbac.CanViewRequests
	if req.RequesterID == id.UserID {
		need = rbac.CanViewOwnRequests
	}
	if _, ok := s.authorize(w, r, access.RequireCapability(need)); !ok {
		return nil, false
	}
	return req, true
}

func (s *Server) notifyFailure(r *http.Request, title, message string) {
	id := auth.IdentityFromContext(r.Context())
	if s.notifier == nil || id.UserID == "" {
		return
	}
	s.notifier.Notify(r.Context(), id.UserID, access.Notice{Kind: access.NoticeError, Title: title, Message: message})
}

func bindRequestID(w http.ResponseWriter, r *http.Request) (openapi_types.UUID, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid path parameter", []ErrorDetail{{Field: "id", Message: err.Error()}}))
		return id, false
	}
	return id, true
}
