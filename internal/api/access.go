package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"github.com/reliefdesk/reliefdesk-backend/internal/access"
	"github.com/reliefdesk/reliefdesk-backend/internal/rbac"
)

type PermissionsResponse struct {
	Role         string            `json:"role"`
	Known        bool              `json:"known"`
	Family       rbac.Family       `json:"family,omitempty"`
	Capabilities []rbac.Capability `json:"capabilities"`
}

type TransitionsResponse struct {
	Status  rbac.Status   `json:"status"`
	Role    string        `json:"role"`
	Allowed []rbac.Status `json:"allowed"`
}

type DecisionRequest struct {
	Requirement *struct {
		Roles        []string `json:"roles"`
		Families     []string `json:"families"`
		Capabilities []string `json:"capabilities"`
	} `json:"requirement"`
	Context struct {
		CurrentStatus string `json:"current_status"`
		TargetStatus  string `json:"target_status"`
	} `json:"context"`
}

func permissionsFor(raw string) PermissionsResponse {
	role, known := rbac.Normalize(raw)
	perms := rbac.Resolve(role)
	resp := PermissionsResponse{
		Role:         raw,
		Known:        known,
		Capabilities: perms.Capabilities(),
	}
	if known {
		resp.Role = string(role)
		resp.Family = rbac.FamilyOf(role)
	}
	return resp
}

func (s *Server) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorize(w, r, nil)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, permissionsFor(id.Role))
}

func (s *Server) GetRolePermissions(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, nil); !ok {
		return
	}

	var role string
	if err := runtime.BindStyledParameterWithOptions("simple", "role", chi.URLParam(r, "role"), &role,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true}); err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid path parameter", []ErrorDetail{{Field: "role", Message: err.Error()}}))
		return
	}
	writeJSON(w, http.StatusOK, permissionsFor(role))
}

func (s *Server) ListAllowedTransitions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorize(w, r, nil)
	if !ok {
		return
	}

	var statusParam string
	var roleParam *string
	if err := runtime.BindQueryParameter("form", true, true, "status", r.URL.Query(), &statusParam); err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid query parameter", []ErrorDetail{{Field: "status", Message: err.Error()}}))
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "role", r.URL.Query(), &roleParam); err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid query parameter", []ErrorDetail{{Field: "role", Message: err.Error()}}))
		return
	}

	status, ok := rbac.ParseStatus(statusParam)
	if !ok {
		writeError(w, http.StatusBadRequest, ValidationErr("Unknown status", []ErrorDetail{{Field: "status", Message: "not a recognised status: " + statusParam}}))
		return
	}

	raw := id.Role
	if roleParam != nil && *roleParam != "" {
		raw = *roleParam
	}
	role, known := rbac.Normalize(raw)
	if known {
		raw = string(role)
	}

	writeJSON(w, http.StatusOK, TransitionsResponse{
		Status:  status,
		Role:    raw,
		Allowed: rbac.AllowedTransitions(status, role),
	})
}

// EvaluateDecision returns the guard's decision for the caller as data. The
// decision itself is the response, so it is always 200.
func (s *Server) EvaluateDecision(w http.ResponseWriter, r *http.Request) {
	var body DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ValidationErr("Invalid request body", nil))
		return
	}

	var req *access.Requirement
	if body.Requirement != nil {
		var details []ErrorDetail
		req = &access.Requirement{Roles: body.Requirement.Roles}
		for _, f := range body.Requirement.Families {
			family, ok := rbac.ParseFamily(f)
			if !ok {
				details = append(details, ErrorDetail{Field: "requirement.families", Message: "unknown family: " + f})
				continue
			}
			req.Families = append(req.Families, family)
		}
		for _, c := range body.Requirement.Capabilities {
			capability, ok := rbac.ParseCapability(c)
			if !ok {
				details = append(details, ErrorDetail{Field: "requirement.capabilities", Message: "unknown capability: " + c})
				continue
			}
			req.Capabilities = append(req.Capabilities, capability)
		}
		if len(details) > 0 {
			writeError(w, http.StatusBadRequest, ValidationErr("Invalid requirement", details))
			return
		}
	}

	_, d := s.decide(r.Context(), req, access.Context{
		CurrentStatus: body.Context.CurrentStatus,
		TargetStatus:  body.Context.TargetStatus,
	})
	writeJSON(w, http.StatusOK, d)
}
