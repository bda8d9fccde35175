package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/plancompass/onboarding/internal/app/onboarding"
	"github.com/plancompass/onboarding/internal/app/profile"
	"github.com/plancompass/onboarding/internal/domain"
	"github.com/plancompass/onboarding/internal/observability"
	"github.com/plancompass/onboarding/internal/progress"
)

type Server struct {
	svc      *onboarding.Service
	profiles *profile.Service
}

func NewServer(svc *onboarding.Service, profiles *profile.Service) http.Handler {
	s := &Server{svc: svc, profiles: profiles}
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)

	// /onboarding/state → POST: create or resume the caller's session
	mux.HandleFunc("/onboarding/state", s.handleState)

	// /onboarding/{id}         → GET: current snapshot
	// /onboarding/{id}/submit  → POST: submit the active step's answer
	// /onboarding/{id}/resync  → POST: reissue instance for the same step
	// /onboarding/{id}/reset   → POST: full reset back to the first step
	mux.HandleFunc("/onboarding/", s.handleSessionWithID)

	// /users/{id}/profile → GET: generated financial profile
	mux.HandleFunc("/users/", s.handleUserWithID)

	return chainMiddlewares(mux, withLogging, withCORS, withRequestID)
}

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

type stateRequest struct {
	UserID string `json:"userId"`
}

type submitRequest struct {
	StepID     string `json:"stepId"`
	InstanceID string `json:"instanceId"`
	Nonce      string `json:"nonce"`
	Payload    any    `json:"payload"`
}

type stepInstanceResponse struct {
	StepID     string    `json:"stepId"`
	InstanceID string    `json:"instanceId"`
	Nonce      string    `json:"nonce"`
	CreatedAt  time.Time `json:"createdAt"`
}

type stepConfigResponse struct {
	StepID    string   `json:"stepId"`
	Label     string   `json:"label"`
	InputKind string   `json:"inputKind"`
	Required  bool     `json:"required"`
	Options   []string `json:"options,omitempty"`
}

type progressResponse struct {
	OrderedSteps    []string `json:"orderedSteps"`
	Completed       []string `json:"completed"`
	Current         string   `json:"current,omitempty"`
	RemainingCount  int      `json:"remainingCount"`
	ItemsCollected  int      `json:"itemsCollected"`
	PercentComplete int      `json:"percentComplete"`
	NextStep        string   `json:"nextStep,omitempty"`
	NextLabel       string   `json:"nextLabel,omitempty"`
}

// snapshotResponse is the authoritative state every operation returns. The
// client replaces whatever it cached with this, never merges into it.
type snapshotResponse struct {
	SessionID      string                `json:"sessionId"`
	CurrentStep    string                `json:"currentStep,omitempty"`
	Complete       bool                  `json:"complete"`
	StepInstance   *stepInstanceResponse `json:"stepInstance,omitempty"`
	StepConfig     *stepConfigResponse   `json:"stepConfig,omitempty"`
	Component      string                `json:"component,omitempty"`
	CompletedSteps []string              `json:"completedSteps"`
	Progress       progressResponse      `json:"progress"`
}

// ─────────────────────────────────────────────
// Basic routing
// ─────────────────────────────────────────────

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// /onboarding/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStartOrResume(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /onboarding/{id} or /onboarding/{id}/{action}
func (s *Server) handleSessionWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/onboarding/")
	if path == "" {
		http.NotFound(w, r)
		return
	}

	parts := strings.Split(path, "/")
	id := domain.SessionID(parts[0])

	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGetState(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	if len(parts) == 2 {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		switch parts[1] {
		case "submit":
			s.handleSubmit(w, r, id)
		case "resync":
			s.handleResync(w, r, id)
		case "reset":
			s.handleReset(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	http.NotFound(w, r)
}

// /users/{id}/profile
func (s *Server) handleUserWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.Split(path, "/")

	if len(parts) != 2 || parts[0] == "" || parts[1] != "profile" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	s.handleGetProfile(w, r, domain.UserID(parts[0]))
}

// ─────────────────────────────────────────────
// Concrete handlers
// ─────────────────────────────────────────────

func (s *Server) handleStartOrResume(w http.ResponseWriter, r *http.Request) {
	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.UserID == "" {
		badRequest(w, "userId is required")
		return
	}

	snap, err := s.svc.StartOrResume(r.Context(), onboarding.StartOrResumeInput{
		UserID: domain.UserID(req.UserID),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	snap, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if req.StepID == "" || req.InstanceID == "" || req.Nonce == "" {
		badRequest(w, "stepId, instanceId and nonce are required")
		return
	}

	snap, err := s.svc.Submit(r.Context(), onboarding.SubmitInput{
		SessionID:  id,
		StepID:     domain.StepID(req.StepID),
		InstanceID: req.InstanceID,
		Nonce:      req.Nonce,
		Payload:    req.Payload,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (s *Server) handleResync(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	snap, err := s.svc.Resync(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, id domain.SessionID) {
	snap, err := s.svc.Reset(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toSnapshotResponse(snap))
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request, userID domain.UserID) {
	p, err := s.profiles.GetUserProfile(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// ─────────────────────────────────────────────
// Snapshot helpers
// ─────────────────────────────────────────────

func toSnapshotResponse(snap *onboarding.Snapshot) snapshotResponse {
	session := snap.Session

	resp := snapshotResponse{
		SessionID:      string(session.ID),
		Complete:       session.IsComplete(),
		CompletedSteps: stepIDs(session.CompletedSteps),
		Progress:       toProgressResponse(snap.Progress),
	}

	if inst := session.ActiveInstance; inst != nil {
		resp.CurrentStep = string(inst.StepID)
		resp.StepInstance = &stepInstanceResponse{
			StepID:     string(inst.StepID),
			InstanceID: inst.InstanceID,
			Nonce:      inst.Nonce,
			CreatedAt:  inst.IssuedAt,
		}
	}

	if snap.Step != nil {
		resp.Component = snap.Step.Component
		resp.StepConfig = &stepConfigResponse{
			StepID:    string(snap.Step.ID),
			Label:     snap.Step.Label,
			InputKind: string(snap.Step.Kind),
			Required:  snap.Step.Required,
			Options:   snap.Step.Options,
		}
	}

	return resp
}

func toProgressResponse(rep progress.Report) progressResponse {
	return progressResponse{
		OrderedSteps:    stepIDs(rep.OrderedSteps),
		Completed:       stepIDs(rep.Completed),
		Current:         string(rep.Current),
		RemainingCount:  rep.RemainingCount,
		ItemsCollected:  rep.ItemsCollected,
		PercentComplete: rep.PercentComplete,
		NextStep:        string(rep.NextStep),
		NextLabel:       rep.NextLabel,
	}
}

func stepIDs(in []domain.StepID) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		out = append(out, string(id))
	}
	return out
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

// writeError maps the engine's typed errors onto wire statuses. Conflicts
// are a normal protocol outcome (the client resyncs), so they are never
// logged as fatal; InvalidStepError is, because it means the deployed step
// tables disagree.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *domain.ValidationError
		invalidStep   *domain.InvalidStepError
		persistence   *domain.PersistenceError
	)

	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, domain.ErrProfileNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "profile not found"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "out of sync"})
	case errors.As(err, &validationErr):
		badRequest(w, validationErr.Message)
	case errors.As(err, &invalidStep):
		observability.LoggerFromContext(r.Context()).Error(
			"step table mismatch between client and server", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "unknown step"})
	case errors.As(err, &persistence):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage temporarily unavailable"})
	default:
		internalError(w, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
