package httpadapter_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	httpadapter "github.com/plancompass/onboarding/internal/adapters/http"
	"github.com/plancompass/onboarding/internal/adapters/storage/memory"
	"github.com/plancompass/onboarding/internal/app/onboarding"
	"github.com/plancompass/onboarding/internal/app/profile"
	"github.com/plancompass/onboarding/internal/registry"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	sessionStore := memory.NewSessionStore()
	answerLog := memory.NewAnswerLog()
	profileStore := memory.NewProfileStore()

	generator := profile.NewGenerator(profileStore)
	svc := onboarding.NewService(registry.Default(), sessionStore, answerLog, generator, 24*time.Hour)
	profileSvc := profile.NewService(profileStore)

	return httpadapter.NewServer(svc, profileSvc)
}

// snapshotBody mirrors the wire snapshot for decoding in tests.
type snapshotBody struct {
	SessionID   string `json:"sessionId"`
	CurrentStep string `json:"currentStep"`
	Complete    bool   `json:"complete"`

	StepInstance *struct {
		StepID     string `json:"stepId"`
		InstanceID string `json:"instanceId"`
		Nonce      string `json:"nonce"`
	} `json:"stepInstance"`

	StepConfig *struct {
		StepID    string   `json:"stepId"`
		Label     string   `json:"label"`
		InputKind string   `json:"inputKind"`
		Options   []string `json:"options"`
	} `json:"stepConfig"`

	Component      string   `json:"component"`
	CompletedSteps []string `json:"completedSteps"`

	Progress struct {
		OrderedSteps    []string `json:"orderedSteps"`
		RemainingCount  int      `json:"remainingCount"`
		ItemsCollected  int      `json:"itemsCollected"`
		PercentComplete int      `json:"percentComplete"`
		NextStep        string   `json:"nextStep"`
		NextLabel       string   `json:"nextLabel"`
	} `json:"progress"`
}

func doJSON(t *testing.T, srv http.Handler, method, path string, body any) (*httptest.ResponseRecorder, snapshotBody) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	var snap snapshotBody
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode response: %v (body=%s)", err, w.Body.String())
		}
	}
	return w, snap
}

func startSession(t *testing.T, srv http.Handler) snapshotBody {
	t.Helper()
	w, snap := doJSON(t, srv, http.MethodPost, "/onboarding/state", map[string]string{"userId": "test-user"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	return snap
}

func submit(t *testing.T, srv http.Handler, snap snapshotBody, payload any) (*httptest.ResponseRecorder, snapshotBody) {
	t.Helper()
	if snap.StepInstance == nil {
		t.Fatal("no active instance to submit against")
	}
	return doJSON(t, srv, http.MethodPost, "/onboarding/"+snap.SessionID+"/submit", map[string]any{
		"stepId":     snap.StepInstance.StepID,
		"instanceId": snap.StepInstance.InstanceID,
		"nonce":      snap.StepInstance.Nonce,
		"payload":    payload,
	})
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	srv.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestStartOrResumeReturnsFirstStep(t *testing.T) {
	srv := newTestServer(t)

	snap := startSession(t, srv)

	if snap.CurrentStep != "welcome" {
		t.Fatalf("expected first step welcome, got %q", snap.CurrentStep)
	}
	if snap.StepInstance == nil || snap.StepInstance.Nonce == "" {
		t.Fatal("expected an issued instance with a nonce")
	}
	if snap.Component != "intro-card" {
		t.Fatalf("expected intro-card component, got %q", snap.Component)
	}
	if snap.Progress.PercentComplete != 0 {
		t.Fatalf("expected 0%%, got %d", snap.Progress.PercentComplete)
	}
}

func TestStartRequiresUserID(t *testing.T) {
	srv := newTestServer(t)

	w, _ := doJSON(t, srv, http.MethodPost, "/onboarding/state", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// The concrete protocol scenario: submit step A, then replay A's tokens and
// get a conflict with the state still at step B.
func TestSubmitThenReplayConflicts(t *testing.T) {
	srv := newTestServer(t)

	first := startSession(t, srv)

	w, second := submit(t, srv, first, "start")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if second.CurrentStep != "depth" {
		t.Fatalf("expected depth after welcome, got %q", second.CurrentStep)
	}
	if len(second.CompletedSteps) != 1 || second.CompletedSteps[0] != "welcome" {
		t.Fatalf("expected completedSteps [welcome], got %v", second.CompletedSteps)
	}
	if second.Progress.PercentComplete <= 0 {
		t.Fatal("expected progress above zero after one step")
	}

	// Replay the consumed tokens.
	w, _ = submit(t, srv, first, "start")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", w.Code)
	}

	// State is untouched by the replay.
	w, current := doJSON(t, srv, http.MethodGet, "/onboarding/"+first.SessionID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if current.CurrentStep != "depth" || len(current.CompletedSteps) != 1 {
		t.Fatalf("replay mutated state: step=%q completed=%v", current.CurrentStep, current.CompletedSteps)
	}
}

func TestSubmitValidationFailure(t *testing.T) {
	srv := newTestServer(t)
	snap := startSession(t, srv)

	w, _ := submit(t, srv, snap, "not-an-option")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestResyncIssuesFreshTokensForSameStep(t *testing.T) {
	srv := newTestServer(t)
	snap := startSession(t, srv)

	w, resynced := doJSON(t, srv, http.MethodPost, "/onboarding/"+snap.SessionID+"/resync", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if resynced.CurrentStep != snap.CurrentStep {
		t.Fatalf("resync advanced the step: %q -> %q", snap.CurrentStep, resynced.CurrentStep)
	}
	if resynced.StepInstance.Nonce == snap.StepInstance.Nonce {
		t.Fatal("resync did not rotate the nonce")
	}

	// The old tokens are now dead.
	w, _ = submit(t, srv, snap, "start")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 with retired tokens, got %d", w.Code)
	}

	// The fresh ones work.
	w, _ = submit(t, srv, resynced, "start")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with fresh tokens, got %d, body=%s", w.Code, w.Body.String())
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	srv := newTestServer(t)

	w, _ := doJSON(t, srv, http.MethodGet, "/onboarding/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w, _ = doJSON(t, srv, http.MethodPost, "/onboarding/ghost/resync", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestFullQuickFlowGeneratesProfile(t *testing.T) {
	srv := newTestServer(t)
	snap := startSession(t, srv)

	payloads := map[string]any{
		"welcome":       "start",
		"depth":         "quick",
		"life_stage":    "family",
		"employment":    "employed",
		"income":        "3200",
		"expenses":      map[string]any{"housing": 40.0, "food": 30.0, "other": 30.0},
		"has_debts":     false,
		"link_accounts": map[string]any{"provider": "plaid", "itemId": "item-9"},
	}

	for i := 0; !snap.Complete; i++ {
		if i > 20 {
			t.Fatal("session never completed")
		}
		payload, ok := payloads[snap.CurrentStep]
		if !ok {
			t.Fatalf("unexpected step %q in quick flow", snap.CurrentStep)
		}
		w, next := submit(t, srv, snap, payload)
		if w.Code != http.StatusOK {
			t.Fatalf("step %s: expected 200, got %d, body=%s", snap.CurrentStep, w.Code, w.Body.String())
		}
		snap = next
	}

	if snap.Progress.PercentComplete != 100 {
		t.Fatalf("expected 100%% at terminal, got %d", snap.Progress.PercentComplete)
	}
	if snap.StepInstance != nil {
		t.Fatal("no instance may be issued after terminal")
	}

	// The completion hook materialized the profile.
	req := httptest.NewRequest(http.MethodGet, "/users/test-user/profile", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 profile, got %d, body=%s", w.Code, w.Body.String())
	}

	var p struct {
		LifeStage     string `json:"life_stage"`
		MonthlyIncome string `json:"monthly_income"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if p.LifeStage != "family" {
		t.Fatalf("expected life stage family, got %q", p.LifeStage)
	}
	if p.MonthlyIncome != "3200" {
		t.Fatalf("expected income 3200, got %q", p.MonthlyIncome)
	}
}

func TestProfileBeforeCompletionIs404(t *testing.T) {
	srv := newTestServer(t)
	startSession(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/users/test-user/profile", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before completion, got %d", w.Code)
	}
}

func TestResetRestartsSession(t *testing.T) {
	srv := newTestServer(t)
	snap := startSession(t, srv)

	w, after := submit(t, srv, snap, "start")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w, reset := doJSON(t, srv, http.MethodPost, fmt.Sprintf("/onboarding/%s/reset", after.SessionID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if reset.CurrentStep != "welcome" || len(reset.CompletedSteps) != 0 {
		t.Fatalf("reset did not restart: step=%q completed=%v", reset.CurrentStep, reset.CompletedSteps)
	}
	if reset.Progress.PercentComplete != 0 {
		t.Fatalf("expected 0%% after reset, got %d", reset.Progress.PercentComplete)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	w, _ := doJSON(t, srv, http.MethodGet, "/onboarding/state", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
