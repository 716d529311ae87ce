package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tcmartin/claimflow/pkg/config"
	"github.com/tcmartin/claimflow/pkg/store"
	"github.com/tcmartin/claimflow/pkg/workflow"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	engine := workflow.NewEngine(store.NewMemoryProvider(), workflow.NewClaimGraph())
	return NewServer(config.DefaultConfig(), engine)
}

// startInstance starts a workflow through the API and returns its id
func startInstance(t *testing.T, s *Server, customerID, startedBy string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"customer_id": customerID,
		"started_by":  startedBy,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		InstanceID string            `json:"instance_id"`
		Result     *workflow.Summary `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.InstanceID)

	return resp.InstanceID
}

// humanStep posts input for an instance and returns the recorder
func humanStep(t *testing.T, s *Server, instanceID, actor string, updates map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()

	body, _ := json.Marshal(map[string]interface{}{
		"actor":   actor,
		"updates": updates,
	})
	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/workflows/%s/human-step", instanceID), bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestStartWorkflow(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{
		"customer_id": "C1",
		"started_by":  "alice",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		InstanceID string            `json:"instance_id"`
		Result     *workflow.Summary `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.InstanceID)
	assert.Equal(t, workflow.StatusPaused, resp.Result.Status)
	assert.Equal(t, "Validate request? (yes/no)", resp.Result.Prompt)
}

func TestStartWorkflowRequiresFields(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(map[string]string{"customer_id": "C1"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflows", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHumanStepOnAllowedStep(t *testing.T) {
	s := newTestServer(t)
	instanceID := startInstance(t, s, "C1", "alice")

	rec := humanStep(t, s, instanceID, "bob", map[string]interface{}{"validate": "yes"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Result *workflow.Summary `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, workflow.StatusPaused, resp.Result.Status)
	assert.Equal(t, "Provide claim details", resp.Result.Prompt)
}

func TestHumanStepRejectsDisallowedStep(t *testing.T) {
	s := newTestServer(t)
	instanceID := startInstance(t, s, "C1", "alice")

	// Advance past the allow-listed steps
	rec := humanStep(t, s, instanceID, "bob", map[string]interface{}{"validate": "yes"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = humanStep(t, s, instanceID, "bob", map[string]interface{}{"claim_details": "x"})
	require.Equal(t, http.StatusOK, rec.Code)

	// The instance now sits on the decision step, which is not allow-listed
	rec = humanStep(t, s, instanceID, "bob", map[string]interface{}{"process_decision": "cancel"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "not allowed")
}

func TestHumanStepUnknownInstance(t *testing.T) {
	s := newTestServer(t)

	rec := humanStep(t, s, "unknown-id", "bob", map[string]interface{}{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetWorkflow(t *testing.T) {
	s := newTestServer(t)
	instanceID := startInstance(t, s, "C1", "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/"+instanceID, nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var meta workflow.InstanceMeta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &meta))
	assert.Equal(t, instanceID, meta.InstanceID)
	assert.Equal(t, "C1", meta.CustomerID)
	assert.Equal(t, workflow.StatusPaused, meta.Status)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/workflows/unknown-id", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWorkflowHistory(t *testing.T) {
	s := newTestServer(t)
	instanceID := startInstance(t, s, "C1", "alice")

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/workflows/%s/history", instanceID), nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var events []workflow.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, workflow.EventCreated, events[0].Event)
	assert.Equal(t, workflow.EventPaused, events[1].Event)
}

func TestListWorkflows(t *testing.T) {
	s := newTestServer(t)
	startInstance(t, s, "C1", "alice")
	startInstance(t, s, "C2", "bob")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var metas []workflow.InstanceMeta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metas))
	assert.Len(t, metas, 2)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/workflows?customer_id=C1", nil)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metas))
	require.Len(t, metas, 1)
	assert.Equal(t, "C1", metas[0].CustomerID)
}

func TestPendingHuman(t *testing.T) {
	s := newTestServer(t)

	// First instance stays on the validation step
	pendingID := startInstance(t, s, "C1", "alice")

	// Second instance advances to the decision step, which is not a
	// human-input step for this channel
	advancedID := startInstance(t, s, "C2", "bob")
	rec := humanStep(t, s, advancedID, "bob", map[string]interface{}{"validate": "yes"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = humanStep(t, s, advancedID, "bob", map[string]interface{}{"claim_details": "x"})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/workflows/pending-human", nil)
	rec2 := httptest.NewRecorder()
	s.router.ServeHTTP(rec2, req)

	require.Equal(t, http.StatusOK, rec2.Code)

	var pending []workflow.InstanceMeta
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, pendingID, pending[0].InstanceID)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/workflows", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
