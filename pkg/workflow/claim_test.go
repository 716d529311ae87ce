package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// invokeClaim runs the claim graph once against a bag and reports where it
// ended up.
func invokeClaim(t *testing.T, bag map[string]interface{}) (*ExecutionState, *Pause) {
	t.Helper()

	state := &ExecutionState{Bag: bag}
	pause, err := NewClaimGraph().Invoke(state)
	require.NoError(t, err)
	return state, pause
}

func TestClaimGraphPausesAtEachMissingInput(t *testing.T) {
	tests := []struct {
		name       string
		bag        map[string]interface{}
		wantNode   string
		wantPrompt string
	}{
		{
			name:       "fresh instance pauses at validation",
			bag:        nil,
			wantNode:   StepValidateRequest,
			wantPrompt: "Validate request? (yes/no)",
		},
		{
			name:       "validated instance pauses at claim details",
			bag:        map[string]interface{}{"validate": "yes"},
			wantNode:   StepGatherClaimInfo,
			wantPrompt: "Provide claim details",
		},
		{
			name: "detailed instance pauses at decision",
			bag: map[string]interface{}{
				"validate":      "yes",
				"claim_details": "disputed withdrawal",
			},
			wantNode:   StepIdentifyAccounts,
			wantPrompt: "Decision? cancel / hold / suppress",
		},
		{
			name: "held instance pauses at hold command",
			bag: map[string]interface{}{
				"validate":         "yes",
				"claim_details":    "disputed withdrawal",
				"process_decision": "hold",
			},
			wantNode:   StepHoldRequest,
			wantPrompt: "Workflow on hold. Command: resume / abort",
		},
		{
			name: "suppressed instance pauses at fulfill confirmation",
			bag: map[string]interface{}{
				"validate":         "yes",
				"claim_details":    "disputed withdrawal",
				"process_decision": "suppress",
			},
			wantNode:   StepApplySuppression,
			wantPrompt: "Proceed to fulfill? (yes/no)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, pause := invokeClaim(t, tt.bag)
			require.NotNil(t, pause)
			assert.Equal(t, tt.wantPrompt, pause.Prompt)
			assert.Equal(t, tt.wantNode, state.Meta.LastNode)
			assert.Equal(t, StatusInProgress, state.Meta.Status)
		})
	}
}

func TestClaimGraphTerminalOutcomes(t *testing.T) {
	tests := []struct {
		name       string
		bag        map[string]interface{}
		wantNode   string
		wantStatus Status
		wantResult string
	}{
		{
			name:       "validation rejected cancels",
			bag:        map[string]interface{}{"validate": "no"},
			wantNode:   StepCancelRequest,
			wantStatus: StatusAborted,
			wantResult: "Workflow aborted.",
		},
		{
			name: "decision cancel cancels",
			bag: map[string]interface{}{
				"validate":         "yes",
				"claim_details":    "x",
				"process_decision": "cancel",
			},
			wantNode:   StepCancelRequest,
			wantStatus: StatusAborted,
			wantResult: "Workflow aborted.",
		},
		{
			name: "hold abort cancels",
			bag: map[string]interface{}{
				"validate":         "yes",
				"claim_details":    "x",
				"process_decision": "hold",
				"hold_action":      "abort",
			},
			wantNode:   StepCancelRequest,
			wantStatus: StatusAborted,
			wantResult: "Workflow aborted.",
		},
		{
			name: "fulfill declined cancels",
			bag: map[string]interface{}{
				"validate":         "yes",
				"claim_details":    "x",
				"process_decision": "suppress",
				"proceed_fulfill":  "no",
			},
			wantNode:   StepCancelRequest,
			wantStatus: StatusAborted,
			wantResult: "Workflow aborted.",
		},
		{
			name: "happy path through suppression fulfills",
			bag: map[string]interface{}{
				"validate":         "yes",
				"claim_details":    "x",
				"process_decision": "suppress",
				"proceed_fulfill":  "yes",
			},
			wantNode:   StepFulfillCase,
			wantStatus: StatusCompleted,
			wantResult: "Fulfilled and detection complete.",
		},
		{
			name: "hold resumed then fulfilled completes",
			bag: map[string]interface{}{
				"validate":         "yes",
				"claim_details":    "x",
				"process_decision": "hold",
				"hold_action":      "resume",
				"proceed_fulfill":  "yes",
			},
			wantNode:   StepFulfillCase,
			wantStatus: StatusCompleted,
			wantResult: "Fulfilled and detection complete.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, pause := invokeClaim(t, tt.bag)
			require.Nil(t, pause)
			assert.Equal(t, tt.wantNode, state.Meta.LastNode)
			assert.Equal(t, tt.wantStatus, state.Meta.Status)
			assert.Equal(t, tt.wantResult, state.Bag["result"])
			assert.NotNil(t, state.Meta.EndTime)
		})
	}
}

func TestClaimGraphUnmatchedGuardValueEndsRunSilently(t *testing.T) {
	state, pause := invokeClaim(t, map[string]interface{}{"validate": "maybe"})

	// The run ends without a pause and without a terminal status: the
	// instance is left in progress at the validation step.
	require.Nil(t, pause)
	assert.Equal(t, StepValidateRequest, state.Meta.LastNode)
	assert.Equal(t, StatusInProgress, state.Meta.Status)
	assert.Nil(t, state.Meta.EndTime)
	assert.NotContains(t, state.Bag, "result")
}
