package workflow

import "time"

// ClaimWorkflowName is the workflow name recorded on claim instances
const ClaimWorkflowName = "ClaimWorkflow"

// Step names of the claim-handling workflow. Exported because the request
// layer's human-step allow-list refers to them.
const (
	StepValidateRequest  = "Validate Request"
	StepGatherClaimInfo  = "Gather Claim Info"
	StepIdentifyAccounts = "Identify Accounts & Process Decision"
	StepCancelRequest    = "Cancel CWD Request"
	StepHoldRequest      = "Hold Request"
	StepApplySuppression = "Apply Temporary Suppression"
	StepFulfillCase      = "Fulfill Case and Detect"
)

// ensureDefaults backfills the bag and run metadata the first time a step
// touches a fresh state.
func ensureDefaults(s *ExecutionState) {
	if s.Bag == nil {
		s.Bag = make(map[string]interface{})
	}
	if s.Meta.Status == "" {
		s.Meta.Status = StatusInProgress
	}
	if s.Meta.StartTime == nil {
		now := time.Now().UTC()
		s.Meta.StartTime = &now
	}
}

// inputStep builds a step that pauses with prompt until bagKey is present
func inputStep(name, bagKey, prompt string, next GuardFunc) Step {
	return Step{
		Name: name,
		Run: func(s *ExecutionState) *Pause {
			ensureDefaults(s)
			s.Meta.LastNode = name
			if _, ok := s.Bag[bagKey]; !ok {
				return &Pause{Prompt: prompt}
			}
			return nil
		},
		Next: next,
	}
}

// terminalStep builds a step that records a terminal outcome and ends the run
func terminalStep(name string, status Status, result string) Step {
	return Step{
		Name: name,
		Run: func(s *ExecutionState) *Pause {
			ensureDefaults(s)
			s.Meta.LastNode = name
			s.Meta.Status = status
			now := time.Now().UTC()
			s.Meta.EndTime = &now
			s.Bag["result"] = result
			return nil
		},
		Next: func(*ExecutionState) string { return End },
	}
}

// bagString reads a bag value as a string, returning "" for absent or
// non-string values.
func bagString(s *ExecutionState, key string) string {
	v, _ := s.Bag[key].(string)
	return v
}

// NewClaimGraph builds the claim-handling workflow: validate the request,
// gather claim details, decide between cancel/hold/suppress, then either
// fulfill the case or cancel it. Guard values outside the recognized set end
// the run without advancing; the engine reports such runs as still in
// progress.
func NewClaimGraph() *Graph {
	g := NewGraph(ClaimWorkflowName, StepValidateRequest)

	g.AddStep(inputStep(StepValidateRequest, "validate", "Validate request? (yes/no)",
		func(s *ExecutionState) string {
			switch bagString(s, "validate") {
			case "yes":
				return StepGatherClaimInfo
			case "no":
				return StepCancelRequest
			default:
				return End
			}
		}))

	g.AddStep(inputStep(StepGatherClaimInfo, "claim_details", "Provide claim details",
		func(s *ExecutionState) string {
			if v, ok := s.Bag["claim_details"]; ok && v != nil && v != "" {
				return StepIdentifyAccounts
			}
			return End
		}))

	g.AddStep(inputStep(StepIdentifyAccounts, "process_decision", "Decision? cancel / hold / suppress",
		func(s *ExecutionState) string {
			switch bagString(s, "process_decision") {
			case "cancel":
				return StepCancelRequest
			case "hold":
				return StepHoldRequest
			case "suppress":
				return StepApplySuppression
			default:
				return End
			}
		}))

	g.AddStep(inputStep(StepHoldRequest, "hold_action", "Workflow on hold. Command: resume / abort",
		func(s *ExecutionState) string {
			switch bagString(s, "hold_action") {
			case "resume":
				return StepApplySuppression
			case "abort":
				return StepCancelRequest
			default:
				return End
			}
		}))

	g.AddStep(inputStep(StepApplySuppression, "proceed_fulfill", "Proceed to fulfill? (yes/no)",
		func(s *ExecutionState) string {
			switch bagString(s, "proceed_fulfill") {
			case "yes":
				return StepFulfillCase
			case "no":
				return StepCancelRequest
			default:
				return End
			}
		}))

	g.AddStep(terminalStep(StepCancelRequest, StatusAborted, "Workflow aborted."))
	g.AddStep(terminalStep(StepFulfillCase, StatusCompleted, "Fulfilled and detection complete."))

	return g
}
