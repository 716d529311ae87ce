package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tcmartin/claimflow/pkg/store"
)

// Store namespaces used by the engine. Each kind of record lives under its
// own namespace, keyed by instance id (the index under a single fixed key).
const (
	stateNamespace  = "workflow_state"
	metaNamespace   = "workflow_meta"
	eventsNamespace = "workflow_events"
	indexNamespace  = "workflow_index"
)

// indexKey is the single key under which the instance index list is stored
const indexKey = "instances"

// Errors returned by the engine
var (
	// ErrInstanceNotFound is returned by Resume for an unknown instance id
	ErrInstanceNotFound = errors.New("workflow instance not found")

	// ErrMissingMetadata indicates a metadata update for an instance that was
	// never started; it is not recoverable.
	ErrMissingMetadata = errors.New("missing instance metadata")
)

// Engine drives workflow instances through a step graph against an injected
// store. Start and Resume each perform one full run: traverse the graph from
// the entry step, persist the resulting state, project the audit metadata
// and append lifecycle events. Runs for the same instance are serialized by
// a per-instance mutex held across the whole protocol.
type Engine struct {
	store store.Provider
	graph *Graph

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// indexMu serializes read-modify-write cycles on the shared instance
	// index, which per-instance locks cannot cover.
	indexMu sync.Mutex
}

// NewEngine creates an engine for one workflow graph backed by the given
// storage provider.
func NewEngine(provider store.Provider, graph *Graph) *Engine {
	return &Engine{
		store: provider,
		graph: graph,
		locks: make(map[string]*sync.Mutex),
	}
}

// WorkflowName returns the name of the graph this engine executes
func (e *Engine) WorkflowName() string {
	return e.graph.Name()
}

// instanceLock returns the mutex serializing runs for one instance.
// Two concurrent resumes would otherwise race on the read-modify-write of
// the bag, the event log and the metadata, with the second write silently
// discarding the first.
func (e *Engine) instanceLock(instanceID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	l, ok := e.locks[instanceID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[instanceID] = l
	}
	return l
}

// Start allocates a new instance, persists its initial state, metadata,
// index membership and "created" event, then performs the first run. The
// instance id is returned even when the first run fails, since the instance
// exists from that point on.
func (e *Engine) Start(customerID, startedBy string) (string, *Summary, error) {
	instanceID := uuid.New().String()

	lock := e.instanceLock(instanceID)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now().UTC()
	state := &ExecutionState{
		InstanceID:   instanceID,
		CustomerID:   customerID,
		WorkflowName: e.graph.Name(),
		Bag:          make(map[string]interface{}),
		Meta: StateMeta{
			Status:    StatusInProgress,
			StartTime: &now,
		},
	}
	meta := &InstanceMeta{
		InstanceID:   instanceID,
		CustomerID:   customerID,
		WorkflowName: e.graph.Name(),
		StartedBy:    startedBy,
		LastActor:    startedBy,
		Status:       StatusInProgress,
		StartTime:    &now,
	}

	if err := e.putState(state); err != nil {
		return instanceID, nil, err
	}
	if err := e.putMeta(meta); err != nil {
		return instanceID, nil, err
	}
	if err := e.addToIndex(instanceID); err != nil {
		return instanceID, nil, err
	}
	if err := e.appendEvent(instanceID, EventCreated, "", meta.Status, startedBy, map[string]interface{}{
		"customer_id": customerID,
	}); err != nil {
		return instanceID, nil, err
	}

	summary, err := e.run(instanceID, state, startedBy)
	return instanceID, summary, err
}

// Resume merges the supplied updates into the instance's bag and performs
// one run. Updates overwrite existing bag keys of the same name; other keys
// are untouched. Returns ErrInstanceNotFound for an unknown instance id.
func (e *Engine) Resume(instanceID, actor string, updates map[string]interface{}) (*Summary, error) {
	lock := e.instanceLock(instanceID)
	lock.Lock()
	defer lock.Unlock()

	state, err := e.getState(instanceID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}

	if state.Bag == nil {
		state.Bag = make(map[string]interface{})
	}
	for k, v := range updates {
		state.Bag[k] = v
	}

	// Persist the merged bag before invoking the graph, and record the raw
	// command in the event log.
	if err := e.putState(state); err != nil {
		return nil, err
	}
	if err := e.appendEvent(instanceID, EventResumeCommand, state.Meta.LastNode, StatusInProgress, actor, map[string]interface{}{
		"updates": updates,
	}); err != nil {
		return nil, err
	}

	return e.run(instanceID, state, actor)
}

// run performs one traversal pass and records its outcome. State is
// persisted before any metadata or event write, so a projection failure
// cannot lose the state transition that already happened.
func (e *Engine) run(instanceID string, state *ExecutionState, actor string) (*Summary, error) {
	pause, err := e.graph.Invoke(state)
	if err != nil {
		return nil, err
	}

	if state.Meta.LastNode == "" {
		state.Meta.LastNode = e.graph.Entry()
	}
	if err := e.putState(state); err != nil {
		return nil, err
	}

	if pause != nil {
		meta, err := e.updateMetaFromState(instanceID, actor, state)
		if err != nil {
			return nil, err
		}
		if meta.Status != StatusCompleted && meta.Status != StatusAborted {
			meta.Status = StatusPaused
			if err := e.putMeta(meta); err != nil {
				return nil, err
			}
		}
		if err := e.appendEvent(instanceID, EventPaused, state.Meta.LastNode, meta.Status, actor, map[string]interface{}{
			"prompt": pause.Prompt,
		}); err != nil {
			return nil, err
		}
		return &Summary{
			Status:     StatusPaused,
			InstanceID: instanceID,
			Prompt:     pause.Prompt,
		}, nil
	}

	meta, err := e.updateMetaFromState(instanceID, actor, state)
	if err != nil {
		return nil, err
	}

	node := state.Meta.LastNode
	switch meta.Status {
	case StatusCompleted:
		if err := e.appendEvent(instanceID, EventCompleted, node, meta.Status, actor, map[string]interface{}{
			"result": state.Bag["result"],
		}); err != nil {
			return nil, err
		}
		return &Summary{
			Status:     StatusCompleted,
			InstanceID: instanceID,
			Node:       node,
			Result:     state.Bag["result"],
		}, nil

	case StatusAborted:
		if err := e.appendEvent(instanceID, EventAborted, node, meta.Status, actor, map[string]interface{}{
			"result": state.Bag["result"],
		}); err != nil {
			return nil, err
		}
		return &Summary{
			Status:     StatusAborted,
			InstanceID: instanceID,
			Node:       node,
			Result:     state.Bag["result"],
		}, nil

	default:
		// The run stopped on an unmatched guard value: the step's input is
		// present but not one the guard recognizes. The instance stays
		// in_progress with no new prompt until the value is corrected.
		if err := e.appendEvent(instanceID, EventProgressed, node, meta.Status, actor, nil); err != nil {
			return nil, err
		}
		log.Printf("workflow instance %s stopped at %q without pausing or finishing; a bag value was not recognized by the step's guard", instanceID, node)
		return &Summary{
			Status:     StatusInProgress,
			InstanceID: instanceID,
			Node:       node,
		}, nil
	}
}

// updateMetaFromState projects execution state onto the instance metadata
// and appends a step-history record when the node changed. It is the sole
// metadata writer apart from the paused override in run.
func (e *Engine) updateMetaFromState(instanceID, actor string, state *ExecutionState) (*InstanceMeta, error) {
	meta, err := e.getMeta(instanceID)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingMetadata, instanceID)
	}

	meta.LastActor = actor
	if state.Meta.LastNode != "" {
		meta.LastNode = state.Meta.LastNode
	}
	if state.Meta.StartTime != nil && meta.StartTime == nil {
		meta.StartTime = state.Meta.StartTime
	}
	if state.Meta.EndTime != nil {
		meta.EndTime = state.Meta.EndTime
	}
	if state.Meta.Status != "" {
		meta.Status = state.Meta.Status
	}

	var prevNode string
	if n := len(meta.StepsHistory); n > 0 {
		prevNode = meta.StepsHistory[n-1].Node
	}
	if meta.LastNode != "" && meta.LastNode != prevNode {
		meta.StepsHistory = append(meta.StepsHistory, StepRecord{
			Timestamp: time.Now().UTC(),
			Node:      meta.LastNode,
			Actor:     actor,
			Status:    meta.Status,
		})
	}

	if err := e.putMeta(meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// GetState returns the raw execution state, or nil when the instance is
// unknown.
func (e *Engine) GetState(instanceID string) (*ExecutionState, error) {
	return e.getState(instanceID)
}

// GetMeta returns the audit metadata, or nil when the instance is unknown.
// Absence is not an error: callers use GetMeta as an existence check.
func (e *Engine) GetMeta(instanceID string) (*InstanceMeta, error) {
	return e.getMeta(instanceID)
}

// History returns all events for an instance in append order, empty if none
func (e *Engine) History(instanceID string) ([]Event, error) {
	return e.loadEvents(instanceID)
}

// ListInstances returns the metadata of every indexed instance matching the
// filters, sorted by most recent step-history timestamp descending.
// Instances with no history yet sort last.
func (e *Engine) ListInstances(filters ListFilters) ([]*InstanceMeta, error) {
	ids, err := e.loadIndex()
	if err != nil {
		return nil, err
	}

	out := make([]*InstanceMeta, 0, len(ids))
	for _, id := range ids {
		meta, err := e.getMeta(id)
		if err != nil {
			return nil, err
		}
		if meta == nil {
			continue
		}
		if filters.CustomerID != "" && meta.CustomerID != filters.CustomerID {
			continue
		}
		if filters.Status != "" && meta.Status != filters.Status {
			continue
		}
		if filters.StartedBy != "" && meta.StartedBy != filters.StartedBy {
			continue
		}
		if filters.WorkflowName != "" && meta.WorkflowName != filters.WorkflowName {
			continue
		}
		out = append(out, meta)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return lastStepTime(out[i]).After(lastStepTime(out[j]))
	})

	return out, nil
}

// lastStepTime is the listing sort key: the timestamp of the most recent
// step-history record, zero when the instance has no history yet.
func lastStepTime(m *InstanceMeta) time.Time {
	if n := len(m.StepsHistory); n > 0 {
		return m.StepsHistory[n-1].Timestamp
	}
	return time.Time{}
}

// ---- store helpers ----

func (e *Engine) putState(state *ExecutionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode execution state: %w", err)
	}
	if err := e.store.Put(stateNamespace, state.InstanceID, data); err != nil {
		return fmt.Errorf("failed to persist execution state: %w", err)
	}
	return nil
}

func (e *Engine) getState(instanceID string) (*ExecutionState, error) {
	data, err := e.store.Get(stateNamespace, instanceID)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load execution state: %w", err)
	}

	var state ExecutionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode execution state: %w", err)
	}
	return &state, nil
}

func (e *Engine) putMeta(meta *InstanceMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode instance metadata: %w", err)
	}
	if err := e.store.Put(metaNamespace, meta.InstanceID, data); err != nil {
		return fmt.Errorf("failed to persist instance metadata: %w", err)
	}
	return nil
}

func (e *Engine) getMeta(instanceID string) (*InstanceMeta, error) {
	data, err := e.store.Get(metaNamespace, instanceID)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load instance metadata: %w", err)
	}

	var meta InstanceMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode instance metadata: %w", err)
	}
	return &meta, nil
}

func (e *Engine) loadEvents(instanceID string) ([]Event, error) {
	data, err := e.store.Get(eventsNamespace, instanceID)
	if errors.Is(err, store.ErrKeyNotFound) {
		return []Event{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event log: %w", err)
	}

	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to decode event log: %w", err)
	}
	return events, nil
}

func (e *Engine) appendEvent(instanceID string, kind EventKind, node string, status Status, actor string, data map[string]interface{}) error {
	events, err := e.loadEvents(instanceID)
	if err != nil {
		return err
	}

	events = append(events, Event{
		Timestamp:  time.Now().UTC(),
		InstanceID: instanceID,
		Event:      kind,
		Node:       node,
		Status:     status,
		Actor:      actor,
		Data:       data,
	})

	payload, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode event log: %w", err)
	}
	if err := e.store.Put(eventsNamespace, instanceID, payload); err != nil {
		return fmt.Errorf("failed to persist event log: %w", err)
	}
	return nil
}

func (e *Engine) loadIndex() ([]string, error) {
	data, err := e.store.Get(indexNamespace, indexKey)
	if errors.Is(err, store.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load instance index: %w", err)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode instance index: %w", err)
	}
	return ids, nil
}

// addToIndex ensures instance id membership; it is a no-op when already
// present. The index is shared across instances, so the load-append-put
// cycle holds its own mutex: concurrent starts would otherwise each load
// the same list and the last write would drop the other ids.
func (e *Engine) addToIndex(instanceID string) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()

	ids, err := e.loadIndex()
	if err != nil {
		return err
	}

	for _, id := range ids {
		if id == instanceID {
			return nil
		}
	}
	ids = append(ids, instanceID)

	payload, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode instance index: %w", err)
	}
	if err := e.store.Put(indexNamespace, indexKey, payload); err != nil {
		return fmt.Errorf("failed to persist instance index: %w", err)
	}
	return nil
}
