package crdt

import (
	"encoding/json"
	"fmt"

	"github.com/khunphaen/syncserver/internal/domain"
	"github.com/khunphaen/syncserver/internal/metrics"
)

// Value is a single last-writer-wins field register.
type Value struct {
	Value     string    `json:"value"`
	Timestamp Timestamp `json:"timestamp"`
}

// Task is a tagged, soft-deletable bag of LWW field registers.
type Task struct {
	ID        uint32           `json:"id"`
	Fields    map[string]Value `json:"fields"`
	Deleted   bool             `json:"deleted"`
	CreatedAt Timestamp        `json:"created_at"`
	UpdatedAt Timestamp        `json:"updated_at"`
}

func newTask(id uint32, ts Timestamp) *Task {
	return &Task{
		ID:        id,
		Fields:    make(map[string]Value),
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func (t *Task) clone() *Task {
	fields := make(map[string]Value, len(t.Fields))
	for k, v := range t.Fields {
		fields[k] = v
	}
	return &Task{
		ID:        t.ID,
		Fields:    fields,
		Deleted:   t.Deleted,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// OperationKind discriminates the Operation sum type on the wire.
type OperationKind string

const (
	OpInsert OperationKind = "insert"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// Operation is a tagged union describing a single mutation to replay on a
// remote replica. Insert and Update are handled identically on apply; the
// distinction is advisory metadata for log consumers.
type Operation struct {
	Kind      OperationKind
	TaskID    uint32
	Field     string // empty for Delete
	Value     string // empty for Delete
	Timestamp Timestamp
}

type operationWire struct {
	Type      OperationKind `json:"type"`
	TaskID    uint32        `json:"task_id"`
	Field     string        `json:"field,omitempty"`
	Value     string        `json:"value,omitempty"`
	Timestamp Timestamp     `json:"timestamp"`
}

// MarshalJSON encodes the tag as a sibling field rather than a nested
// variant payload.
func (o Operation) MarshalJSON() ([]byte, error) {
	return json.Marshal(operationWire{
		Type:      o.Kind,
		TaskID:    o.TaskID,
		Field:     o.Field,
		Value:     o.Value,
		Timestamp: o.Timestamp,
	})
}

func (o *Operation) UnmarshalJSON(data []byte) error {
	var wire operationWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	switch wire.Type {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("crdt: unknown operation type %q", wire.Type)
	}
	o.Kind = wire.Type
	o.TaskID = wire.TaskID
	o.Field = wire.Field
	o.Value = wire.Value
	o.Timestamp = wire.Timestamp
	return nil
}

// Document is a single node's replica: its own Lamport clock, the live
// task map, and a pending operation journal cleared after a successful
// external sync.
type Document struct {
	clock      *Clock
	tasks      map[uint32]*Task
	operations []Operation
}

// NewDocument creates an empty document owned by nodeID.
func NewDocument(nodeID string) *Document {
	return &Document{
		clock: NewClock(nodeID),
		tasks: make(map[uint32]*Task),
	}
}

// NodeID returns the owning node's identifier.
func (d *Document) NodeID() string {
	return d.clock.NodeID()
}

// UpsertField mints a new local timestamp and writes field on task_id,
// creating the task if absent. The write is skipped if an existing field
// already carries a timestamp ≥ the new one, which cannot happen from
// local calls (the clock only increases) but is required for the apply
// path to stay symmetric with merge.
func (d *Document) UpsertField(taskID uint32, field, value string) {
	ts := d.clock.Next()
	d.applyFieldWrite(taskID, field, value, ts, true)
}

// DeleteTask tombstones task_id if it exists, minting a fresh timestamp.
func (d *Document) DeleteTask(taskID uint32) {
	task, ok := d.tasks[taskID]
	if !ok {
		return
	}
	ts := d.clock.Next()
	task.Deleted = true
	task.UpdatedAt = ts
	d.operations = append(d.operations, Operation{
		Kind:      OpDelete,
		TaskID:    taskID,
		Timestamp: ts,
	})
}

// applyFieldWrite is shared by the local mint path (recordOp=true, appends
// to the journal) and the remote apply path (recordOp=false). A write older
// than the task's created_at moves created_at back to it, so replicas agree
// on created_at whichever write reached them first.
func (d *Document) applyFieldWrite(taskID uint32, field, value string, ts Timestamp, recordOp bool) {
	task, exists := d.tasks[taskID]
	if !exists {
		task = newTask(taskID, ts)
		d.tasks[taskID] = task
	} else if ts.Less(task.CreatedAt) {
		task.CreatedAt = ts
	}

	existing, hasField := task.Fields[field]
	if hasField && !ts.Greater(existing.Timestamp) {
		return
	}

	wasFirstField := len(task.Fields) == 0
	task.Fields[field] = Value{Value: value, Timestamp: ts}
	task.UpdatedAt = ts

	if recordOp {
		kind := OpUpdate
		if wasFirstField && field == "title" {
			kind = OpInsert
		}
		d.operations = append(d.operations, Operation{
			Kind:      kind,
			TaskID:    taskID,
			Field:     field,
			Value:     value,
			Timestamp: ts,
		})
	}
}

// GetTasks returns a live view of non-deleted tasks.
func (d *Document) GetTasks() []*Task {
	out := make([]*Task, 0, len(d.tasks))
	for _, t := range d.tasks {
		if !t.Deleted {
			out = append(out, t.clone())
		}
	}
	return out
}

// GetTask returns task_id if present and not deleted.
func (d *Document) GetTask(taskID uint32) (*Task, bool) {
	t, ok := d.tasks[taskID]
	if !ok || t.Deleted {
		return nil, false
	}
	return t.clone(), true
}

// Export serializes the full tasks map (tombstones included) for transfer
// to another node via merge.
func (d *Document) Export() ([]byte, error) {
	return json.Marshal(d.tasks)
}

// Import replaces the tasks map wholesale from a prior Export. It does
// NOT merge; use Merge for that.
func (d *Document) Import(data []byte) error {
	tasks := make(map[uint32]*Task)
	if err := json.Unmarshal(data, &tasks); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCrdtDecode, err)
	}
	d.tasks = tasks
	return nil
}

// MergeJSON decodes a remote Export payload and merges it in.
func (d *Document) MergeJSON(data []byte) error {
	remote := make(map[uint32]*Task)
	if err := json.Unmarshal(data, &remote); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCrdtDecode, err)
	}
	d.Merge(remote)
	return nil
}

// Merge reconciles a remote snapshot (as produced by Export) into this
// document using per-field LWW comparison. Local timestamps strictly win
// ties, which can never actually occur since a timestamp's node_id
// uniquely attributes it.
func (d *Document) Merge(remote map[uint32]*Task) {
	for taskID, other := range remote {
		local, exists := d.tasks[taskID]
		if !exists {
			if !other.Deleted {
				d.tasks[taskID] = other.clone()
			}
			continue
		}

		for field, otherVal := range other.Fields {
			localVal, hasField := local.Fields[field]
			if !hasField || otherVal.Timestamp.Greater(localVal.Timestamp) {
				local.Fields[field] = otherVal
			}
		}

		if other.CreatedAt.Less(local.CreatedAt) {
			local.CreatedAt = other.CreatedAt
		}
		if other.Deleted && other.UpdatedAt.Greater(local.UpdatedAt) {
			local.Deleted = true
		}
		if other.UpdatedAt.Greater(local.UpdatedAt) {
			local.UpdatedAt = other.UpdatedAt
		}
	}
}

// ApplyOperations replays a remote operation journal. Remote timestamps
// are adopted as-is; the local counter is never advanced by this path.
func (d *Document) ApplyOperations(ops []Operation) {
	for _, op := range ops {
		switch op.Kind {
		case OpInsert, OpUpdate:
			d.applyFieldWrite(op.TaskID, op.Field, op.Value, op.Timestamp, false)
		case OpDelete:
			d.applyDeletion(op.TaskID, op.Timestamp)
		}
		metrics.CrdtOperationsAppliedTotal.WithLabelValues(string(op.Kind)).Inc()
	}
}

func (d *Document) applyDeletion(taskID uint32, ts Timestamp) {
	task, ok := d.tasks[taskID]
	if !ok {
		return
	}
	if ts.Greater(task.UpdatedAt) {
		task.Deleted = true
		task.UpdatedAt = ts
	}
}

// Operations returns the pending journal since the last ClearOperations.
func (d *Document) Operations() []Operation {
	out := make([]Operation, len(d.operations))
	copy(out, d.operations)
	return out
}

// ClearOperations empties the journal after a successful external sync.
func (d *Document) ClearOperations() {
	d.operations = nil
}

// Stats summarizes the document for diagnostics.
type Stats struct {
	NodeID            string `json:"node_id"`
	ActiveTasks       int    `json:"active_tasks"`
	DeletedTasks      int    `json:"deleted_tasks"`
	PendingOperations int    `json:"pending_operations"`
	Counter           uint64 `json:"counter"`
}

// Stats reports a snapshot of document size and clock state.
func (d *Document) Stats() Stats {
	active, deleted := 0, 0
	for _, t := range d.tasks {
		if t.Deleted {
			deleted++
		} else {
			active++
		}
	}
	return Stats{
		NodeID:            d.NodeID(),
		ActiveTasks:       active,
		DeletedTasks:      deleted,
		PendingOperations: len(d.operations),
		Counter:           d.clock.Counter(),
	}
}
