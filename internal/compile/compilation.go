// Package compile orchestrates one reel compilation: selection, download,
// render, upload, persistence, and best-effort tagging, with guaranteed
// temp-workspace cleanup on every exit path.
package compile

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Stage represents the current state of a compilation request.
type Stage string

const (
	// StageValidating checks the request parameters and credentials.
	StageValidating Stage = "VALIDATING"
	// StageSelecting resolves the composition plan.
	StageSelecting Stage = "SELECTING"
	// StageDownloading fetches the source images into the workspace.
	StageDownloading Stage = "DOWNLOADING"
	// StageRendering runs the external renderer.
	StageRendering Stage = "RENDERING"
	// StageUploading pushes the rendered reel to the provider.
	StageUploading Stage = "UPLOADING"
	// StagePersisting writes the compilation record.
	StagePersisting Stage = "PERSISTING"
	// StageTagging applies best-effort reel tags to the sources.
	StageTagging Stage = "TAGGING"
	// StageDone is the successful terminal state.
	StageDone Stage = "DONE"
	// StageFailed is the failure terminal state, reachable from any stage.
	StageFailed Stage = "FAILED"
)

// ErrInvalidTransition is returned when an invalid stage transition is attempted.
var ErrInvalidTransition = errors.New("compile: invalid stage transition")

// validTransitions defines which stage transitions are allowed. Failed is
// reachable from every non-terminal stage.
var validTransitions = map[Stage][]Stage{
	StageValidating:  {StageSelecting, StageFailed},
	StageSelecting:   {StageDownloading, StageFailed},
	StageDownloading: {StageRendering, StageFailed},
	StageRendering:   {StageUploading, StageFailed},
	StageUploading:   {StagePersisting, StageFailed},
	StagePersisting:  {StageTagging, StageFailed},
	StageTagging:     {StageDone, StageFailed},
	StageDone:        {},
	StageFailed:      {},
}

func canTransition(from, to Stage) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// TagOutcome is the reported result of one best-effort tag or context
// update after the record was persisted.
type TagOutcome struct {
	// Target names the update, e.g. "tag:reel" or "context:beach-01".
	Target string
	// Error holds the failure message; empty means the update landed.
	Error string
}

// OK reports whether the update succeeded.
func (o TagOutcome) OK() bool {
	return o.Error == ""
}

// Record is the persisted outcome of a successful compilation.
// It is created once, after a confirmed upload, and never mutated.
type Record struct {
	ID              string
	UserID          string
	ConnectionID    string
	ConnectionName  string
	PublicID        string
	URL             string
	SecureURL       string
	ArchiveURL      string
	SourcePublicIDs []string
	ImageCount      int
	CreatedAt       time.Time
}

// Compilation is the aggregate tracking one in-flight reel request.
type Compilation struct {
	mu sync.RWMutex

	// ID is the unique identifier for this compilation.
	ID string
	// UserID is the owning user.
	UserID string
	// ConnectionID is the provider connection used.
	ConnectionID string
	// Stage is the current pipeline stage.
	Stage Stage
	// FailedStage records where a failed compilation stopped.
	FailedStage Stage
	// Error holds the failure message for failed compilations.
	Error string
	// PlanPublicIDs is the resolved plan in render order.
	PlanPublicIDs []string
	// Record is set once the compilation record was persisted.
	Record *Record
	// TagOutcomes reports the best-effort tag updates.
	TagOutcomes []TagOutcome
	// CreatedAt is when the compilation was requested.
	CreatedAt time.Time
	// UpdatedAt is when the compilation last changed.
	UpdatedAt time.Time
	// CompletedAt is when the compilation reached a terminal stage.
	CompletedAt time.Time
}

// New creates a Compilation with a generated id in StageValidating.
func New(userID, connectionID string) *Compilation {
	now := time.Now()
	return &Compilation{
		ID:           uuid.NewString(),
		UserID:       userID,
		ConnectionID: connectionID,
		Stage:        StageValidating,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Advance attempts to move the compilation to the given stage.
// Returns ErrInvalidTransition if the transition is not allowed.
func (c *Compilation) Advance(stage Stage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !canTransition(c.Stage, stage) {
		return ErrInvalidTransition
	}

	c.Stage = stage
	c.UpdatedAt = time.Now()
	if stage == StageDone || stage == StageFailed {
		c.CompletedAt = c.UpdatedAt
	}
	return nil
}

// Fail marks the compilation failed, recording the stage it was in and
// the failure message.
func (c *Compilation) Fail(stage Stage, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.FailedStage = stage
	c.Error = msg
	c.Stage = StageFailed
	c.UpdatedAt = time.Now()
	c.CompletedAt = c.UpdatedAt
}

// SetPlan records the resolved plan.
func (c *Compilation) SetPlan(publicIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PlanPublicIDs = publicIDs
	c.UpdatedAt = time.Now()
}

// SetRecord attaches the persisted record.
func (c *Compilation) SetRecord(record *Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Record = record
	c.UpdatedAt = time.Now()
}

// SetTagOutcomes records the best-effort tag update results.
func (c *Compilation) SetTagOutcomes(outcomes []TagOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TagOutcomes = outcomes
	c.UpdatedAt = time.Now()
}

// CurrentStage returns the current stage (thread-safe).
func (c *Compilation) CurrentStage() Stage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Stage
}

// IsTerminal returns true if the compilation reached a terminal stage.
func (c *Compilation) IsTerminal() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Stage == StageDone || c.Stage == StageFailed
}

// Clone creates a deep copy of the compilation for safe reads.
func (c *Compilation) Clone() *Compilation {
	c.mu.RLock()
	defer c.mu.RUnlock()

	plan := make([]string, len(c.PlanPublicIDs))
	copy(plan, c.PlanPublicIDs)
	outcomes := make([]TagOutcome, len(c.TagOutcomes))
	copy(outcomes, c.TagOutcomes)

	var record *Record
	if c.Record != nil {
		r := *c.Record
		r.SourcePublicIDs = append([]string(nil), c.Record.SourcePublicIDs...)
		record = &r
	}

	return &Compilation{
		ID:            c.ID,
		UserID:        c.UserID,
		ConnectionID:  c.ConnectionID,
		Stage:         c.Stage,
		FailedStage:   c.FailedStage,
		Error:         c.Error,
		PlanPublicIDs: plan,
		Record:        record,
		TagOutcomes:   outcomes,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		CompletedAt:   c.CompletedAt,
	}
}
