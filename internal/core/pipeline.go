package core

// pipeline.go drives one import through its lifecycle:
//
//	Uploading -> Parsed -> Applying -> Completed
//	                 ^          |
//	                 +----------+  fatal apply error, edits preserved
//
// Abandoning is allowed before Applying and has no side effects, since
// nothing is persisted until the apply runs. Completed is terminal.

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// PipelineState names a stage of the import lifecycle.
type PipelineState string

const (
	StateUploading PipelineState = "uploading"
	StateParsed    PipelineState = "parsed"
	StateApplying  PipelineState = "applying"
	StateCompleted PipelineState = "completed"
	StateAbandoned PipelineState = "abandoned"
)

// ErrInvalidTransition is returned for an operation the current state does
// not allow.
var ErrInvalidTransition = errors.New("invalid pipeline transition")

// Applier commits an ApplyRequest. *Service and *ApplyEngine satisfy it.
type Applier interface {
	Apply(ctx context.Context, req ApplyRequest) (ApplyResult, error)
}

// Pipeline owns the review session of one import. It is safe for
// concurrent use; a second Apply while one is running fails with
// ErrApplyInProgress.
type Pipeline struct {
	mu       sync.Mutex
	state    PipelineState
	session  *Session
	result   *ApplyResult
	parseErr error
	applyErr error
}

// NewPipeline starts in Uploading.
func NewPipeline() *Pipeline {
	return &Pipeline{state: StateUploading}
}

// State returns the current stage.
func (p *Pipeline) State() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) transitionErr(op string) error {
	return fmt.Errorf("%s in state %s: %w", op, p.state, ErrInvalidTransition)
}

// Parsed moves Uploading to Parsed with a fresh review session.
func (p *Pipeline) Parsed(result *ParseResult) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateUploading {
		return p.transitionErr("parsed")
	}
	p.session = NewSession(result)
	p.state = StateParsed
	p.parseErr = nil
	return nil
}

// ParseFailed records a parse error. The pipeline stays in Uploading so
// another file can be submitted.
func (p *Pipeline) ParseFailed(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateUploading {
		p.parseErr = err
	}
}

// Edit runs fn against the review session. Only allowed in Parsed.
func (p *Pipeline) Edit(fn func(*Session) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateParsed {
		return p.transitionErr("edit")
	}
	return fn(p.session)
}

// View derives a display page from the current session.
func (p *Pipeline) View(opts ViewOptions) (View, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return View{}, p.transitionErr("view")
	}
	return p.session.View(opts), nil
}

// Apply submits the session's ApplyRequest. On error the pipeline returns
// to Parsed with every edit intact; on success it is Completed.
func (p *Pipeline) Apply(ctx context.Context, a Applier) (ApplyResult, error) {
	p.mu.Lock()
	switch p.state {
	case StateParsed:
	case StateApplying:
		p.mu.Unlock()
		return ApplyResult{}, ErrApplyInProgress
	default:
		err := p.transitionErr("apply")
		p.mu.Unlock()
		return ApplyResult{}, err
	}
	p.state = StateApplying
	p.applyErr = nil
	req := p.session.ApplyRequest()
	p.mu.Unlock()

	res, err := a.Apply(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.state = StateParsed
		p.applyErr = err
		return ApplyResult{}, err
	}
	p.state = StateCompleted
	p.result = &res
	return res, nil
}

// Abandon discards the import. Allowed before Applying.
func (p *Pipeline) Abandon() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateUploading, StateParsed:
		p.state = StateAbandoned
		p.session = nil
		return nil
	case StateApplying:
		return ErrApplyInProgress
	default:
		return p.transitionErr("abandon")
	}
}

// Result returns the outcome of a completed apply.
func (p *Pipeline) Result() (ApplyResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return ApplyResult{}, false
	}
	return *p.result, true
}

// LastError returns the most recent parse or apply failure, for the banner
// shown on the upload or preview step.
func (p *Pipeline) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applyErr != nil {
		return p.applyErr
	}
	return p.parseErr
}
