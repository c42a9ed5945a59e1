// Package view hosts the diagram render cycle of a document: render,
// repair on failure, re-render the repaired source, and settle on one of
// three displayable states.
package view

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/docsmith/pkg/diagram"
	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/repair"
)

// NoDiagramMessage is shown when a document has no diagram.
const NoDiagramMessage = "no diagram available"

// Status is what the view currently displays.
type Status int

const (
	// StatusEmpty: there is no diagram to show.
	StatusEmpty Status = iota
	// StatusRendered: SVG, and normally PNG, are available.
	StatusRendered
	// StatusFailed: an inert panel shows the source that failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusEmpty:
		return "empty"
	case StatusRendered:
		return "rendered"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a snapshot of the view.
type State struct {
	Status Status
	// Source is the rendered source, or for StatusFailed the sanitized
	// (or raw) source shown in the panel.
	Source string
	SVG    []byte
	PNG    []byte
	Width  int
	Height int
	// Message describes an empty or failed view.
	Message string
	// Repair is the repair state of the current diagram source.
	Repair repair.State
	Err    error
}

// DiagramView renders one diagram at a time. Changing the diagram or
// closing the view invalidates any render in progress; its results are
// dropped when it returns.
type DiagramView struct {
	Renderer    *diagram.Renderer
	Coordinator *repair.Coordinator
	Logger      *log.Logger

	mu      sync.Mutex
	diagram document.Diagram
	has     bool
	gen     uint64
	state   State
	ctx     context.Context
	cancel  context.CancelFunc
}

// New returns an empty view. A nil coordinator disables repairs.
func New(renderer *diagram.Renderer, coord *repair.Coordinator, logger *log.Logger) *DiagramView {
	if renderer == nil {
		renderer = diagram.NewRenderer(nil, nil, nil, logger)
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &DiagramView{
		Renderer:    renderer,
		Coordinator: coord,
		Logger:      logger,
		state:       State{Status: StatusEmpty, Message: NoDiagramMessage},
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetDocument shows the diagram of doc, or nothing if it has none.
func (v *DiagramView) SetDocument(doc document.Document) {
	d, ok := document.ExtractDiagram(doc)
	v.set(d, ok)
}

// SetDiagram shows d.
func (v *DiagramView) SetDiagram(d document.Diagram) {
	v.set(d, d.Source != "")
}

// SetSource shows a diagram source that is not part of a stored document.
func (v *DiagramView) SetSource(source string) {
	v.SetDiagram(document.Diagram{Source: source})
}

func (v *DiagramView) set(d document.Diagram, ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ok == v.has && d == v.diagram {
		return
	}
	v.diagram, v.has = d, ok
	v.gen++
	v.state = State{Status: StatusEmpty, Message: NoDiagramMessage}
}

// State returns the current snapshot.
func (v *DiagramView) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Close cancels any render in progress. Later renders return the last
// state unchanged.
func (v *DiagramView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.cancel()
}

// Render runs the render cycle for the current diagram and returns the
// resulting state. If the diagram changes or the view closes meanwhile,
// the cycle's results are discarded and the current state is returned.
func (v *DiagramView) Render(ctx context.Context) State {
	v.mu.Lock()
	gen, d, has := v.gen, v.diagram, v.has
	v.mu.Unlock()

	if v.ctx.Err() != nil {
		return v.State()
	}
	if !has {
		return v.commit(gen, State{Status: StatusEmpty, Message: NoDiagramMessage})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(v.ctx, cancel)
	defer stop()

	for {
		res, err := v.Renderer.Render(ctx, d.Source)
		if v.stale(ctx, gen) {
			return v.State()
		}
		if err == nil {
			s := v.rendered(ctx, res)
			if v.stale(ctx, gen) {
				return v.State()
			}
			return v.commit(gen, s)
		}
		v.Logger.Debug("diagram failed to render", "error", err)

		if v.Coordinator == nil {
			return v.commit(gen, v.failed(d.Source, err))
		}
		result := v.Coordinator.Repair(ctx, repair.Request{
			Diagram: d,
			Commit: func(next string) bool {
				v.mu.Lock()
				defer v.mu.Unlock()
				if v.gen != gen || ctx.Err() != nil {
					return false
				}
				d = document.Diagram{Source: next, Block: document.Fence(next), InText: d.InText}
				v.diagram = d
				v.gen++
				gen = v.gen
				return true
			},
		})
		if v.stale(ctx, gen) {
			return v.State()
		}
		if result.Outcome == repair.OutcomeRepaired {
			continue
		}
		if result.Err != nil && !errors.Is(result.Err, errors.ErrCodeRepairDeclined) {
			err = result.Err
		}
		return v.commit(gen, v.failed(d.Source, err))
	}
}

func (v *DiagramView) rendered(ctx context.Context, res *diagram.Result) State {
	s := State{Status: StatusRendered, Source: res.Source, SVG: res.SVG}
	png, w, h, err := v.Renderer.RasterizeSVG(ctx, res.SVG)
	if err != nil {
		v.Logger.Warn("diagram rasterization failed", "error", err)
		s.Err = err
		return s
	}
	s.PNG, s.Width, s.Height = png, w, h
	return s
}

func (v *DiagramView) failed(source string, err error) State {
	return State{
		Status:  StatusFailed,
		Source:  diagram.Sanitize(source),
		Message: "diagram could not be rendered",
		Err:     err,
	}
}

func (v *DiagramView) stale(ctx context.Context, gen uint64) bool {
	if ctx.Err() != nil {
		return true
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.gen != gen
}

// commit stores s unless the view moved on since gen.
func (v *DiagramView) commit(gen uint64, s State) State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.gen != gen {
		return v.state
	}
	if v.Coordinator != nil && v.has {
		s.Repair = v.Coordinator.State(v.diagram.Source)
	}
	v.state = s
	return s
}
