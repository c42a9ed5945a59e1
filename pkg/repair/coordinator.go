// Package repair asks a text generation service to fix diagram sources
// that fail to render, at most once per distinct source.
//
// The [Coordinator] owns one [State] per source it has seen and a single
// in-flight flag shared by all sources, so two repairs never overlap. A
// successful repair is committed to the caller first, then written into
// the persisted document and broadcast as an [events.DocumentUpdated].
package repair

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/errors"
	"github.com/matzehuels/docsmith/pkg/events"
	"github.com/matzehuels/docsmith/pkg/observability"
	"github.com/matzehuels/docsmith/pkg/store"
)

// MaxRepairChain is the default number of repairs that may follow each
// other when every repaired source fails again.
const MaxRepairChain = 3

// Outcome is how a call to Repair ended.
type Outcome int

const (
	// OutcomeRepaired: a new source was committed, persisted and broadcast.
	OutcomeRepaired Outcome = iota
	// OutcomeExhausted: the attempt produced nothing usable. Terminal.
	OutcomeExhausted
	// OutcomeDeclined: credentials or metadata are missing. Not an attempt.
	OutcomeDeclined
	// OutcomeBusy: another repair is in flight. Not an attempt.
	OutcomeBusy
	// OutcomeSkipped: this source was already attempted.
	OutcomeSkipped
	// OutcomeCancelled: the caller went away or moved to another source
	// while the request was outstanding. The attempt still counts.
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRepaired:
		return "repaired"
	case OutcomeExhausted:
		return "exhausted"
	case OutcomeDeclined:
		return "declined"
	case OutcomeBusy:
		return "busy"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Request asks for a repair of one diagram.
type Request struct {
	// Diagram is the failing diagram and where it sits in the document.
	Diagram document.Diagram

	// Commit switches the caller to the repaired source. Returning false
	// means the caller no longer wants the result; nothing is persisted or
	// broadcast then. A nil Commit always accepts.
	Commit func(next string) bool
}

// Result describes a finished Repair call.
type Result struct {
	Outcome Outcome
	// Source is the repaired diagram source for OutcomeRepaired.
	Source string
	// Event is the broadcast update for OutcomeRepaired.
	Event *events.DocumentUpdated
	// Err explains Declined and Exhausted outcomes.
	Err error
}

// Coordinator runs diagram repairs. It is safe for concurrent use.
type Coordinator struct {
	Docs      *store.Documents
	Bus       events.Bus
	Generator Generator
	Notifier  Notifier
	Logger    *log.Logger
	// MaxChain caps consecutive repairs; see MaxRepairChain.
	MaxChain int

	mu       sync.Mutex
	states   map[string]*State
	notified map[string]bool
	inFlight bool
}

// NewCoordinator returns a coordinator. A nil bus skips broadcasting, a
// nil notifier logs notices and a nil logger means log.Default().
func NewCoordinator(docs *store.Documents, bus events.Bus, gen Generator, notifier Notifier, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Coordinator{
		Docs:      docs,
		Bus:       bus,
		Generator: gen,
		Notifier:  notifier,
		Logger:    logger,
		MaxChain:  MaxRepairChain,
		states:    make(map[string]*State),
		notified:  make(map[string]bool),
	}
}

// State returns a snapshot of the repair state of source.
func (c *Coordinator) State(source string) State {
	source = strings.TrimSpace(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.state(source)
}

// InFlight reports whether any repair is outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Reset forgets source so it may be repaired again.
func (c *Coordinator) Reset(source string) {
	source = strings.TrimSpace(source)
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.states, source)
	delete(c.notified, source)
}

func (c *Coordinator) state(source string) *State {
	st, ok := c.states[source]
	if !ok {
		st = &State{Source: source}
		c.states[source] = st
	}
	return st
}

// Repair attempts to fix req.Diagram.Source. A source is attempted at most
// once until Reset; later calls return OutcomeSkipped. Errors never escape
// as panics or returns: they end the attempt and are reported in Result.
func (c *Coordinator) Repair(ctx context.Context, req Request) Result {
	source := strings.TrimSpace(req.Diagram.Source)
	if source == "" {
		return Result{Outcome: OutcomeDeclined, Err: errors.New(errors.ErrCodeRepairDeclined, "no diagram source")}
	}

	if res, ok := c.precheck(source); !ok {
		return res
	}

	meta, apiKey, err := c.credentials(ctx)
	if err != nil {
		c.Logger.Debug("diagram repair declined", "error", err)
		return Result{Outcome: OutcomeDeclined, Err: err}
	}

	c.mu.Lock()
	st := c.state(source)
	switch {
	case st.Phase != PhaseIdle:
		c.mu.Unlock()
		return Result{Outcome: OutcomeSkipped}
	case c.inFlight:
		c.mu.Unlock()
		return Result{Outcome: OutcomeBusy}
	}
	if err := st.begin(); err != nil {
		c.mu.Unlock()
		return Result{Outcome: OutcomeSkipped, Err: err}
	}
	depth := st.Depth
	c.inFlight = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	hooks := observability.Repair()
	hooks.OnRepairStart(ctx, meta.Provider)
	start := time.Now()
	res := c.attempt(ctx, req, source, depth, meta, apiKey)
	hooks.OnRepairComplete(ctx, meta.Provider, res.Outcome.String(), time.Since(start), res.Err)
	return res
}

// precheck applies the guards that need no store access, and the chain
// limit.
func (c *Coordinator) precheck(source string) (Result, bool) {
	c.mu.Lock()
	st := c.state(source)
	switch {
	case st.Phase != PhaseIdle:
		c.mu.Unlock()
		return Result{Outcome: OutcomeSkipped}, false
	case c.inFlight:
		c.mu.Unlock()
		return Result{Outcome: OutcomeBusy}, false
	case c.MaxChain <= 0 || st.Depth < c.MaxChain:
		c.mu.Unlock()
		return Result{}, true
	}
	_ = st.exhaust()
	depth := st.Depth
	c.mu.Unlock()

	c.Logger.Warn("diagram repair chain limit reached", "repairs", depth)
	c.notify(context.Background(), source, Notice{Level: LevelError, Source: source, Message: "Diagram still fails to render after automatic repairs."})
	return Result{Outcome: OutcomeExhausted, Err: errors.New(errors.ErrCodeRepairFailed, "gave up after %d consecutive repairs", depth)}, false
}

func (c *Coordinator) credentials(ctx context.Context) (*document.GenerationMetadata, string, error) {
	if c.Docs == nil || c.Generator == nil {
		return nil, "", errors.New(errors.ErrCodeRepairDeclined, "repair is not configured")
	}
	meta, err := c.Docs.Metadata(ctx)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeRepairDeclined, err, "generation metadata")
	}
	apiKey, err := c.Docs.Credential(ctx, meta.Provider)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeRepairDeclined, err, "API key for %s", meta.Provider)
	}
	return meta, apiKey, nil
}

func (c *Coordinator) attempt(ctx context.Context, req Request, source string, depth int, meta *document.GenerationMetadata, apiKey string) Result {
	logger := c.Logger.With("provider", meta.Provider)
	logger.Info("repairing diagram")

	text, err := c.Generator.Generate(ctx, GenerateRequest{
		Provider: meta.Provider,
		Model:    meta.Model,
		APIKey:   apiKey,
		Prompt:   BuildPrompt(meta.Prompt, source),
	})
	if ctx.Err() != nil {
		c.finish(source, false)
		logger.Debug("diagram repair cancelled")
		return Result{Outcome: OutcomeCancelled, Err: ctx.Err()}
	}
	if err != nil {
		c.finish(source, false)
		logger.Error("diagram repair failed", "error", err)
		c.notify(ctx, source, Notice{Level: LevelError, Source: source, Message: "Diagram repair failed: " + errors.UserMessage(err)})
		return Result{Outcome: OutcomeExhausted, Err: err}
	}

	next, ok := ExtractSource(text)
	if !ok || next == source {
		c.finish(source, false)
		logger.Warn("no diagram repair available")
		c.notify(ctx, source, Notice{Level: LevelWarn, Source: source, Message: "No diagram repair available."})
		return Result{Outcome: OutcomeExhausted, Err: errors.New(errors.ErrCodeRepairFailed, "no repair available")}
	}

	if req.Commit != nil && !req.Commit(next) {
		c.finish(source, false)
		logger.Debug("diagram repair discarded by caller")
		return Result{Outcome: OutcomeCancelled}
	}
	c.finish(source, true)

	c.mu.Lock()
	if child := c.state(next); child.Phase == PhaseIdle && child.Depth < depth+1 {
		child.Depth = depth + 1
	}
	c.mu.Unlock()

	event := c.persist(ctx, req.Diagram, next)
	logger.Info("diagram repaired", "persisted", event != nil)
	c.notify(ctx, source, Notice{Level: LevelInfo, Source: source, Message: "Diagram repaired automatically."})
	return Result{Outcome: OutcomeRepaired, Source: next, Event: event}
}

func (c *Coordinator) finish(source string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state(source)
	if ok {
		_ = st.succeed()
	} else {
		_ = st.exhaust()
	}
}

// persist writes the repaired block into the stored document and
// broadcasts the change. Failures are logged: the caller has already
// switched to the repaired source.
func (c *Coordinator) persist(ctx context.Context, d document.Diagram, next string) *events.DocumentUpdated {
	doc, err := c.Docs.Document(ctx)
	if err != nil {
		if !store.IsNotFound(err) {
			c.Logger.Warn("load document for repair", "error", err)
		}
		return nil
	}
	updated, nextBlock, ok := document.ReplaceDiagram(*doc, d, next)
	if !ok {
		c.Logger.Warn("repaired diagram block no longer in document")
		return nil
	}
	if err := c.Docs.SaveDocument(ctx, updated); err != nil {
		c.Logger.Error("persist repaired document", "error", err)
		return nil
	}

	e := events.NewDocumentUpdated(d.Block, nextBlock)
	if c.Bus != nil {
		if err := c.Bus.Publish(ctx, e); err != nil {
			c.Logger.Warn("broadcast document update", "error", err)
		}
	}
	return &e
}

// notify sends at most one notice per source.
func (c *Coordinator) notify(ctx context.Context, source string, n Notice) {
	c.mu.Lock()
	first := !c.notified[source]
	c.notified[source] = true
	c.mu.Unlock()
	if first {
		c.Notifier.Notify(ctx, n)
	}
}
