// Package poller runs the poll cycle: list the documents waiting in the
// source status, read their extracted fields and move them to the target
// status. Documents are handled one at a time.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/docpoller/internal/config"
	"github.com/aristath/docpoller/internal/documents"
	"github.com/aristath/docpoller/internal/domain"
	"github.com/aristath/docpoller/internal/events"
	"github.com/aristath/docpoller/internal/results"
	"github.com/aristath/docpoller/internal/utils"
)

const module = "poller"

// DocumentService is the facade the poller drives.
type DocumentService interface {
	ListDocuments(ctx context.Context, q documents.DocumentQuery) ([]domain.Document, domain.Outcome)
	GetFlatResults(ctx context.Context, doc *domain.Document) ([]*domain.ResultNode, domain.Outcome)
	GetHierarchicalResults(ctx context.Context, doc *domain.Document) ([]*domain.ResultNode, domain.Outcome)
	UpdateStatus(ctx context.Context, doc *domain.Document, status domain.DocumentStatus, comment string) bool
}

// Emitter receives poller events
type Emitter interface {
	Emit(module string, data events.EventData) events.Event
}

// Settings are the poll parameters
type Settings struct {
	Lookback          time.Duration
	Interval          time.Duration
	SourceStatus      domain.DocumentStatus
	TargetStatus      domain.DocumentStatus
	Comment           string
	FieldDefinitionID int
}

// SettingsFromConfig extracts the poll parameters from the application config
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Lookback:          cfg.Lookback,
		Interval:          cfg.Interval,
		SourceStatus:      cfg.SourceStatus,
		TargetStatus:      cfg.TargetStatus,
		Comment:           cfg.Comment,
		FieldDefinitionID: cfg.FieldDefinitionID,
	}
}

// State of the poller
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// CycleReport summarises one cycle
type CycleReport struct {
	ID        string    `json:"id"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
	Listed    int       `json:"listed"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Success   bool      `json:"success"`
}

// Status is a snapshot of the poller for status reporting
type Status struct {
	State     State        `json:"state"`
	Cycles    uint64       `json:"cycles"`
	Skipped   uint64       `json:"skipped"`
	LastCycle *CycleReport `json:"last_cycle,omitempty"`
}

// Poller runs poll cycles against a DocumentService
type Poller struct {
	docs     DocumentService
	settings Settings
	events   Emitter

	cycleMu sync.Mutex // held for the duration of a cycle

	mu      sync.RWMutex
	state   State
	cycles  uint64
	skipped uint64
	last    *CycleReport

	trigger chan struct{}
	now     func() time.Time
	log     zerolog.Logger
}

// New creates a poller. emitter may be nil.
func New(docs DocumentService, settings Settings, emitter Emitter, log zerolog.Logger) *Poller {
	return &Poller{
		docs:     docs,
		settings: settings,
		events:   emitter,
		state:    StateIdle,
		trigger:  make(chan struct{}, 1),
		now:      time.Now,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

// Run polls until ctx is cancelled: one cycle, then wait for the interval
// or a Trigger. It returns nil once ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	defer p.Stop()

	p.log.Info().Dur("interval", p.settings.Interval).Msg("Poller started")
	for ctx.Err() == nil {
		p.log.Info().Time("at", p.now()).Msg("Worker running")
		p.RunCycle(ctx)

		timer := time.NewTimer(p.settings.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-p.trigger:
			timer.Stop()
			p.log.Info().Msg("Manual poll requested")
		case <-timer.C:
		}
	}
	p.log.Info().Msg("Poller stopped")
	return nil
}

// Trigger asks Run for an immediate cycle. It never blocks; a trigger that
// is already pending absorbs this one.
func (p *Poller) Trigger() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop marks the poller stopped. Later cycles are refused.
func (p *Poller) Stop() {
	p.mu.Lock()
	p.state = StateStopped
	p.mu.Unlock()
}

// Snapshot returns the current status
func (p *Poller) Snapshot() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{State: p.state, Cycles: p.cycles, Skipped: p.skipped}
	if p.last != nil {
		last := *p.last
		s.LastCycle = &last
	}
	return s
}

// RunCycle runs one poll cycle and reports whether the document list could
// be read. Failures of single documents do not fail the cycle. A cycle
// requested while another runs is skipped and returns false.
func (p *Poller) RunCycle(ctx context.Context) bool {
	if !p.cycleMu.TryLock() {
		p.mu.Lock()
		p.skipped++
		p.mu.Unlock()
		p.log.Debug().Msg("Cycle already running, skipping")
		return false
	}
	defer p.cycleMu.Unlock()

	if !p.begin() {
		p.log.Debug().Msg("Poller stopped, cycle refused")
		return false
	}

	report := &CycleReport{ID: uuid.NewString(), Started: p.now().UTC()}
	report.Success = p.cycle(ctx, report)
	report.Finished = p.now().UTC()

	p.end(report)
	return report.Success
}

func (p *Poller) begin() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateStopped {
		return false
	}
	p.state = StateRunning
	return true
}

func (p *Poller) end(report *CycleReport) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cycles++
	p.last = report
	if p.state == StateRunning {
		p.state = StateIdle
	}
}

// cycle does the work of RunCycle. Remote calls run on a context that is
// not cancelled with ctx so that a call in flight completes; ctx is checked
// between documents.
func (p *Poller) cycle(ctx context.Context, report *CycleReport) (ok bool) {
	log := p.log.With().Str("cycle_id", report.ID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Debug().Str("panic", fmt.Sprint(r)).Msg("Poll cycle aborted")
			p.emit(&events.CycleFailedData{CycleID: report.ID, Reason: "panic"})
			ok = false
		}
	}()

	remoteCtx := context.WithoutCancel(ctx)
	end := report.Started
	start := end.Add(-p.settings.Lookback)
	status := p.settings.SourceStatus

	log.Info().
		Time("window_start", start).
		Time("window_end", end).
		Str("status", status.String()).
		Msg("Retrieving documents")
	p.emit(&events.CycleStartedData{CycleID: report.ID, WindowStart: start, WindowEnd: end})

	docs, outcome := p.docs.ListDocuments(remoteCtx, documents.DocumentQuery{
		Start:  &start,
		End:    &end,
		Status: &status,
		Usage:  domain.UsageInbox,
	})
	if !outcome.OK() {
		log.Warn().Str("outcome", outcome.String()).Msg("Document retrieval failed, cycle aborted")
		p.emit(&events.CycleFailedData{CycleID: report.ID, Reason: "document retrieval failed", Outcome: outcome.String()})
		return false
	}

	report.Listed = len(docs)
	log.Info().Int("count", len(docs)).Msg("Documents found")

	for i := range docs {
		if ctx.Err() != nil {
			log.Info().Int("remaining", len(docs)-i).Msg("Poller stopping, remaining documents left for the next run")
			break
		}
		if p.processDocument(remoteCtx, log, report.ID, &docs[i]) {
			report.Processed++
		} else {
			report.Failed++
		}
	}

	log.Info().
		Int("processed", report.Processed).
		Int("failed", report.Failed).
		Msg("Poll cycle completed")
	p.emit(&events.CycleCompletedData{
		CycleID:   report.ID,
		Listed:    report.Listed,
		Processed: report.Processed,
		Failed:    report.Failed,
		Duration:  p.now().UTC().Sub(report.Started).Seconds(),
	})
	return true
}

// processDocument reads the results of doc and moves it to the target
// status. Result lookups that fail are logged; the status update still runs.
func (p *Poller) processDocument(ctx context.Context, log zerolog.Logger, cycleID string, doc *domain.Document) bool {
	log = log.With().Int("document_id", doc.ID).Logger()
	log.Info().Stringer("document", doc).Msg("Start processing document")
	timer := utils.NewTimerWithClock("process_document", log, p.now)

	data := &events.DocumentData{CycleID: cycleID, DocumentID: doc.ID, Filename: doc.Filename}

	flat, outcome := p.docs.GetFlatResults(ctx, doc)
	if !outcome.OK() {
		log.Warn().Str("outcome", outcome.String()).Msg("Flat results unavailable")
		data.Stage, data.Outcome = "flat_results", outcome.String()
	}
	data.FlatResults = len(flat)

	tree, outcome := p.docs.GetHierarchicalResults(ctx, doc)
	if !outcome.OK() {
		log.Warn().Str("outcome", outcome.String()).Msg("Hierarchical results unavailable")
		data.Stage, data.Outcome = "hierarchical_results", outcome.String()
	}
	data.TreeResults = results.Count(tree)

	id := p.settings.FieldDefinitionID
	first := results.FindFirst(tree, id)
	all := results.FindAll(tree, id)
	data.Matches = results.Values(all)
	if first != nil {
		log.Info().
			Int("field_definition_id", id).
			Str("value", first.StringValue()).
			Int("matches", len(all)).
			Msg("Field found")
	} else {
		log.Debug().Int("field_definition_id", id).Msg("Field not found")
	}

	// UpdateStatus sets the target status on doc before submitting it.
	previous := doc.Status
	if !p.docs.UpdateStatus(ctx, doc, p.settings.TargetStatus, p.settings.Comment) {
		log.Warn().Stringer("status", previous).Msg("Status update failed")
		data.Stage, data.Outcome, data.Failed = "update_status", domain.OutcomeFailed.String(), true
		data.Status = previous.String()
		timer.StopWithFields(map[string]interface{}{"success": false})
		p.emit(data)
		return false
	}

	data.Status = doc.Status.String()
	timer.StopWithFields(map[string]interface{}{"success": true})
	log.Info().Stringer("document", doc).Msg("Done processing document")
	p.emit(data)
	return true
}

func (p *Poller) emit(data events.EventData) {
	if p.events != nil {
		p.events.Emit(module, data)
	}
}

// Job adapts the poller to the cron scheduler.
func (p *Poller) Job(ctx context.Context) *Job {
	return &Job{poller: p, ctx: ctx}
}

// Job runs one poll cycle per scheduled tick
type Job struct {
	poller *Poller
	ctx    context.Context
}

// Name returns the job name
func (j *Job) Name() string {
	return "poll_documents"
}

// Run executes one cycle. An aborted cycle is reported as an error so the
// scheduler logs it.
func (j *Job) Run() error {
	if j.ctx.Err() != nil {
		return nil
	}
	if !j.poller.RunCycle(j.ctx) {
		return fmt.Errorf("poll cycle did not complete")
	}
	return nil
}
