package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/docpoller/internal/config"
	"github.com/aristath/docpoller/internal/documents"
	"github.com/aristath/docpoller/internal/domain"
	"github.com/aristath/docpoller/internal/events"
)

type fakeDocs struct {
	mu sync.Mutex

	docs        []domain.Document
	listOutcome domain.Outcome
	flatOutcome domain.Outcome
	updateFails map[int]bool
	tree        []*domain.ResultNode
	trees       map[int][]*domain.ResultNode
	block       chan struct{}
	panicOnList bool
	cancelAfter func()

	queries []documents.DocumentQuery
	flat    []int
	hier    []int
	updates []update
}

type update struct {
	id      int
	status  domain.DocumentStatus
	comment string
}

func (f *fakeDocs) ListDocuments(ctx context.Context, q documents.DocumentQuery) ([]domain.Document, domain.Outcome) {
	if f.block != nil {
		<-f.block
	}
	if f.panicOnList {
		panic("list exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if !f.listOutcome.OK() {
		return nil, f.listOutcome
	}
	out := make([]domain.Document, len(f.docs))
	copy(out, f.docs)
	return out, domain.OutcomeOK
}

func (f *fakeDocs) GetFlatResults(ctx context.Context, doc *domain.Document) ([]*domain.ResultNode, domain.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flat = append(f.flat, doc.ID)
	if !f.flatOutcome.OK() {
		return nil, f.flatOutcome
	}
	return []*domain.ResultNode{{ID: 1}}, domain.OutcomeOK
}

func (f *fakeDocs) GetHierarchicalResults(ctx context.Context, doc *domain.Document) ([]*domain.ResultNode, domain.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hier = append(f.hier, doc.ID)
	if tree, ok := f.trees[doc.ID]; ok {
		return tree, domain.OutcomeOK
	}
	return f.tree, domain.OutcomeOK
}

func (f *fakeDocs) UpdateStatus(ctx context.Context, doc *domain.Document, status domain.DocumentStatus, comment string) bool {
	f.mu.Lock()
	f.updates = append(f.updates, update{id: doc.ID, status: status, comment: comment})
	cancel := f.cancelAfter
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	doc.Status = status
	return !f.updateFails[doc.ID]
}

func (f *fakeDocs) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type recorder struct {
	mu        sync.Mutex
	events    []events.EventType
	documents []*events.DocumentData
}

func (r *recorder) Emit(module string, data events.EventData) events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data.EventType())
	if d, ok := data.(*events.DocumentData); ok {
		r.documents = append(r.documents, d)
	}
	return events.Event{Type: data.EventType(), Module: module, Data: data}
}

func (r *recorder) documentEvents() []*events.DocumentData {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*events.DocumentData(nil), r.documents...)
}

func (r *recorder) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.EventType(nil), r.events...)
}

func testSettings() Settings {
	return Settings{
		Lookback:          24 * time.Hour,
		Interval:          time.Hour,
		SourceStatus:      domain.StatusCustomVerified,
		TargetStatus:      domain.StatusCustomProcessed,
		Comment:           config.DefaultComment,
		FieldDefinitionID: config.DefaultFieldDefinitionID,
	}
}

func TestSettingsFromConfig(t *testing.T) {
	cfg := config.Default()
	s := SettingsFromConfig(cfg)
	assert.Equal(t, cfg.Lookback, s.Lookback)
	assert.Equal(t, cfg.Interval, s.Interval)
	assert.Equal(t, domain.StatusCustomVerified, s.SourceStatus)
	assert.Equal(t, domain.StatusCustomProcessed, s.TargetStatus)
	assert.Equal(t, 212751, s.FieldDefinitionID)
}

func strPtr(s string) *string { return &s }

func TestRunCycle_ProcessesEveryDocument(t *testing.T) {
	// Document 2 holds the field on the top level. Document 1 holds it three
	// levels down under the second top-level node, and once more beneath it.
	docs := &fakeDocs{
		docs: []domain.Document{{ID: 2}, {ID: 1}},
		trees: map[int][]*domain.ResultNode{
			2: {
				{ID: 20, ParamDefID: 1, Value: strPtr("invoice")},
				{ID: 21, ParamDefID: 212751, Value: strPtr("R 100.00")},
			},
			1: {
				{ID: 10, ParamDefID: 1, Value: strPtr("invoice")},
				{ID: 11, ParamDefID: 2, Children: []*domain.ResultNode{
					{ID: 12, ParamDefID: 3, Children: []*domain.ResultNode{
						{ID: 13, ParamDefID: 212751, Value: strPtr("R 250.00"), Children: []*domain.ResultNode{
							{ID: 14, ParamDefID: 212751, Value: strPtr("R 50.00")},
						}},
					}},
				}},
			},
		},
	}
	rec := &recorder{}
	p := New(docs, testSettings(), rec, zerolog.Nop())
	fixed := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	require.True(t, p.RunCycle(context.Background()))

	require.Len(t, docs.queries, 1)
	q := docs.queries[0]
	assert.Equal(t, fixed, *q.End)
	assert.Equal(t, fixed.Add(-24*time.Hour), *q.Start)
	assert.Equal(t, domain.StatusCustomVerified, *q.Status)
	assert.Equal(t, domain.UsageInbox, q.Usage)

	assert.Equal(t, []int{2, 1}, docs.flat)
	assert.Equal(t, []int{2, 1}, docs.hier)
	require.Len(t, docs.updates, 2)
	for _, u := range docs.updates {
		assert.Equal(t, domain.StatusCustomProcessed, u.status)
		assert.Equal(t, "Hello from Skills Sharing Session 1", u.comment)
	}

	snap := p.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, uint64(1), snap.Cycles)
	require.NotNil(t, snap.LastCycle)
	assert.Equal(t, 2, snap.LastCycle.Listed)
	assert.Equal(t, 2, snap.LastCycle.Processed)
	assert.Zero(t, snap.LastCycle.Failed)
	assert.True(t, snap.LastCycle.Success)
	assert.NotEmpty(t, snap.LastCycle.ID)

	assert.Equal(t, []events.EventType{
		events.PollCycleStarted,
		events.DocumentProcessed,
		events.DocumentProcessed,
		events.PollCycleCompleted,
	}, rec.types())

	processed := rec.documentEvents()
	require.Len(t, processed, 2)
	assert.Equal(t, 2, processed[0].DocumentID)
	assert.Equal(t, []string{"R 100.00"}, processed[0].Matches)
	assert.Equal(t, 2, processed[0].TreeResults)
	assert.Equal(t, 1, processed[1].DocumentID)
	assert.Equal(t, []string{"R 250.00", "R 50.00"}, processed[1].Matches)
	assert.Equal(t, 5, processed[1].TreeResults)
	for _, d := range processed {
		assert.Equal(t, domain.StatusCustomProcessed.String(), d.Status)
	}
}

func TestRunCycle_FailedUpdateReportsPreviousStatus(t *testing.T) {
	docs := &fakeDocs{
		docs:        []domain.Document{{ID: 7, Status: domain.StatusCustomVerified}},
		updateFails: map[int]bool{7: true},
	}
	rec := &recorder{}
	p := New(docs, testSettings(), rec, zerolog.Nop())

	assert.True(t, p.RunCycle(context.Background()))

	failed := rec.documentEvents()
	require.Len(t, failed, 1)
	assert.Equal(t, events.DocumentFailed, failed[0].EventType())
	assert.Equal(t, "update_status", failed[0].Stage)
	assert.Equal(t, domain.StatusCustomVerified.String(), failed[0].Status)
}

func TestRunCycle_ListFailureAborts(t *testing.T) {
	docs := &fakeDocs{listOutcome: domain.OutcomeFailed, docs: []domain.Document{{ID: 1}}}
	rec := &recorder{}
	p := New(docs, testSettings(), rec, zerolog.Nop())

	assert.False(t, p.RunCycle(context.Background()))
	assert.Empty(t, docs.flat)
	assert.Zero(t, docs.updateCount())
	assert.Equal(t, []events.EventType{events.PollCycleStarted, events.PollCycleFailed}, rec.types())
	assert.False(t, p.Snapshot().LastCycle.Success)
}

func TestRunCycle_EmptyList(t *testing.T) {
	docs := &fakeDocs{}
	p := New(docs, testSettings(), nil, zerolog.Nop())

	assert.True(t, p.RunCycle(context.Background()))
	assert.Zero(t, docs.updateCount())
}

func TestRunCycle_DocumentFailureDoesNotAbortBatch(t *testing.T) {
	docs := &fakeDocs{
		docs:        []domain.Document{{ID: 3}, {ID: 2}, {ID: 1}},
		updateFails: map[int]bool{2: true},
	}
	rec := &recorder{}
	p := New(docs, testSettings(), rec, zerolog.Nop())

	assert.True(t, p.RunCycle(context.Background()))
	assert.Equal(t, 3, docs.updateCount())

	last := p.Snapshot().LastCycle
	assert.Equal(t, 2, last.Processed)
	assert.Equal(t, 1, last.Failed)
	assert.Contains(t, rec.types(), events.DocumentFailed)
}

func TestRunCycle_ResultFailureStillUpdates(t *testing.T) {
	docs := &fakeDocs{
		docs:        []domain.Document{{ID: 1}},
		flatOutcome: domain.OutcomeNotFound,
	}
	p := New(docs, testSettings(), nil, zerolog.Nop())

	assert.True(t, p.RunCycle(context.Background()))
	assert.Equal(t, 1, docs.updateCount())
	assert.Equal(t, 1, p.Snapshot().LastCycle.Processed)
}

func TestRunCycle_RecoversPanic(t *testing.T) {
	docs := &fakeDocs{panicOnList: true}
	rec := &recorder{}
	p := New(docs, testSettings(), rec, zerolog.Nop())

	assert.NotPanics(t, func() {
		assert.False(t, p.RunCycle(context.Background()))
	})
	assert.Equal(t, StateIdle, p.Snapshot().State)
	assert.Contains(t, rec.types(), events.PollCycleFailed)
}

func TestRunCycle_CancelStopsBetweenDocuments(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := &fakeDocs{
		docs:        []domain.Document{{ID: 3}, {ID: 2}, {ID: 1}},
		cancelAfter: cancel,
	}
	p := New(docs, testSettings(), nil, zerolog.Nop())

	assert.True(t, p.RunCycle(ctx))
	assert.Equal(t, 1, docs.updateCount())
}

func TestRunCycle_NoOverlap(t *testing.T) {
	docs := &fakeDocs{block: make(chan struct{})}
	p := New(docs, testSettings(), nil, zerolog.Nop())

	done := make(chan bool)
	go func() { done <- p.RunCycle(context.Background()) }()

	require.Eventually(t, func() bool {
		return p.Snapshot().State == StateRunning
	}, time.Second, 5*time.Millisecond)

	assert.False(t, p.RunCycle(context.Background()))
	assert.Equal(t, uint64(1), p.Snapshot().Skipped)

	close(docs.block)
	assert.True(t, <-done)
	assert.Equal(t, uint64(1), p.Snapshot().Cycles)
}

func TestRunCycle_RefusedWhenStopped(t *testing.T) {
	docs := &fakeDocs{}
	p := New(docs, testSettings(), nil, zerolog.Nop())
	p.Stop()

	assert.False(t, p.RunCycle(context.Background()))
	assert.Empty(t, docs.queries)
	assert.Equal(t, StateStopped, p.Snapshot().State)
}

func TestRun_StopsOnCancel(t *testing.T) {
	docs := &fakeDocs{docs: []domain.Document{{ID: 1}, {ID: 2}}}
	p := New(docs, testSettings(), nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error)
	go func() { errCh <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return docs.updateCount() == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateStopped, p.Snapshot().State)
	assert.Equal(t, 2, docs.updateCount())
}

func TestRun_TriggerStartsCycle(t *testing.T) {
	docs := &fakeDocs{docs: []domain.Document{{ID: 1}}}
	p := New(docs, testSettings(), nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	require.Eventually(t, func() bool { return docs.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Trigger())
	require.Eventually(t, func() bool { return docs.updateCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestTrigger_NonBlocking(t *testing.T) {
	p := New(&fakeDocs{}, testSettings(), nil, zerolog.Nop())
	assert.True(t, p.Trigger())
	assert.False(t, p.Trigger())
}

func TestJob(t *testing.T) {
	docs := &fakeDocs{docs: []domain.Document{{ID: 1}}}
	p := New(docs, testSettings(), nil, zerolog.Nop())
	job := p.Job(context.Background())

	assert.Equal(t, "poll_documents", job.Name())
	assert.NoError(t, job.Run())
	assert.Equal(t, 1, docs.updateCount())

	docs.listOutcome = domain.OutcomeFailed
	assert.Error(t, job.Run())
}

func TestJob_CancelledContext(t *testing.T) {
	docs := &fakeDocs{}
	p := New(docs, testSettings(), nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, p.Job(ctx).Run())
	assert.Empty(t, docs.queries)
}
