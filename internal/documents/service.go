// Package documents is the facade over the AIForged API used by the poller.
// Every public operation authorizes first, never returns an error and never
// panics; failures are logged and reported as a domain.Outcome.
package documents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/docpoller/internal/clients/aiforged"
	"github.com/aristath/docpoller/internal/domain"
	"github.com/rs/zerolog"
)

// Remote is the subset of the AIForged client the facade calls.
type Remote interface {
	GetCurrentUser(ctx context.Context) (*aiforged.Response[*aiforged.User], error)
	GetDocumentsExtended(ctx context.Context, f aiforged.DocumentFilter) (*aiforged.Response[[]domain.Document], error)
	GetParameters(ctx context.Context, q aiforged.ParameterQuery) (*aiforged.Response[[]*domain.ResultNode], error)
	GetParameterHierarchy(ctx context.Context, q aiforged.HierarchyQuery) (*aiforged.Response[[]*domain.ResultNode], error)
	UpdateDocument(ctx context.Context, doc *domain.Document) (*aiforged.Response[*domain.Document], error)
}

// DocumentQuery filters ListDocuments. Nil fields are not filtered on.
type DocumentQuery struct {
	Start      *time.Time
	End        *time.Time
	Status     *domain.DocumentStatus
	Usage      domain.UsageType
	MasterID   *int
	DocumentID *int
}

// Service is the remote service facade.
type Service struct {
	remote    Remote
	projectID int
	serviceID int
	session   *Session
	now       func() time.Time
	log       zerolog.Logger
}

// NewService creates the facade for one project and service.
func NewService(remote Remote, projectID, serviceID int, log zerolog.Logger) *Service {
	return &Service{
		remote:    remote,
		projectID: projectID,
		serviceID: serviceID,
		session:   &Session{},
		now:       time.Now,
		log:       log.With().Str("component", "documents").Logger(),
	}
}

// Session returns the session owned by the facade.
func (s *Service) Session() *Session {
	return s.session
}

// Authorize checks that the configured credentials identify a user and
// records that user on the session.
func (s *Service) Authorize(ctx context.Context) (ok bool) {
	defer s.recoverPanic("authorize", func() { ok = false })

	resp, err := s.remote.GetCurrentUser(ctx)
	if err != nil {
		s.session.failed(s.now())
		s.log.Error().Err(err).Time("at", s.now()).Msg("Authorization failed")
		return false
	}
	if !success(resp.StatusCode) || resp.Result == nil {
		s.session.failed(s.now())
		s.log.Error().Int("status_code", resp.StatusCode).Time("at", s.now()).Msg("Authorization returned no user")
		return false
	}

	s.session.validated(resp.Result.ID, resp.Result.UserName, s.now())
	return true
}

// ListDocuments returns the documents of the configured project and service
// matching q, newest id first.
func (s *Service) ListDocuments(ctx context.Context, q DocumentQuery) (docs []domain.Document, outcome domain.Outcome) {
	defer s.recoverPanic("list documents", func() { docs, outcome = nil, domain.OutcomeFailed })

	if !s.Authorize(ctx) {
		return nil, domain.OutcomeFailed
	}

	filter := aiforged.DocumentFilter{
		UserID:        s.session.UserID(),
		ProjectID:     s.projectID,
		ServiceID:     s.serviceID,
		Usage:         &q.Usage,
		Start:         q.Start,
		End:           q.End,
		MasterID:      q.MasterID,
		DocumentID:    q.DocumentID,
		SortField:     aiforged.SortByID,
		SortDirection: aiforged.SortDescending,
	}
	if q.Status != nil {
		filter.Statuses = []domain.DocumentStatus{*q.Status}
	}

	resp, err := s.remote.GetDocumentsExtended(ctx, filter)
	if err != nil {
		return nil, s.classify("list documents", err)
	}
	if !success(resp.StatusCode) {
		return nil, s.unexpectedStatus("list documents", resp.StatusCode)
	}

	docs = resp.Result
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, domain.OutcomeOK
}

// GetFlatResults returns the field results of the latest output document
// derived from doc.
func (s *Service) GetFlatResults(ctx context.Context, doc *domain.Document) (nodes []*domain.ResultNode, outcome domain.Outcome) {
	defer s.recoverPanic("get flat results", func() { nodes, outcome = nil, domain.OutcomeFailed })

	if !s.Authorize(ctx) {
		return nil, domain.OutcomeFailed
	}
	childID, outcome := s.resolveOutput(ctx, doc)
	if !outcome.OK() {
		return nil, outcome
	}

	resp, err := s.remote.GetParameters(ctx, aiforged.ParameterQuery{
		DocumentID:          childID,
		ServiceID:           s.serviceID,
		Category:            domain.CategoryResults,
		IncludeVerification: true,
	})
	return s.results("get flat results", resp, err)
}

// GetHierarchicalResults returns the field result tree of the latest output
// document derived from doc.
func (s *Service) GetHierarchicalResults(ctx context.Context, doc *domain.Document) (nodes []*domain.ResultNode, outcome domain.Outcome) {
	defer s.recoverPanic("get hierarchical results", func() { nodes, outcome = nil, domain.OutcomeFailed })

	if !s.Authorize(ctx) {
		return nil, domain.OutcomeFailed
	}
	childID, outcome := s.resolveOutput(ctx, doc)
	if !outcome.OK() {
		return nil, outcome
	}

	resp, err := s.remote.GetParameterHierarchy(ctx, aiforged.HierarchyQuery{
		DocumentID:          childID,
		ServiceID:           s.serviceID,
		IncludeVerification: true,
	})
	return s.results("get hierarchical results", resp, err)
}

// UpdateStatus sets the document status, appends comment on a new line and
// writes the document back. doc is modified in place.
func (s *Service) UpdateStatus(ctx context.Context, doc *domain.Document, status domain.DocumentStatus, comment string) (ok bool) {
	defer s.recoverPanic("update status", func() { ok = false })

	if doc == nil {
		s.log.Error().Msg("Update status called without a document")
		return false
	}
	if !s.Authorize(ctx) {
		return false
	}

	doc.Status = status
	doc.Comment = doc.Comment + "\n" + comment

	resp, err := s.remote.UpdateDocument(ctx, doc)
	if err != nil {
		s.classify("update status", err, docField(doc.ID))
		return false
	}
	if !success(resp.StatusCode) {
		s.unexpectedStatus("update status", resp.StatusCode, docField(doc.ID))
		return false
	}
	return true
}

// resolveOutput finds the newest Outbox document whose master is doc.
// A nil id with OutcomeOK means no output document exists yet.
func (s *Service) resolveOutput(ctx context.Context, doc *domain.Document) (*int, domain.Outcome) {
	if doc == nil {
		s.log.Error().Msg("Result lookup called without a document")
		return nil, domain.OutcomeFailed
	}

	masterID := doc.ID
	children, outcome := s.ListDocuments(ctx, DocumentQuery{
		MasterID: &masterID,
		Usage:    domain.UsageOutbox,
	})
	if !outcome.OK() {
		return nil, outcome
	}
	if len(children) == 0 {
		s.log.Debug().Int("document_id", doc.ID).Msg("No output document yet")
		return nil, domain.OutcomeOK
	}

	id := children[0].ID
	return &id, domain.OutcomeOK
}

func (s *Service) results(op string, resp *aiforged.Response[[]*domain.ResultNode], err error) ([]*domain.ResultNode, domain.Outcome) {
	if err != nil {
		return nil, s.classify(op, err)
	}
	if !success(resp.StatusCode) {
		return nil, s.unexpectedStatus(op, resp.StatusCode)
	}
	if resp.Result == nil {
		return []*domain.ResultNode{}, domain.OutcomeOK
	}
	return resp.Result, domain.OutcomeOK
}

type logField func(*zerolog.Event) *zerolog.Event

func docField(id int) logField {
	return func(e *zerolog.Event) *zerolog.Event { return e.Int("document_id", id) }
}

// classify maps a remote error to an outcome. Not found is expected while
// documents are still being processed and is only logged at debug.
func (s *Service) classify(op string, err error, fields ...logField) domain.Outcome {
	var apiErr *aiforged.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusNotFound {
			withFields(s.log.Debug(), fields).Str("operation", op).Msg("Not found")
			return domain.OutcomeNotFound
		}
		withFields(s.log.Error(), fields).
			Err(err).
			Str("operation", op).
			Int("status_code", apiErr.StatusCode).
			Str("body", apiErr.Body).
			Time("at", s.now()).
			Msg("AIForged API error")
		return domain.OutcomeFailed
	}

	withFields(s.log.Error(), fields).
		Err(err).
		Str("operation", op).
		Time("at", s.now()).
		Msg("Unexpected error")
	return domain.OutcomeFailed
}

func (s *Service) unexpectedStatus(op string, code int, fields ...logField) domain.Outcome {
	if code == http.StatusNotFound {
		return s.classify(op, &aiforged.APIError{StatusCode: code}, fields...)
	}
	withFields(s.log.Error(), fields).
		Str("operation", op).
		Int("status_code", code).
		Time("at", s.now()).
		Msg("Unexpected status code")
	return domain.OutcomeFailed
}

func (s *Service) recoverPanic(op string, onPanic func()) {
	if r := recover(); r != nil {
		s.log.Error().
			Str("operation", op).
			Str("panic", fmt.Sprint(r)).
			Time("at", s.now()).
			Msg("Recovered from panic")
		onPanic()
	}
}

func withFields(e *zerolog.Event, fields []logField) *zerolog.Event {
	for _, f := range fields {
		e = f(e)
	}
	return e
}

func success(code int) bool {
	return code >= 200 && code < 300
}
