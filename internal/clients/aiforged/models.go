package aiforged

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aristath/docpoller/internal/domain"
)

// Response is the envelope every successful call returns.
type Response[T any] struct {
	StatusCode int
	Result     T
}

// APIError is returned for any non-2xx reply.
type APIError struct {
	StatusCode int
	Status     string
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("AIForged API %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Status)
}

// User is the identity behind the current credentials.
type User struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
	Email    string `json:"email,omitempty"`
}

// SortDirection orders list results
type SortDirection string

const (
	SortAscending  SortDirection = "Ascending"
	SortDescending SortDirection = "Descending"
)

// SortField names the field list results are ordered by
type SortField string

const (
	SortByID      SortField = "Id"
	SortByCreated SortField = "DTC"
)

// DocumentFilter holds the query parameters of GetExtended.
// Nil pointers are left out of the query.
type DocumentFilter struct {
	UserID        string
	ProjectID     int
	ServiceID     int
	Usage         *domain.UsageType
	Statuses      []domain.DocumentStatus
	Start         *time.Time
	End           *time.Time
	MasterID      *int
	DocumentID    *int
	SortField     SortField
	SortDirection SortDirection
}

// ParameterQuery selects the field results of one document.
// A nil DocumentID is sent without a docId parameter.
type ParameterQuery struct {
	DocumentID          *int
	ServiceID           int
	Category            domain.ParameterCategory
	IncludeVerification bool
}

// HierarchyQuery selects the field result hierarchy of one document.
type HierarchyQuery struct {
	DocumentID          *int
	ServiceID           int
	IncludeVerification bool
	PageIndex           *int
}

// decodeDocuments keeps each document's raw JSON next to the decoded fields.
func decodeDocuments(data []byte) ([]domain.Document, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}

	docs := make([]domain.Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := decodeDocument(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func decodeDocument(raw []byte) (domain.Document, error) {
	var doc domain.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Document{}, fmt.Errorf("failed to decode document: %w", err)
	}
	doc.Raw = append(json.RawMessage(nil), raw...)
	return doc, nil
}

// encodeDocument overlays the known fields onto the document's raw JSON so
// that fields this client does not model survive an update.
func encodeDocument(doc *domain.Document) ([]byte, error) {
	known, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	if len(doc.Raw) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage)
	if err := json.Unmarshal(doc.Raw, &merged); err != nil {
		return nil, fmt.Errorf("failed to read original document: %w", err)
	}
	var overlay map[string]json.RawMessage
	if err := json.Unmarshal(known, &overlay); err != nil {
		return nil, fmt.Errorf("failed to read document fields: %w", err)
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return json.Marshal(merged)
}
