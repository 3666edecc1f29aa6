package aiforged

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/aristath/docpoller/internal/domain"
)

const (
	pathCurrentUser        = "/api/Account/GetCurrentUser"
	pathDocumentsExtended  = "/api/Document/GetExtended"
	pathParameters         = "/api/Parameters/Get"
	pathParameterHierarchy = "/api/Parameters/GetHierarchy"
	pathDocumentUpdate     = "/api/Document/Update"
)

// GetCurrentUser returns the identity behind the configured credentials.
func (c *Client) GetCurrentUser(ctx context.Context) (*Response[*User], error) {
	var user User
	code, err := c.do(ctx, http.MethodGet, pathCurrentUser, nil, nil, decodeInto(&user))
	if err != nil {
		return nil, err
	}
	return &Response[*User]{StatusCode: code, Result: &user}, nil
}

// GetDocumentsExtended lists documents matching the filter.
func (c *Client) GetDocumentsExtended(ctx context.Context, f DocumentFilter) (*Response[[]domain.Document], error) {
	q := url.Values{}
	if f.UserID != "" {
		q.Set("userId", f.UserID)
	}
	q.Set("projectId", strconv.Itoa(f.ProjectID))
	q.Set("stpdId", strconv.Itoa(f.ServiceID))
	if f.Usage != nil {
		q.Set("usage", strconv.Itoa(int(*f.Usage)))
	}
	for _, s := range f.Statuses {
		q.Add("statuses", strconv.Itoa(int(s)))
	}
	if f.Start != nil {
		q.Set("start", f.Start.UTC().Format(time.RFC3339))
	}
	if f.End != nil {
		q.Set("end", f.End.UTC().Format(time.RFC3339))
	}
	if f.MasterID != nil {
		q.Set("masterId", strconv.Itoa(*f.MasterID))
	}
	if f.DocumentID != nil {
		q.Set("docId", strconv.Itoa(*f.DocumentID))
	}
	if f.SortField != "" {
		q.Set("sortField", string(f.SortField))
	}
	if f.SortDirection != "" {
		q.Set("sortDirection", string(f.SortDirection))
	}

	var docs []domain.Document
	code, err := c.do(ctx, http.MethodGet, pathDocumentsExtended, q, nil, func(data []byte) error {
		var derr error
		docs, derr = decodeDocuments(data)
		return derr
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return &Response[[]domain.Document]{StatusCode: code, Result: docs}, nil
}

// GetParameters returns the flat field results of a document.
func (c *Client) GetParameters(ctx context.Context, pq ParameterQuery) (*Response[[]*domain.ResultNode], error) {
	q := url.Values{}
	if pq.DocumentID != nil {
		q.Set("docId", strconv.Itoa(*pq.DocumentID))
	}
	q.Set("stpdId", strconv.Itoa(pq.ServiceID))
	q.Set("category", strconv.Itoa(int(pq.Category)))
	if pq.IncludeVerification {
		q.Set("includeverification", "true")
	}
	return c.getResults(ctx, pathParameters, q)
}

// GetParameterHierarchy returns the field result tree of a document.
func (c *Client) GetParameterHierarchy(ctx context.Context, hq HierarchyQuery) (*Response[[]*domain.ResultNode], error) {
	q := url.Values{}
	if hq.DocumentID != nil {
		q.Set("docId", strconv.Itoa(*hq.DocumentID))
	}
	q.Set("stpdId", strconv.Itoa(hq.ServiceID))
	if hq.IncludeVerification {
		q.Set("includeverification", "true")
	}
	if hq.PageIndex != nil {
		q.Set("pageIndex", strconv.Itoa(*hq.PageIndex))
	}
	return c.getResults(ctx, pathParameterHierarchy, q)
}

func (c *Client) getResults(ctx context.Context, path string, q url.Values) (*Response[[]*domain.ResultNode], error) {
	var nodes []*domain.ResultNode
	code, err := c.do(ctx, http.MethodGet, path, q, nil, decodeInto(&nodes))
	if err != nil {
		return nil, err
	}
	if nodes == nil {
		nodes = []*domain.ResultNode{}
	}
	return &Response[[]*domain.ResultNode]{StatusCode: code, Result: nodes}, nil
}

// UpdateDocument writes the document back. Fields the client does not model
// are sent back unchanged.
func (c *Client) UpdateDocument(ctx context.Context, doc *domain.Document) (*Response[*domain.Document], error) {
	if doc == nil {
		return nil, fmt.Errorf("update document: nil document")
	}
	payload, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	var updated *domain.Document
	code, err := c.do(ctx, http.MethodPut, pathDocumentUpdate, nil, payload, func(data []byte) error {
		d, derr := decodeDocument(data)
		if derr != nil {
			return derr
		}
		updated = &d
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		updated = doc
	}
	return &Response[*domain.Document]{StatusCode: code, Result: updated}, nil
}
