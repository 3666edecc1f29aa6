// Package domain holds the document and result models shared by the remote
// client, the document facade and the poller.
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DocumentStatus is the processing state the remote service tracks for a document.
// Values are sent over the wire as integers.
type DocumentStatus int

const (
	StatusReceived           DocumentStatus = 0
	StatusInterim            DocumentStatus = 1
	StatusProcessing         DocumentStatus = 2
	StatusVerification       DocumentStatus = 3
	StatusProcessed          DocumentStatus = 4
	StatusError              DocumentStatus = 5
	StatusDeleted            DocumentStatus = 6
	StatusArchived           DocumentStatus = 7
	StatusCustomProcessing   DocumentStatus = 10
	StatusCustomVerification DocumentStatus = 11
	StatusCustomVerified     DocumentStatus = 12
	StatusCustomProcessed    DocumentStatus = 13
	StatusCustomError        DocumentStatus = 14
)

var statusNames = map[DocumentStatus]string{
	StatusReceived:           "Received",
	StatusInterim:            "Interim",
	StatusProcessing:         "Processing",
	StatusVerification:       "Verification",
	StatusProcessed:          "Processed",
	StatusError:              "Error",
	StatusDeleted:            "Deleted",
	StatusArchived:           "Archived",
	StatusCustomProcessing:   "CustomProcessing",
	StatusCustomVerification: "CustomVerification",
	StatusCustomVerified:     "CustomVerified",
	StatusCustomProcessed:    "CustomProcessed",
	StatusCustomError:        "CustomError",
}

// String returns the status name, or the numeric value for unknown statuses.
func (s DocumentStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("DocumentStatus(%d)", int(s))
}

// ParseDocumentStatus resolves a status by name (case-insensitive).
func ParseDocumentStatus(name string) (DocumentStatus, error) {
	for status, n := range statusNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return status, nil
		}
	}
	return 0, fmt.Errorf("unknown document status %q (known: %s)", name, strings.Join(StatusNames(), ", "))
}

// StatusNames lists every known status name in sorted order.
func StatusNames() []string {
	names := make([]string, 0, len(statusNames))
	for _, n := range statusNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// UsageType classifies a document as an input to processing or a derived output.
type UsageType int

const (
	UsageInbox      UsageType = 0
	UsageOutbox     UsageType = 1
	UsageTraining   UsageType = 2
	UsageDefinition UsageType = 3
)

// String returns the usage name
func (u UsageType) String() string {
	switch u {
	case UsageInbox:
		return "Inbox"
	case UsageOutbox:
		return "Outbox"
	case UsageTraining:
		return "Training"
	case UsageDefinition:
		return "Definition"
	default:
		return fmt.Sprintf("UsageType(%d)", int(u))
	}
}

// Document is a transient copy of a remote document, valid for one poll cycle.
type Document struct {
	ID        int            `json:"id"`
	Status    DocumentStatus `json:"status"`
	Usage     UsageType      `json:"usage"`
	MasterID  *int           `json:"masterId,omitempty"`
	Comment   string         `json:"comment"`
	Filename  string         `json:"filename,omitempty"`
	ProjectID int            `json:"projectId,omitempty"`
	ServiceID int            `json:"stpdId,omitempty"`
	Created   Timestamp      `json:"dtc,omitzero"`
	Updated   Timestamp      `json:"dtm,omitzero"`

	// Raw holds the document exactly as the remote returned it so that an
	// update can send back fields this model does not know about.
	Raw json.RawMessage `json:"-"`
}

// String is used when a document is logged as a whole.
func (d Document) String() string {
	return fmt.Sprintf("Document{id=%d status=%s usage=%s file=%q}", d.ID, d.Status, d.Usage, d.Filename)
}
