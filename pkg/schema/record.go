// Package schema defines the data structures shared by the ledger, its transports and its clients.
package schema

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Status is the lifecycle position of a project record.
type Status uint8

const (
	Upcoming Status = iota
	Ongoing
	Cancelled
	Completed
)

var statusNames = [...]string{
	Upcoming:  "Upcoming",
	Ongoing:   "Ongoing",
	Cancelled: "Cancelled",
	Completed: "Completed",
}

// AllStatuses lists every status in declaration order.
func AllStatuses() []Status {
	return []Status{Upcoming, Ongoing, Cancelled, Completed}
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	return int(s) < len(statusNames)
}

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return statusNames[s]
}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(name string) (Status, error) {
	name = strings.TrimSpace(name)
	for i, n := range statusNames {
		if strings.EqualFold(n, name) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Record is one tracked community project.
// ProposalURI and ReportURI are opaque references into external content storage.
type Record struct {
	ID          uint64 `json:"id" yaml:"id"`
	Status      Status `json:"status" yaml:"status"`
	ProposalURI string `json:"proposal_uri" yaml:"proposal_uri"`
	ReportURI   string `json:"report_uri,omitempty" yaml:"report_uri,omitempty"`
}

// Page is a newest-first slice of the ledger as index-aligned parallel arrays.
type Page struct {
	IDs          []uint64 `json:"ids" yaml:"ids"`
	Statuses     []Status `json:"statuses" yaml:"statuses"`
	ProposalURIs []string `json:"proposal_uris" yaml:"proposal_uris"`
	ReportURIs   []string `json:"report_uris" yaml:"report_uris"`
}

// Len returns the number of entries in the page.
func (p Page) Len() int {
	return len(p.IDs)
}

// Records zips the parallel arrays back into records.
func (p Page) Records() []Record {
	return lo.Map(p.IDs, func(id uint64, i int) Record {
		return Record{
			ID:          id,
			Status:      p.Statuses[i],
			ProposalURI: p.ProposalURIs[i],
			ReportURI:   p.ReportURIs[i],
		}
	})
}
