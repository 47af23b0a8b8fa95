// Package updater keeps a DNS record at a provider pointing at a given address.
package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dynosaur/config"
)

// DefaultMark is written as the record comment where the provider supports one.
var DefaultMark = "managed by dynosaurd"

// SubjectRecord names the DNS record the daemon is responsible for.
// It is immutable once constructed.
type SubjectRecord struct {
	recordType string
	name       string
	ttl        time.Duration
}

// NewSubjectRecord describes a record. A zero ttl means "use the provider default".
func NewSubjectRecord(recordType, name string, ttl time.Duration) SubjectRecord {
	return SubjectRecord{recordType: recordType, name: name, ttl: ttl}
}

func (s SubjectRecord) Type() string { return s.recordType }

func (s SubjectRecord) Name() string { return s.name }

// TTL returns the configured TTL, or false if the provider default applies.
func (s SubjectRecord) TTL() (time.Duration, bool) {
	return s.ttl, s.ttl > 0
}

func (s SubjectRecord) String() string {
	return s.name + " " + s.recordType
}

// Record is a DNS record as seen by a provider. Handle identifies an existing record;
// a nil Handle means the record does not exist yet.
type Record struct {
	Handle  any
	Domain  string
	Type    string
	Address string
	TTL     time.Duration
	Mark    string
}

// Provider is the thin API wrapper the reconciliation runs against.
type Provider interface {
	// FindRecord lists every record matching r.Type and r.Domain.
	FindRecord(ctx context.Context, r Record) ([]Record, error)
	// WriteRecord creates r when r.Handle is nil and updates the addressed record otherwise.
	WriteRecord(ctx context.Context, r Record) (Record, error)
}

var Providers = map[string]func(ctx context.Context, updater config.Updater) (Provider, error){
	"cloudflare": newCloudflare,
	"rfc2136":    newRFC2136,
}

// ErrRecordRetrieval is wrapped by errors raised when the provider reports that a
// record query failed.
var ErrRecordRetrieval = errors.New("failed to retrieve DNS record information")

// AmbiguousRecordsError reports two or more records for one name and type. Such
// records are left for the operator to resolve.
type AmbiguousRecordsError struct {
	Name  string
	Type  string
	Count int
}

func (e *AmbiguousRecordsError) Error() string {
	return fmt.Sprintf("found %d DNS records for %s of %s type; there has to be zero or exactly one", e.Count, e.Name, e.Type)
}

// New builds the provider named by c.Type and wraps it in a Reconciler.
func New(ctx context.Context, c config.Updater) (*Reconciler, error) {
	create, ok := Providers[c.Type]
	if !ok {
		return nil, fmt.Errorf("unknown updater type %q", c.Type)
	}

	provider, err := create(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed loading provider: %w", err)
	}

	return NewReconciler(provider), nil
}
