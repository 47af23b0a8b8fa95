package updater

import (
	"context"
	"fmt"
	"net/netip"
	"strings"

	"dynosaur/common"
	"dynosaur/log"

	"go.uber.org/zap"
)

// Reconciler decides between create, update and no-op for a subject record.
type Reconciler struct {
	provider Provider
}

func NewReconciler(p Provider) *Reconciler {
	return &Reconciler{provider: p}
}

// Find returns the provider records matching subject.
func (r *Reconciler) Find(ctx context.Context, subject SubjectRecord) ([]Record, error) {
	return r.provider.FindRecord(ctx, Record{Domain: subject.Name(), Type: subject.Type()})
}

// checkFamily rejects an address that cannot be stored in an A or AAAA record.
// Other record types are passed through unchecked.
func checkFamily(ip netip.Addr, subject SubjectRecord) error {
	var want common.Family
	switch strings.ToUpper(subject.Type()) {
	case "A":
		want = common.IPv4
	case "AAAA":
		want = common.IPv6
	default:
		return nil
	}

	if got := common.FamilyOf(ip); got != want {
		return fmt.Errorf("%s address %s does not fit %s record", &got, ip, subject.Type())
	}
	return nil
}

// Update makes the provider's record for subject point at ip. It performs at most one
// read and at most one write.
func (r *Reconciler) Update(ctx context.Context, ip netip.Addr, subject SubjectRecord) error {
	ctx = log.WithAddress(log.WithRecord(ctx, subject.Type(), subject.Name()), ip)

	if err := checkFamily(ip, subject); err != nil {
		log.S(ctx).Errorw("refuse to write address", zap.Error(err))
		return err
	}

	records, err := r.Find(ctx, subject)
	if err != nil {
		log.S(ctx).Errorw("failed read record info", zap.Error(err))
		return err
	}

	desired := Record{
		Domain:  subject.Name(),
		Type:    subject.Type(),
		Address: ip.String(),
		Mark:    DefaultMark,
	}
	desired.TTL, _ = subject.TTL()

	switch len(records) {
	case 0:
		log.S(ctx).Infow("no record found, creating")

	case 1:
		existing := records[0]
		if common.SameAddress(existing.Address, ip) {
			log.S(ctx).Debugw("IP didn't change, skip update")
			return nil
		}

		log.S(ctx).Infow("updating record", "old_ip", existing.Address)
		desired.Handle = existing.Handle

	default:
		log.S(ctx).Errorw("inconsistent state: found multiple records", "count", len(records))
		return &AmbiguousRecordsError{Name: subject.Name(), Type: subject.Type(), Count: len(records)}
	}

	if _, err := r.provider.WriteRecord(ctx, desired); err != nil {
		return fmt.Errorf("failed update domain: %w", err)
	}

	return nil
}
