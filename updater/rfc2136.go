package updater

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/log"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

const defaultRFC2136TTL = 300 * time.Second

// rfc2136 updates records on an authoritative server with DNS UPDATE messages,
// optionally signed with TSIG.
type rfc2136 struct {
	config.UpdaterRFC2136Config

	client *dns.Client
}

func rrContent(rr dns.RR) string {
	switch v := rr.(type) {
	case *dns.A:
		return v.A.String()
	case *dns.AAAA:
		return v.AAAA.String()
	default:
		return strings.TrimSpace(strings.TrimPrefix(rr.String(), rr.Header().String()))
	}
}

func (d *rfc2136) sign(m *dns.Msg) {
	if d.TsigName != "" {
		m.SetTsig(d.TsigName, d.TsigAlgorithm, 300, time.Now().Unix())
	}
}

func (d *rfc2136) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	if d.Timeout > 0 {
		tCtx, cancel := context.WithTimeout(ctx, time.Duration(d.Timeout))
		defer cancel()
		ctx = tCtx
	}

	d.sign(m)
	in, _, err := d.client.ExchangeContext(ctx, m, d.Server)
	return in, err
}

func (d *rfc2136) FindRecord(ctx context.Context, r Record) ([]Record, error) {
	ctx = log.SWith(ctx,
		"type", "rfc2136",
		"action", "find",
		"ns_type", r.Type,
		"domain", r.Domain,
		"server", d.Server)

	qtype, ok := dns.StringToType[strings.ToUpper(r.Type)]
	if !ok {
		log.S(ctx).Errorw("unknown record type")
		return nil, fmt.Errorf("unknown record type %q", r.Type)
	}

	name := dns.Fqdn(r.Domain)
	m := new(dns.Msg)
	m.SetQuestion(name, qtype)
	m.RecursionDesired = false

	in, err := d.exchange(ctx, m)
	if err != nil {
		log.S(ctx).Errorw("failed query records", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRecordRetrieval, err)
	}

	if in.Rcode != dns.RcodeSuccess && in.Rcode != dns.RcodeNameError {
		log.S(ctx).Errorw("query refused", "rcode", dns.RcodeToString[in.Rcode])
		return nil, fmt.Errorf("%w: server answered %s", ErrRecordRetrieval, dns.RcodeToString[in.Rcode])
	}

	var records []Record
	for _, rr := range in.Answer {
		h := rr.Header()
		if h.Rrtype != qtype || !strings.EqualFold(h.Name, name) {
			continue
		}

		records = append(records, Record{
			Handle:  rr,
			Domain:  h.Name,
			Type:    dns.TypeToString[h.Rrtype],
			Address: rrContent(rr),
			TTL:     time.Duration(h.Ttl) * time.Second,
		})
	}

	log.S(ctx).Debugw("find records", "records", records)

	return records, nil
}

func (d *rfc2136) WriteRecord(ctx context.Context, r Record) (Record, error) {
	ctx = log.SWith(ctx,
		"type", "rfc2136",
		"action", "write",
		"ns_type", r.Type,
		"domain", r.Domain,
		"address", r.Address,
		"server", d.Server)

	ttl := r.TTL
	if ttl <= 0 {
		ttl = time.Duration(d.DefaultTTL)
	}

	rr, err := dns.NewRR(fmt.Sprintf("%s %d IN %s %s", dns.Fqdn(r.Domain), int(ttl/time.Second), strings.ToUpper(r.Type), r.Address))
	if err != nil {
		log.S(ctx).Errorw("failed building record", zap.Error(err))
		return Record{}, fmt.Errorf("failed building record: %w", err)
	}

	m := new(dns.Msg)
	m.SetUpdate(d.Zone)

	if r.Handle != nil {
		old, ok := r.Handle.(dns.RR)
		if !ok {
			log.S(ctx).Errorw("foreign record handle", log.Internal)
			return Record{}, errors.New("internal error: foreign record handle")
		}

		log.S(ctx).Debugw("updating record", "old", rrContent(old))
		m.Remove([]dns.RR{dns.Copy(old)})
	} else {
		log.S(ctx).Debugw("creating record")
	}
	m.Insert([]dns.RR{rr})

	in, err := d.exchange(ctx, m)
	if err != nil {
		log.S(ctx).Warnw("failed send update", zap.Error(err))
		return Record{}, fmt.Errorf("failed send update: %w", err)
	}

	if in.Rcode != dns.RcodeSuccess {
		log.S(ctx).Warnw("update refused", "rcode", dns.RcodeToString[in.Rcode])
		return Record{}, fmt.Errorf("rfc2136 update refused: %s", dns.RcodeToString[in.Rcode])
	}

	return Record{
		Handle:  rr,
		Domain:  rr.Header().Name,
		Type:    dns.TypeToString[rr.Header().Rrtype],
		Address: rrContent(rr),
		TTL:     ttl,
	}, nil
}

func newRFC2136(ctx context.Context, c config.Updater) (Provider, error) {
	ctx = log.SWith(ctx, "type", "rfc2136")

	d := &rfc2136{}
	if err := common.WeakDecodeMap(c.Config, &d.UpdaterRFC2136Config); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if d.Server == "" || d.Zone == "" {
		log.S(ctx).Errorw("bad config: server and zone are required")
		return nil, errors.New("bad config: server and zone are required")
	}

	if _, _, err := net.SplitHostPort(d.Server); err != nil {
		d.Server = net.JoinHostPort(strings.Trim(d.Server, "[]"), "53")
	}
	d.Zone = dns.Fqdn(d.Zone)

	if d.Net == "" {
		d.Net = "udp"
	}

	if d.DefaultTTL == 0 {
		d.DefaultTTL = common.Duration(defaultRFC2136TTL)
	}

	d.client = &dns.Client{Net: d.Net}

	if d.TsigName != "" {
		if d.TsigSecret == "" {
			log.S(ctx).Errorw("bad config: tsig_secret is required with tsig_name")
			return nil, errors.New("bad config: tsig_secret is required with tsig_name")
		}
		if d.TsigAlgorithm == "" {
			d.TsigAlgorithm = dns.HmacSHA256
		}
		d.TsigName = dns.Fqdn(d.TsigName)
		d.TsigAlgorithm = dns.Fqdn(d.TsigAlgorithm)
		d.client.TsigSecret = map[string]string{d.TsigName: d.TsigSecret}
	}

	return d, nil
}
