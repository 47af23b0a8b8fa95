package updater

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dynosaur/common"
	"dynosaur/config"
	"dynosaur/log"

	cfapi "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"
)

// Cloudflare treats a TTL of 1 as "automatic".
const cloudflareAutoTTL = 1

type cloudflare struct {
	config.UpdaterCloudflareConfig

	zoneID string
}

type logger struct {
	ctx context.Context
}

type cloudflareHandle struct {
	ID     string
	ZoneID string
}

func (l *logger) Printf(format string, v ...interface{}) {
	log.S(l.ctx).Debugf(format, v...)
}

func (d *cloudflare) getAPI(ctx context.Context) (*cfapi.API, error) {
	opts := []cfapi.Option{
		cfapi.HTTPClient(common.HTTPClient(ctx)),
		cfapi.UsingLogger(&logger{ctx: ctx}),
	}
	if d.BaseURL != "" {
		opts = append(opts, cfapi.BaseURL(d.BaseURL))
	}

	api, err := cfapi.NewWithAPIToken(d.APIToken, opts...)
	if err != nil {
		log.S(ctx).Errorw("failed create cloudflare API", zap.Error(err))
		return nil, fmt.Errorf("failed create cloudflare API: %w", err)
	}

	return api, nil
}

func ttlSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return cloudflareAutoTTL
	}
	return int(ttl / time.Second)
}

func (d *cloudflare) FindRecord(ctx context.Context, r Record) (records []Record, err error) {
	ctx = log.SWith(ctx,
		"type", "cloudflare",
		"action", "find",
		"ns_type", r.Type,
		"domain", r.Domain)

	api, err := d.getAPI(ctx)
	if err != nil {
		return nil, err
	}

	params := cfapi.ListDNSRecordsParams{
		Type: r.Type,
		Name: r.Domain,
	}

	cfRecords, info, err := api.ListDNSRecords(ctx, cfapi.ZoneIdentifier(d.zoneID), params)
	if err != nil {
		log.S(ctx).Errorw("failed list records", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRecordRetrieval, err)
	}

	if info != nil && info.HasMorePages() {
		log.S(ctx).Warnw("partial result, ignore remaining", "count", len(cfRecords), "total", info.Count, "pages", info.TotalPages)
	}

	for _, record := range cfRecords {
		records = append(records, Record{
			Handle:  cloudflareHandle{record.ID, d.zoneID},
			Domain:  record.Name,
			Type:    record.Type,
			Address: record.Content,
			TTL:     time.Duration(record.TTL) * time.Second,
			Mark:    record.Comment,
		})
	}

	log.S(ctx).Debugw("find records", "records", records)

	return records, nil
}

func (d *cloudflare) WriteRecord(ctx context.Context, r Record) (Record, error) {
	pCtx := ctx
	ctx = log.SWith(ctx,
		"type", "cloudflare",
		"action", "write",
		"ns_type", r.Type,
		"domain", r.Domain,
		"address", r.Address,
		"handle", r.Handle)

	api, err := d.getAPI(ctx)
	if err != nil {
		return Record{}, err
	}

	mark := r.Mark
	if d.Comment != "" {
		mark = d.Comment
	}

	var cfRecord cfapi.DNSRecord
	zoneID := d.zoneID

	if r.Handle != nil {
		log.S(ctx).Debugw("updating record")
		handle, ok := r.Handle.(cloudflareHandle)
		if !ok {
			log.S(ctx).Errorw("foreign record handle", log.Internal)
			return Record{}, errors.New("internal error: foreign record handle")
		}

		params := cfapi.UpdateDNSRecordParams{
			Type:    r.Type,
			Name:    r.Domain,
			Content: r.Address,
			ID:      handle.ID,
			TTL:     ttlSeconds(r.TTL),
			Proxied: cfapi.BoolPtr(d.Proxied),
			Comment: &mark,
		}

		zoneID = handle.ZoneID
		cfRecord, err = api.UpdateDNSRecord(ctx, cfapi.ZoneIdentifier(handle.ZoneID), params)
		if err != nil {
			log.S(ctx).Warnw("failed update record", zap.Error(err))
			return Record{}, fmt.Errorf("failed update record: %w", err)
		}
	} else {
		log.S(ctx).Debugw("creating record")

		params := cfapi.CreateDNSRecordParams{
			Type:    r.Type,
			Name:    r.Domain,
			Content: r.Address,
			TTL:     ttlSeconds(r.TTL),
			Proxied: cfapi.BoolPtr(d.Proxied),
			Comment: mark,
		}

		cfRecord, err = api.CreateDNSRecord(ctx, cfapi.ZoneIdentifier(d.zoneID), params)
		if err != nil {
			log.S(ctx).Warnw("failed create record", zap.Error(err))
			return Record{}, fmt.Errorf("failed create record: %w", err)
		}
	}

	record := Record{
		Handle: cloudflareHandle{
			ID:     cfRecord.ID,
			ZoneID: zoneID,
		},
		Domain:  cfRecord.Name,
		Type:    cfRecord.Type,
		Address: cfRecord.Content,
		TTL:     time.Duration(cfRecord.TTL) * time.Second,
		Mark:    cfRecord.Comment,
	}

	log.S(pCtx).Debugw("record written", "record", record)

	return record, nil
}

func newCloudflare(ctx context.Context, c config.Updater) (_ Provider, err error) {
	ctx = log.SWith(ctx, "type", "cloudflare")

	d := &cloudflare{}
	if err := common.WeakDecodeMap(c.Config, &d.UpdaterCloudflareConfig); err != nil {
		log.S(ctx).Errorw("bad config", zap.Error(err))
		return nil, fmt.Errorf(`bad config: %w`, err)
	}

	if d.APIToken == "" {
		log.S(ctx).Errorw("bad config: api_token is required")
		return nil, errors.New("bad config: api_token is required")
	}

	d.zoneID = d.ZoneID
	if d.zoneID != "" {
		return d, nil
	}

	if d.ZoneName == "" {
		log.S(ctx).Errorw("bad config: one of zone_id or zone_name is required")
		return nil, errors.New("bad config: one of zone_id or zone_name is required")
	}

	api, err := d.getAPI(ctx)
	if err != nil {
		return nil, err
	}

	d.zoneID, err = api.ZoneIDByName(d.ZoneName)
	if err != nil {
		log.S(ctx).Errorw("failed get zone id", "zone", d.ZoneName, zap.Error(err))
		return nil, fmt.Errorf("failed get zone id: %w", err)
	}

	log.S(ctx).Debugw("resolved zone", "zone", d.ZoneName, "zone_id", d.zoneID)

	return d, nil
}
