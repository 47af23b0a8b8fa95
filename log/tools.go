package log

import (
	"net/netip"
	"unicode/utf8"

	"go.uber.org/zap"
)

func ByteField(key string, data []byte) zap.Field {
	if utf8.Valid(data) {
		return zap.ByteString(key, data)
	} else {
		return zap.Binary(key, data)
	}
}

func IP(ip netip.Addr) zap.Field {
	return zap.Stringer("ip", ip)
}

func Stage(stage string) zap.Field {
	return zap.String("stage", stage)
}

// Record tags a log line with the DNS record it concerns.
func Record(recordType, name string) []any {
	return []any{"ns_type", recordType, "domain", name}
}
