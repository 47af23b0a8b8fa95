package common

import (
	"encoding"
	"net/netip"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// WeakDecodeMap decodes a plugin's free-form config section into output.
// String values are routed through encoding.TextUnmarshaler when the target implements it.
func WeakDecodeMap(input, output any) error {
	config := &mapstructure.DecoderConfig{
		Metadata:    nil,
		Result:      output,
		ErrorUnused: true,
		DecodeHook: func(
			f reflect.Type,
			t reflect.Type,
			data interface{}) (interface{}, error) {
			if !reflect.PointerTo(t).Implements(textUnmarshalerType) {
				return data, nil
			}

			str, ok := data.(string)
			if !ok {
				return data, nil
			}

			v := reflect.New(t).Interface().(encoding.TextUnmarshaler)
			if err := v.UnmarshalText([]byte(str)); err != nil {
				return nil, err
			}

			return v, nil
		},
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

func DetectNormalizeAddr(addr string) (norm string, isIP bool) {
	if _, err := netip.ParseAddr(addr); err == nil {
		return addr, true
	}

	if len(addr) > 2 && addr[0] == '[' && addr[len(addr)-1] == ']' {
		addrStrip := addr[1 : len(addr)-1]
		if ip, err := netip.ParseAddr(addrStrip); err == nil {
			if ip.Is6() {
				return addrStrip, true
			}
		}
	}

	return addr, false
}

// SameAddress compares a provider-stored record content against ip after parsing,
// so that differently written forms of one IPv6 address compare equal.
func SameAddress(content string, ip netip.Addr) bool {
	stored, err := netip.ParseAddr(content)
	if err != nil {
		return content == ip.String()
	}

	return stored.Unmap() == ip.Unmap()
}

type IP struct {
	netip.Addr
}

func (i *IP) UnmarshalText(b []byte) error {
	ip, err := netip.ParseAddr(string(b))
	if err != nil {
		return err
	}

	i.Addr = ip
	return nil
}

type CIDR struct {
	netip.Prefix
}

func (c *CIDR) UnmarshalText(b []byte) error {
	p, err := netip.ParsePrefix(string(b))
	if err != nil {
		return err
	}

	c.Prefix = p.Masked()
	return nil
}
