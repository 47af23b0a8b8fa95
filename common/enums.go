package common

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

type Family int

const (
	IPv4 Family = iota
	IPv6
)

func (f *Family) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "4", "v4", "ipv4", "a":
		*f = IPv4
	case "6", "v6", "ipv6", "aaaa":
		*f = IPv6
	default:
		return errors.New("invalid IP family")
	}
	return nil
}

func (f *Family) String() string {
	if f == nil {
		return "*"
	}
	switch *f {
	case IPv4:
		return "IPv4"
	case IPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("unknown<%d>", int(*f))
	}
}

// Match reports whether ip belongs to the family. A nil family matches any address.
func (f *Family) Match(ip netip.Addr) bool {
	switch {
	case f == nil:
		return true
	case *f == IPv4:
		return ip.Is4() || ip.Is4In6()
	default:
		return ip.Is6() && !ip.Is4In6()
	}
}

// FamilyOf returns the family of ip, unmapping IPv4-in-IPv6 addresses.
func FamilyOf(ip netip.Addr) Family {
	if ip.Unmap().Is4() {
		return IPv4
	}
	return IPv6
}

type IPSelectMode int

const (
	SelectFirst IPSelectMode = iota
	SelectShortest
	SelectLast
)

func (m *IPSelectMode) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "first":
		*m = SelectFirst
	case "shortest":
		*m = SelectShortest
	case "last":
		*m = SelectLast
	default:
		return errors.New("invalid mode")
	}
	return nil
}

func (m IPSelectMode) String() string {
	switch m {
	case SelectFirst:
		return "first"
	case SelectShortest:
		return "shortest"
	case SelectLast:
		return "last"
	default:
		return fmt.Sprintf("unknown<%d>", int(m))
	}
}

type IPFilterFlag uint64

const (
	FlagNonGlobalUnicast IPFilterFlag = 1 << iota
	FlagPrivate
	FlagNoEUI64
)

func (f *IPFilterFlag) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "nonglobalunicast", "non-global-unicast", "allow-non-global-unicast":
		*f = FlagNonGlobalUnicast
	case "private", "allow-private":
		*f = FlagPrivate
	case "noeui64", "no-eui64", "excludeeui64", "exclude-eui64":
		*f = FlagNoEUI64
	default:
		return errors.New("invalid flag")
	}
	return nil
}

func (f IPFilterFlag) String() string {
	flags := ""
	if f.Match(FlagNonGlobalUnicast) {
		flags += ",allow-non-global-unicast"
	}
	if f.Match(FlagPrivate) {
		flags += ",allow-private"
	}
	if f.Match(FlagNoEUI64) {
		flags += ",no-eui64"
	}

	if flags == "" {
		return strconv.FormatUint(uint64(f), 16)
	} else {
		return fmt.Sprintf("%x(%s)", uint64(f), flags[1:])
	}
}

func (f IPFilterFlag) Match(l IPFilterFlag) bool {
	return (f & l) != 0
}
