package alerts

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// LookupIPFunc resolves a host name to its addresses.
type LookupIPFunc func(ctx context.Context, host string) ([]net.IP, error)

// DefaultLookupIP resolves with the system resolver.
func DefaultLookupIP(ctx context.Context, host string) ([]net.IP, error) {
	return net.DefaultResolver.LookupIP(ctx, "ip", host)
}

// ErrUnsafeDestination is returned for URLs that point at internal networks.
var ErrUnsafeDestination = errors.New("unsafe destination")

// ValidatePublicURL checks that raw is an https URL whose host is neither
// literally nor by resolution a loopback, private, link-local, multicast,
// unspecified, broadcast or mDNS address.
func ValidatePublicURL(ctx context.Context, raw string, lookup LookupIPFunc) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not https", ErrUnsafeDestination, u.Scheme)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrUnsafeDestination)
	}
	if host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local") {
		return fmt.Errorf("%w: host %q is local", ErrUnsafeDestination, host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isInternalIP(ip) {
			return fmt.Errorf("%w: address %s is internal", ErrUnsafeDestination, ip)
		}
		return nil
	}

	if lookup == nil {
		lookup = DefaultLookupIP
	}
	ips, err := lookup(ctx, host)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", host, err)
	}
	if len(ips) == 0 {
		return fmt.Errorf("resolve %q: no addresses", host)
	}
	for _, ip := range ips {
		if isInternalIP(ip) {
			return fmt.Errorf("%w: %q resolves to internal address %s", ErrUnsafeDestination, host, ip)
		}
	}
	return nil
}

func isInternalIP(ip net.IP) bool {
	return ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() ||
		ip.IsUnspecified() ||
		ip.Equal(net.IPv4bcast)
}
