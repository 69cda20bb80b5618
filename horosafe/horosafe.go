// Package horosafe holds the safety checks applied to URLs and bodies that
// come from clients: scheme validation, private address blocking (SSRF
// prevention) and bounded reads.
package horosafe

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
)

// ErrUnsafeScheme is returned when a URL does not start with http:// or https://.
var ErrUnsafeScheme = errors.New("horosafe: invalid URL scheme, must be http or https")

// ErrSSRF is returned when a URL targets a private or loopback address.
var ErrSSRF = errors.New("horosafe: URL targets a private or loopback address")

// ErrTooLarge is returned by LimitedReadAll when the reader holds more than
// the allowed number of bytes.
var ErrTooLarge = errors.New("horosafe: body too large")

var privateNets = mustCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"100.64.0.0/10",
	"169.254.0.0/16",
	"fc00::/7",
	"::1/128",
)

// CheckScheme enforces the literal http:// or https:// prefix. The check is
// case-sensitive on purpose: it is the same test the URL finder uses, so a
// URL accepted there is never rejected here.
func CheckScheme(rawURL string) error {
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		return nil
	}
	return ErrUnsafeScheme
}

// ValidatePublicURL checks the scheme, requires a host, and rejects hosts
// that are or resolve to private, loopback or link-local addresses.
func ValidatePublicURL(rawURL string) error {
	if err := CheckScheme(rawURL); err != nil {
		return err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("horosafe: invalid URL: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("horosafe: URL has no host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isPrivateIP(ip) {
			return ErrSSRF
		}
		return nil
	}

	addrs, err := net.LookupHost(host)
	if err != nil {
		// Unresolvable here means unresolvable for the fetch too; let the
		// connection attempt report it.
		return nil
	}
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && isPrivateIP(ip) {
			return ErrSSRF
		}
	}
	return nil
}

// LimitedReadAll reads at most maxBytes from r. A reader holding more
// returns an error wrapping ErrTooLarge.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBytes)
	}
	return data, nil
}

func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}
	if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return true
	}
	for _, n := range privateNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func mustCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(fmt.Sprintf("horosafe: bad CIDR %q: %v", c, err))
		}
		nets = append(nets, n)
	}
	return nets
}
