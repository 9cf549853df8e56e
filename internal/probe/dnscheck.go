package probe

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"time"
)

// DNS classes reported by Diagnose.
const (
	DNSResolves    = "RESOLVES"
	DNSNXDomain    = "NXDOMAIN"
	DNSNoARecord   = "NO_A_RECORD"
	DNSUnavailable = "SERVFAIL_or_TIMEOUT"
	DNSIPLiteral   = "IP_LITERAL"
	DNSInvalidName = "INVALID_NAME"
)

var dnsTimeout = 3 * time.Second

// DNSDiagnoser classifies why a failed probe's host may be unreachable.
type DNSDiagnoser struct {
	Resolver *net.Resolver
}

func NewDNSDiagnoser() *DNSDiagnoser {
	return &DNSDiagnoser{Resolver: net.DefaultResolver}
}

// Diagnose returns the DNS class for the host of rawURL.
func (d *DNSDiagnoser) Diagnose(ctx context.Context, rawURL string) string {
	host := hostOf(rawURL)
	if host == "" || strings.Contains(host, "://") {
		return DNSInvalidName
	}
	if net.ParseIP(host) != nil {
		return DNSIPLiteral
	}

	ctx, cancel := context.WithTimeout(ctx, dnsTimeout)
	defer cancel()

	ips, err := d.Resolver.LookupIPAddr(ctx, host)
	if err == nil && len(ips) > 0 {
		return DNSResolves
	}

	var de *net.DNSError
	if err != nil && errors.As(err, &de) && !de.IsNotFound {
		return DNSUnavailable
	}
	// The name has no address; NS records mean the zone exists.
	if ns, nsErr := d.Resolver.LookupNS(ctx, host); nsErr == nil && len(ns) > 0 {
		return DNSNoARecord
	}
	return DNSNXDomain
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(raw)
	}
	return u.Hostname()
}
