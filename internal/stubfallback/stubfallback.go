// Package stubfallback is the cgo-free default resolver backend: a
// github.com/miekg/dns.Client talking to the system's configured resolvers.
// It is grounded on the teacher's own cgo-free fallback,
// internal/backend/stub/stub.go, widened from a single-upstream address
// lookup into the full Exchanger surface asyncstub.Bridge expects.
package stubfallback

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/astracat-corp/aresdriver/internal/asyncstub"
	"github.com/astracat-corp/aresdriver/internal/stuberrors"
)

// Exchanger implements asyncstub.Exchanger using github.com/miekg/dns.
type Exchanger struct {
	client *dns.Client

	mu       sync.Mutex
	upstream string
}

// New builds an Exchanger against UPSTREAM_DNS when that variable is set,
// otherwise against the first server in the system resolv.conf, and
// otherwise against a public resolver.
func New() (*Exchanger, error) {
	e := &Exchanger{client: &dns.Client{Net: "udp"}}
	e.upstream = upstreamFromEnvironment()
	return e, nil
}

func upstreamFromEnvironment() string {
	if v := os.Getenv("UPSTREAM_DNS"); v != "" {
		return v
	}
	if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil && len(cfg.Servers) > 0 {
		return net.JoinHostPort(cfg.Servers[0], cfg.Port)
	}
	return "9.9.9.9:53"
}

// SetServer pins the upstream, matching spec.md §6.5: both TCP and UDP
// ports are considered set since this Exchanger always dials UDP first and
// falls back to TCP for truncated replies.
func (e *Exchanger) SetServer(host string, port uint16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.upstream = net.JoinHostPort(host, fmt.Sprintf("%d", port))
	return nil
}

func (e *Exchanger) server() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.upstream
}

func (e *Exchanger) exchange(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
	upstream := e.server()
	if deadline, ok := ctx.Deadline(); ok {
		e.client.Timeout = time.Until(deadline)
		if e.client.Timeout <= 0 {
			e.client.Timeout = 50 * time.Millisecond
		}
	}
	in, _, err := e.client.ExchangeContext(ctx, m, upstream)
	if err != nil {
		return nil, err
	}
	if in.Truncated {
		tcp := &dns.Client{Net: "tcp", Timeout: e.client.Timeout}
		if in2, _, err := tcp.ExchangeContext(ctx, m, upstream); err == nil {
			in = in2
		}
	}
	return in, nil
}

func (e *Exchanger) LookupHost(ctx context.Context, name string, family asyncstub.Family) asyncstub.HostResult {
	qtype := dns.TypeA
	if family == asyncstub.FamilyIPv6 {
		qtype = dns.TypeAAAA
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.SetEdns0(4096, false)

	in, err := e.exchange(ctx, m)
	if err != nil {
		return asyncstub.HostResult{Err: err}
	}
	if in.Rcode == dns.RcodeNameError {
		return asyncstub.HostResult{Err: fmt.Errorf("NXDOMAIN: %w", stuberrors.ErrNotFound)}
	}
	if in.Rcode != dns.RcodeSuccess {
		return asyncstub.HostResult{Err: fmt.Errorf("rcode %s", dns.RcodeToString[in.Rcode])}
	}

	var addrs []net.IP
	for _, rr := range in.Answer {
		switch v := rr.(type) {
		case *dns.A:
			addrs = append(addrs, v.A)
		case *dns.AAAA:
			addrs = append(addrs, v.AAAA)
		}
	}
	return asyncstub.HostResult{Addrs: addrs}
}

func (e *Exchanger) LookupSRV(ctx context.Context, name string) asyncstub.SRVResult {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)

	in, err := e.exchange(ctx, m)
	if err != nil {
		return asyncstub.SRVResult{Err: err}
	}
	if in.Rcode == dns.RcodeNameError {
		return asyncstub.SRVResult{Err: fmt.Errorf("NXDOMAIN: %w", stuberrors.ErrNotFound)}
	}
	if in.Rcode != dns.RcodeSuccess {
		return asyncstub.SRVResult{Err: fmt.Errorf("rcode %s", dns.RcodeToString[in.Rcode])}
	}

	var records []asyncstub.SRVRecord
	for _, rr := range in.Answer {
		if srv, ok := rr.(*dns.SRV); ok {
			records = append(records, asyncstub.SRVRecord{
				Host:     srv.Target,
				Port:     srv.Port,
				Priority: srv.Priority,
				Weight:   srv.Weight,
			})
		}
	}
	return asyncstub.SRVResult{Records: records}
}

func (e *Exchanger) LookupTXT(ctx context.Context, name string) asyncstub.TXTResult {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	in, err := e.exchange(ctx, m)
	if err != nil {
		return asyncstub.TXTResult{Err: err}
	}
	if in.Rcode == dns.RcodeNameError {
		return asyncstub.TXTResult{Err: fmt.Errorf("NXDOMAIN: %w", stuberrors.ErrNotFound)}
	}
	if in.Rcode != dns.RcodeSuccess {
		return asyncstub.TXTResult{Err: fmt.Errorf("rcode %s", dns.RcodeToString[in.Rcode])}
	}

	var records []asyncstub.TXTRecord
	for _, rr := range in.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for i, chunk := range txt.Txt {
			records = append(records, asyncstub.TXTRecord{Text: chunk, RecordStart: i == 0})
		}
	}
	return asyncstub.TXTResult{Records: records}
}

// Close is a no-op: dns.Client holds no persistent connection.
func (e *Exchanger) Close() {}
