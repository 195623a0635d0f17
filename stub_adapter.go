package aresdriver

import "github.com/astracat-corp/aresdriver/internal/asyncstub"

// stubAdapter implements Stub on top of an asyncstub.Bridge, translating
// between this package's Family/HostResult/SRVResult/TXTResult types and
// asyncstub's identically-shaped ones. The two are kept separate so the
// internal backends never need to import the root package.
type stubAdapter struct {
	b *asyncstub.Bridge
}

func newStubAdapter(b *asyncstub.Bridge) Stub {
	return &stubAdapter{b: b}
}

func (a *stubAdapter) Sockets() []SocketInterest {
	raw := a.b.Sockets()
	out := make([]SocketInterest, len(raw))
	for i, s := range raw {
		out[i] = SocketInterest{Socket: SocketHandle(s.Socket), Readable: s.Readable, Writable: s.Writable}
	}
	return out
}

func (a *stubAdapter) ProcessFD(readFD, writeFD SocketHandle) {
	a.b.ProcessFD(int(readFD), int(writeFD))
}

func (a *stubAdapter) Cancel() { a.b.Cancel() }

func (a *stubAdapter) Destroy() { a.b.Destroy() }

func (a *stubAdapter) SetServer(host string, port uint16) error {
	return a.b.SetServer(host, port)
}

func (a *stubAdapter) LookupHost(name string, family Family, onDone func(HostResult)) {
	af := asyncstub.FamilyIPv4
	if family == FamilyIPv6 {
		af = asyncstub.FamilyIPv6
	}
	a.b.LookupHost(name, af, func(r asyncstub.HostResult) {
		onDone(HostResult{Addrs: r.Addrs, Err: r.Err})
	})
}

func (a *stubAdapter) LookupSRV(name string, onDone func(SRVResult)) {
	a.b.LookupSRV(name, func(r asyncstub.SRVResult) {
		recs := make([]SRVRecord, len(r.Records))
		for i, rec := range r.Records {
			recs[i] = SRVRecord{Host: rec.Host, Port: rec.Port, Priority: rec.Priority, Weight: rec.Weight}
		}
		onDone(SRVResult{Records: recs, Err: r.Err})
	})
}

func (a *stubAdapter) LookupTXT(name string, onDone func(TXTResult)) {
	a.b.LookupTXT(name, func(r asyncstub.TXTResult) {
		recs := make([]TXTRecord, len(r.Records))
		for i, rec := range r.Records {
			recs[i] = TXTRecord{Text: rec.Text, RecordStart: rec.RecordStart}
		}
		onDone(TXTResult{Records: recs, Err: r.Err})
	})
}
