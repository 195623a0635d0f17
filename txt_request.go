package aresdriver

import (
	"strings"
	"time"
)

// grpcConfigPrefix is the literal TXT record prefix this driver looks for,
// per spec.md §4.5 and the original service-config TXT convention.
const grpcConfigPrefix = "grpc_config="

// TXTCallback receives a TXTRequest's outcome exactly once.
type TXTCallback func(config string, err error)

// TXTRequest issues a single TXT query for _grpc_config.<host> and
// completes single-shot (spec.md §4.5).
type TXTRequest struct {
	request
	onResolve TXTCallback
}

// CreateTXTRequest builds and Initializes a TXTRequest.
func CreateTXTRequest(name, defaultPort, dnsServer string, checkPort bool, timeout time.Duration, registerCB func(SocketHandle, PolledFd), engine EventEngine, fdFactory PolledFdFactory) (*TXTRequest, error) {
	tr := &TXTRequest{}
	if err := initRequest(&tr.request, newStub, engine, fdFactory, registerCB, name, defaultPort, dnsServer, checkPort, timeout); err != nil {
		return nil, err
	}
	return tr, nil
}

// Start begins resolution. See spec.md §4.5.
func (tr *TXTRequest) Start(onResolve TXTCallback) {
	tr.mu.Lock()
	tr.onResolve = onResolve
	tr.deadlineHook = tr.onDeadlineLocked

	if strings.EqualFold(tr.host, "localhost") {
		tr.mu.Unlock()
		tr.engine.Run(func() {
			onResolve("", invalidArgument("skip querying TXT records for localhost"))
		})
		tr.release()
		return
	}

	configName := "_grpc_config." + tr.host
	tr.stub.LookupTXT(configName, func(res TXTResult) {
		tr.onResolveLocked(res)
	})

	if !tr.shuttingDown {
		tr.workLocked()
		tr.startTimersLocked()
	}
	tr.mu.Unlock()
}

func (tr *TXTRequest) onResolveLocked(res TXTResult) {
	if tr.cancelled || tr.completed {
		// A late arrival after Cancel, or after the deadline already
		// completed the request directly. releaseStartRefLocked is a no-op
		// here unless Cancel is what got us here and nothing has released
		// the Start ref yet.
		tr.releaseStartRefLocked()
		return
	}
	tr.shuttingDown = true
	tr.completed = true
	tr.cancelTimersLocked()

	cb := tr.onResolve
	var config string
	var err error
	if res.Err != nil {
		err = classifyStubError("TXT", tr.host, res.Err)
	} else {
		config = extractServiceConfig(res.Records)
	}
	logf("%p: txt %q resolved, config=%q err=%v", tr, tr.name, config, err)
	tr.engine.Run(func() { cb(config, err) })
	tr.releaseStartRefLocked()
}

// onDeadlineLocked runs once, from within onQueryTimeout, when the deadline
// fires before the stub's TXT callback has arrived.
func (tr *TXTRequest) onDeadlineLocked() {
	tr.completed = true
	tr.cancelTimersLocked()
	logf("%p: txt %q deadline exceeded", tr, tr.name)

	cb := tr.onResolve
	tr.engine.Run(func() { cb("", deadlineExceeded()) })
	tr.releaseStartRefLocked()
}

// extractServiceConfig finds the first record marked RecordStart whose text
// begins with the literal prefix "grpc_config=", then concatenates that
// record's tail with every following record up to (but not including) the
// next RecordStart record. Returns "" if no matching record exists — still
// a successful result (spec.md §4.5).
func extractServiceConfig(records []TXTRecord) string {
	start := -1
	for i, rec := range records {
		if rec.RecordStart && strings.HasPrefix(rec.Text, grpcConfigPrefix) {
			start = i
			break
		}
	}
	if start == -1 {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.TrimPrefix(records[start].Text, grpcConfigPrefix))
	for i := start + 1; i < len(records); i++ {
		if records[i].RecordStart {
			break
		}
		b.WriteString(records[i].Text)
	}
	return b.String()
}
