package core

import (
	"testing"
	"time"
)

func baseLinkConfig() LinkConfig {
	return LinkConfig{
		Transport:       TransportUDP,
		TimeoutInterval: 200 * time.Millisecond,
		PingInterval:    50 * time.Millisecond,
		PrecisionWindow: 8,
	}
}

func TestLinkEnableTransitionsToProbing(t *testing.T) {
	l := NewLink(baseLinkConfig())
	if l.Status().State != LinkDisabled {
		t.Fatalf("expected new link to start DISABLED")
	}
	now := time.Now()
	l.Enable(now)
	st := l.Status()
	if st.State != LinkProbing || !st.Enabled {
		t.Fatalf("expected PROBING after Enable, got %v enabled=%v", st.State, st.Enabled)
	}
}

func TestLinkEnableIsIdempotent(t *testing.T) {
	l := NewLink(baseLinkConfig())
	now := time.Now()
	l.Enable(now)
	l.RecordPong(10*time.Millisecond, now.Add(time.Millisecond))
	before := l.Status()

	l.Enable(now.Add(time.Second)) // re-enable should be a no-op
	after := l.Status()
	if before != after {
		t.Fatalf("expected re-Enable to be a no-op: before=%+v after=%+v", before, after)
	}
}

func TestLinkRecordPongTransitionsToConnected(t *testing.T) {
	l := NewLink(baseLinkConfig())
	now := time.Now()
	l.Enable(now)

	changed := l.RecordPong(20*time.Millisecond, now.Add(time.Millisecond))
	if !changed {
		t.Fatalf("expected first pong to flip reachability")
	}
	if l.Status().State != LinkConnected {
		t.Fatalf("expected CONNECTED after first pong")
	}

	changed = l.RecordPong(30*time.Millisecond, now.Add(2*time.Millisecond))
	if changed {
		t.Fatalf("expected second pong while already connected to report no change")
	}
}

func TestLinkRecordPongIgnoredWhenDisabled(t *testing.T) {
	l := NewLink(baseLinkConfig())
	if l.RecordPong(10*time.Millisecond, time.Now()) {
		t.Fatalf("expected RecordPong on a disabled link to report no reachability change")
	}
	if l.Status().State != LinkDisabled {
		t.Fatalf("expected link to remain DISABLED")
	}
}

func TestLinkLatencyEWMA(t *testing.T) {
	l := NewLink(baseLinkConfig())
	now := time.Now()
	l.Enable(now)
	l.RecordPong(100*time.Millisecond, now)
	first := l.Status().Latency
	if first != 100*time.Millisecond {
		t.Fatalf("expected first sample to seed latency directly, got %v", first)
	}

	l.RecordPong(0, now.Add(time.Millisecond))
	second := l.Status().Latency
	if second >= first {
		t.Fatalf("expected EWMA to move latency down after a zero-rtt sample, got %v (was %v)", second, first)
	}
	if second <= 0 {
		t.Fatalf("expected EWMA smoothing to keep some weight on the prior sample, got %v", second)
	}
}

func TestLinkTickTimesOutToDisconnected(t *testing.T) {
	l := NewLink(baseLinkConfig())
	now := time.Now()
	l.Enable(now)
	l.RecordPong(10*time.Millisecond, now)

	if l.Tick(now.Add(50 * time.Millisecond)) {
		t.Fatalf("expected Tick before deadline to report no change")
	}
	if l.Status().State != LinkConnected {
		t.Fatalf("expected link to remain CONNECTED before timeout")
	}

	changed := l.Tick(now.Add(300 * time.Millisecond))
	if !changed {
		t.Fatalf("expected Tick past deadline to report a change")
	}
	if l.Status().State != LinkDisconnected {
		t.Fatalf("expected DISCONNECTED after timeout")
	}
}

func TestLinkReconnectAfterDisconnect(t *testing.T) {
	l := NewLink(baseLinkConfig())
	now := time.Now()
	l.Enable(now)
	l.RecordPong(10*time.Millisecond, now)
	l.Tick(now.Add(300 * time.Millisecond))
	if l.Status().State != LinkDisconnected {
		t.Fatalf("precondition: expected DISCONNECTED")
	}

	changed := l.RecordPong(10*time.Millisecond, now.Add(310*time.Millisecond))
	if !changed {
		t.Fatalf("expected reconnecting pong to flip reachability again")
	}
	if l.Status().State != LinkConnected {
		t.Fatalf("expected CONNECTED after reconnect pong")
	}
}

func TestLinkDisableResetsState(t *testing.T) {
	l := NewLink(baseLinkConfig())
	now := time.Now()
	l.Enable(now)
	l.RecordPong(10*time.Millisecond, now)
	l.ObservePMTU(1400)

	l.Disable()
	st := l.Status()
	if st.Enabled || st.State != LinkDisabled || st.Latency != 0 || st.DataMTU != 0 {
		t.Fatalf("expected Disable to fully reset link state, got %+v", st)
	}
}

func TestLinkObservePMTUFiresOnlyOnChange(t *testing.T) {
	l := NewLink(baseLinkConfig())
	if !l.ObservePMTU(1500) {
		t.Fatalf("expected first PMTU sample to report a change")
	}
	if l.ObservePMTU(1500) {
		t.Fatalf("expected repeated identical PMTU sample to report no change")
	}
	if !l.ObservePMTU(1400) {
		t.Fatalf("expected a different PMTU sample to report a change")
	}
}
