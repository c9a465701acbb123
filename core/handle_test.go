package core

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"
)

func TestHandleCryptoLifecycle(t *testing.T) {
	h := HandleNew(1, LogErr, 0)
	defer h.Free()

	cfg := testCryptoConfig("chacha20poly1305", 0xaa)
	if err := h.Crypto(context.Background(), cfg); err != nil {
		t.Fatalf("Crypto: %v", err)
	}

	ct, err := h.Send([]byte("payload"), 0)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	pt, err := h.Recv(1, uint8(TransportUDP), net.ParseIP("10.0.0.1"), ct, 0)
	if err == nil {
		t.Fatalf("expected ACL reject with no entries installed")
	}
	_ = pt

	h.ACLAdd(1, uint8(TransportUDP), ACLEntry{Kind: ACLAddress, IP1: net.ParseIP("10.0.0.1"), Action: ACLAccept})
	pt, err = h.Recv(1, uint8(TransportUDP), net.ParseIP("10.0.0.1"), ct, 0)
	if err != nil {
		t.Fatalf("Recv after ACL accept: %v", err)
	}
	if string(pt) != "payload" {
		t.Fatalf("unexpected payload: %q", pt)
	}

	h.CryptoFini(0)
	if _, err := h.Recv(1, uint8(TransportUDP), net.ParseIP("10.0.0.1"), ct, 0); err == nil {
		t.Fatalf("expected error once no crypto instance is installed and clear traffic is disallowed")
	}
}

func TestHandleRxClearTrafficPolicy(t *testing.T) {
	h := HandleNew(1, LogErr, 0)
	defer h.Free()
	h.ACLAdd(1, uint8(TransportUDP), ACLEntry{Kind: ACLAddress, IP1: net.ParseIP("10.0.0.1"), Action: ACLAccept})

	buf := []byte("clear text")
	if _, err := h.Recv(1, uint8(TransportUDP), net.ParseIP("10.0.0.1"), buf, 0); err == nil {
		t.Fatalf("expected rejection of clear traffic by default policy")
	}

	h.SetRxClearTraffic(RxClearTrafficAllowed)
	got, err := h.Recv(1, uint8(TransportUDP), net.ParseIP("10.0.0.1"), buf, 0)
	if err != nil {
		t.Fatalf("expected clear traffic to pass through once allowed: %v", err)
	}
	if string(got) != "clear text" {
		t.Fatalf("unexpected payload: %q", got)
	}
}

func TestHandleHostAndLinkLifecycle(t *testing.T) {
	h := HandleNew(1, LogErr, 0)
	defer h.Free()

	var mu sync.Mutex
	var notifications []HostStatus
	h.EnableStatusChangeNotify(func(id NodeID, status HostStatus) {
		mu.Lock()
		defer mu.Unlock()
		notifications = append(notifications, status)
	})

	host := h.HostAdd(7, false, false)
	idx, err := h.LinkSetConfig(7, baseLinkConfig())
	if err != nil {
		t.Fatalf("LinkSetConfig: %v", err)
	}

	now := time.Now()
	h.LinkSetEnable(7, idx, true, now)
	h.LinkRecordPong(7, idx, 10*time.Millisecond, now)

	st, ok := h.LinkGetStatus(7, idx)
	if !ok || st.State != LinkConnected {
		t.Fatalf("expected link CONNECTED, got %+v ok=%v", st, ok)
	}

	mu.Lock()
	n := len(notifications)
	mu.Unlock()
	if n == 0 {
		t.Fatalf("expected at least one host_notify callback to have fired")
	}

	h.HostRemove(7)
	if h.Host(7) != nil {
		t.Fatalf("expected host to be forgotten after HostRemove")
	}
	_ = host
}

func TestHandlePMTUDNotifyFiresOnChange(t *testing.T) {
	h := HandleNew(1, LogErr, 0)
	defer h.Free()

	var mu sync.Mutex
	var mtus []int
	h.EnablePMTUDNotify(func(id NodeID, mtu int) {
		mu.Lock()
		defer mu.Unlock()
		mtus = append(mtus, mtu)
	})

	h.HostAdd(3, false, false)
	idx, _ := h.LinkSetConfig(3, baseLinkConfig())
	h.LinkSetEnable(3, idx, true, time.Now())

	h.LinkObservePMTU(3, idx, 1500)
	h.LinkObservePMTU(3, idx, 1500) // repeat: must not fire again
	h.LinkObservePMTU(3, idx, 1400)

	mu.Lock()
	defer mu.Unlock()
	if len(mtus) != 2 {
		t.Fatalf("expected exactly 2 pmtud notifications, got %v", mtus)
	}
	if mtus[0] != 1500 || mtus[1] != 1400 {
		t.Fatalf("unexpected pmtud sequence: %v", mtus)
	}
}

func TestHandleDataFDChannelRegistration(t *testing.T) {
	h := HandleNew(1, LogErr, 0)
	defer h.Free()

	fd, err := h.AddDataFD(5)
	if err != nil {
		t.Fatalf("AddDataFD: %v", err)
	}
	ch, ok := h.GetChannel(fd)
	if !ok || ch != 5 {
		t.Fatalf("expected channel 5, got %d ok=%v", ch, ok)
	}
	gotFD, ok := h.GetDataFD(5)
	if !ok || gotFD != fd {
		t.Fatalf("expected GetDataFD to resolve back to %d, got %d ok=%v", fd, gotFD, ok)
	}

	h.RemoveDataFD(fd)
	if _, ok := h.GetChannel(fd); ok {
		t.Fatalf("expected fd to be forgotten after RemoveDataFD")
	}
}

// TestHandleLinkReachabilityOverRealUDPSockets drives a link's pong samples
// from genuine loopback UDP round trips instead of synthetic durations,
// confirming the state machine behaves the same way against a real socket
// pair as it does in the synthetic link tests.
func TestHandleLinkReachabilityOverRealUDPSockets(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP server: %v", err)
	}
	defer serverConn.Close()

	clientConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP client: %v", err)
	}
	defer clientConn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 64)
		for i := 0; i < 3; i++ {
			n, addr, err := serverConn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			serverConn.WriteToUDP(buf[:n], addr)
		}
	}()

	h := HandleNew(1, LogErr, 0)
	defer h.Free()
	h.HostAdd(9, false, false)
	idx, _ := h.LinkSetConfig(9, LinkConfig{
		Transport:       TransportUDP,
		TimeoutInterval: 2 * time.Second,
		PingInterval:    10 * time.Millisecond,
		PrecisionWindow: 4,
	})
	h.LinkSetEnable(9, idx, true, time.Now())

	for i := 0; i < 3; i++ {
		start := time.Now()
		if _, err := clientConn.WriteToUDP([]byte("ping"), serverConn.LocalAddr().(*net.UDPAddr)); err != nil {
			t.Fatalf("WriteToUDP: %v", err)
		}
		buf := make([]byte, 64)
		clientConn.SetReadDeadline(time.Now().Add(time.Second))
		if _, _, err := clientConn.ReadFromUDP(buf); err != nil {
			t.Fatalf("ReadFromUDP: %v", err)
		}
		h.LinkRecordPong(9, idx, time.Since(start), time.Now())
	}

	<-done
	st, ok := h.LinkGetStatus(9, idx)
	if !ok || st.State != LinkConnected {
		t.Fatalf("expected CONNECTED after real pong round trips, got %+v ok=%v", st, ok)
	}
	if !h.Host(9).Status().Reachable {
		t.Fatalf("expected host reachable after a connected link")
	}
}
