package core

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// HandleFlags is the flags bitmask accepted by HandleNew; no flag bits are
// currently defined, but the type is kept so callers don't need to change
// when one is added.
type HandleFlags uint32

// RxClearTrafficPolicy controls whether plaintext received while a crypto
// instance is installed is accepted — hosts use this during rekey windows.
type RxClearTrafficPolicy uint8

const (
	RxClearTrafficNever RxClearTrafficPolicy = iota
	RxClearTrafficAllowed
)

// Handle is the root aggregate: it owns the crypto slot table, the ACL
// stores, the host map, the notification callback table, and the
// handle-wide reconfiguration lock. All configuration operations are
// mutually exclusive; data-path operations may proceed concurrently with
// each other.
type Handle struct {
	nodeID   NodeID
	logLevel LogLevel

	crypto  *cryptoManager
	acl     *ACLStore
	notify  *notifier
	datafds *dataFDTable

	mu             sync.RWMutex // reconfiguration lock: serialises host/link/ACL changes
	hosts          map[NodeID]*Host
	rxClearTraffic RxClearTrafficPolicy
	pmtudFreq      time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     *errgroup.Group

	tickInterval time.Duration
}

// HandleNew creates and bootstraps a handle. flags is accepted for
// API-surface parity even though no bits are currently defined; logging
// goes straight through logrus rather than through a separate transport.
func HandleNew(nodeID NodeID, logLevel LogLevel, flags HandleFlags) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	grp, gctx := errgroup.WithContext(ctx)

	h := &Handle{
		nodeID:       nodeID,
		logLevel:     logLevel,
		crypto:       newCryptoManager(),
		acl:          newACLStore(),
		notify:       newNotifier(),
		datafds:      newDataFDTable(),
		hosts:        make(map[NodeID]*Host),
		pmtudFreq:    10 * time.Second,
		ctx:          gctx,
		cancel:       cancel,
		wg:           grp,
		tickInterval: 200 * time.Millisecond,
	}

	h.wg.Go(func() error {
		h.tickWorker(gctx)
		return nil
	})

	logrus.WithFields(logrus.Fields{"subsystem": "handle", "node_id": nodeID}).Info("handle created")
	return h
}

// Free tears the handle down: cancels background workers, joins them, then
// releases crypto instances. No partial-destruction state is observable to
// API callers afterwards.
func (h *Handle) Free() {
	h.cancel()
	_ = h.wg.Wait()
	h.crypto.Fini(0)
	logrus.WithFields(logrus.Fields{"subsystem": "handle", "node_id": h.nodeID}).Info("handle freed")
}

// tickWorker is the background goroutine that ages link timeouts and
// recomputes host reachability.
func (h *Handle) tickWorker(ctx context.Context) {
	ticker := time.NewTicker(h.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			h.tickOnce(now)
		}
	}
}

func (h *Handle) tickOnce(now time.Time) {
	h.mu.RLock()
	hosts := make([]*Host, 0, len(h.hosts))
	for _, host := range h.hosts {
		hosts = append(hosts, host)
	}
	h.mu.RUnlock()

	for _, host := range hosts {
		changed := false
		for _, idx := range host.LinkList() {
			if l := host.Link(idx); l != nil {
				if l.Tick(now) {
					changed = true
				}
			}
		}
		if changed {
			h.notify.fireHost(host.ID(), host.Status())
		}
	}
}

// -- Crypto configuration -------------------------------------------------

// CryptoSetConfig installs cfg into slot.
func (h *Handle) CryptoSetConfig(ctx context.Context, cfg CryptoConfig, slot uint8) error {
	return h.crypto.Init(ctx, cfg, slot)
}

// CryptoUseConfig switches the in-use slot.
func (h *Handle) CryptoUseConfig(slot uint8) error {
	return h.crypto.UseConfig(slot)
}

// Crypto is the legacy single-slot form: install into slot 1 and make it
// active in one call.
func (h *Handle) Crypto(ctx context.Context, cfg CryptoConfig) error {
	if err := h.crypto.Init(ctx, cfg, 1); err != nil {
		return err
	}
	return h.crypto.UseConfig(1)
}

// CryptoFini tears down slot (0 == all slots).
func (h *Handle) CryptoFini(slot uint8) {
	h.crypto.Fini(slot)
}

// SetRxClearTraffic sets the policy for accepting plaintext on the wire
// during rekey windows.
func (h *Handle) SetRxClearTraffic(policy RxClearTrafficPolicy) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rxClearTraffic = policy
}

// -- Host API ------------------------------------------------------------

// HostAdd registers a new peer.
func (h *Handle) HostAdd(id NodeID, remote, external bool) *Host {
	h.mu.Lock()
	defer h.mu.Unlock()
	host := newHost(id, remote, external)
	h.hosts[id] = host
	return host
}

// HostRemove forgets a peer and implicitly tears down its links.
func (h *Handle) HostRemove(id NodeID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if host, ok := h.hosts[id]; ok {
		for _, idx := range host.LinkList() {
			host.RemoveLink(idx)
		}
		delete(h.hosts, id)
	}
}

// Host returns the host record for id, or nil.
func (h *Handle) Host(id NodeID) *Host {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.hosts[id]
}

// GetHostList returns every registered host id.
func (h *Handle) GetHostList() []NodeID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]NodeID, 0, len(h.hosts))
	for id := range h.hosts {
		out = append(out, id)
	}
	return out
}

// EnableStatusChangeNotify registers the host reachability callback.
func (h *Handle) EnableStatusChangeNotify(f HostNotifyFunc) {
	h.notify.EnableHostNotify(f)
}

// EnablePMTUDNotify registers the PMTUd callback.
func (h *Handle) EnablePMTUDNotify(f PMTUDNotifyFunc) {
	h.notify.EnablePMTUDNotify(f)
}

// EnableSockNotify registers the transport-error callback.
func (h *Handle) EnableSockNotify(f SockNotifyFunc) {
	h.notify.EnableSockNotify(f)
}

// PMTUDSetFreq sets how often the PMTUd worker re-probes.
func (h *Handle) PMTUDSetFreq(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pmtudFreq = d
}

// PMTUDGet returns a host's current effective data_mtu.
func (h *Handle) PMTUDGet(id NodeID) int {
	host := h.Host(id)
	if host == nil {
		return 0
	}
	return host.dataMTU()
}

// -- Link API -------------------------------------------------------------

// LinkSetConfig creates (or replaces) link idx on host id.
func (h *Handle) LinkSetConfig(id NodeID, cfg LinkConfig) (idx int, err error) {
	host := h.Host(id)
	if host == nil {
		return 0, codedErr(ErrConfiguration, "link_set_config", ErrUnknownModel)
	}
	idx, _ = host.AddLink(cfg)
	return idx, nil
}

// LinkClearConfig tears down link idx on host id.
func (h *Handle) LinkClearConfig(id NodeID, idx int) {
	if host := h.Host(id); host != nil {
		host.RemoveLink(idx)
	}
}

// LinkSetEnable enables or disables link idx.
func (h *Handle) LinkSetEnable(id NodeID, idx int, enable bool, now time.Time) {
	host := h.Host(id)
	if host == nil {
		return
	}
	l := host.Link(idx)
	if l == nil {
		return
	}
	if enable {
		l.Enable(now)
	} else {
		l.Disable()
	}
}

// LinkRecordPong feeds a pong RTT sample into link idx on host id and, if
// the link's contribution to reachability changed, fires exactly one host
// notification.
func (h *Handle) LinkRecordPong(id NodeID, idx int, rtt time.Duration, now time.Time) {
	host := h.Host(id)
	if host == nil {
		return
	}
	l := host.Link(idx)
	if l == nil {
		return
	}
	if l.RecordPong(rtt, now) {
		h.notify.fireHost(id, host.Status())
	}
}

// LinkObservePMTU feeds a PMTUd sample into link idx on host id, firing the
// PMTUd notification at most once per change of the host's effective
// data MTU.
func (h *Handle) LinkObservePMTU(id NodeID, idx int, mtu int) {
	host := h.Host(id)
	if host == nil {
		return
	}
	l := host.Link(idx)
	if l == nil {
		return
	}
	before := host.dataMTU()
	if l.ObservePMTU(mtu) {
		after := host.dataMTU()
		if after != before {
			h.notify.firePMTUD(id, after)
		}
	}
}

// LinkGetStatus returns a read-only snapshot of link idx.
func (h *Handle) LinkGetStatus(id NodeID, idx int) (LinkStatus, bool) {
	host := h.Host(id)
	if host == nil {
		return LinkStatus{}, false
	}
	l := host.Link(idx)
	if l == nil {
		return LinkStatus{}, false
	}
	return l.Status(), true
}

// GetLinkList returns the configured link indices for host id.
func (h *Handle) GetLinkList(id NodeID) []int {
	host := h.Host(id)
	if host == nil {
		return nil
	}
	return host.LinkList()
}

// -- Data-fd / channel API -------------------------------------------------

func (h *Handle) AddDataFD(channel int) (int, error)   { return h.datafds.AddDataFD(channel) }
func (h *Handle) RemoveDataFD(fd int)                  { h.datafds.RemoveDataFD(fd) }
func (h *Handle) GetDataFD(channel int) (int, bool)    { return h.datafds.GetDataFD(channel) }
func (h *Handle) GetChannel(fd int) (int, bool)        { return h.datafds.Channel(fd) }

// -- ACL API ---------------------------------------------------------------

func (h *Handle) ACLAdd(sock int, transport uint8, e ACLEntry) { h.acl.Add(sock, transport, e) }
func (h *Handle) ACLRm(sock int, transport uint8, e ACLEntry) bool {
	return h.acl.Rm(sock, transport, e)
}
func (h *Handle) ACLRmAll(sock int, transport uint8) { h.acl.RmAll(sock, transport) }
func (h *Handle) ACLValidate(sock int, transport uint8, ip net.IP) ACLAction {
	return h.acl.Validate(sock, transport, ip)
}

// -- Data path ---------------------------------------------------------

// Send encrypts+signs buf with the in-use crypto instance and returns the
// wire blob. Channel tagging is the caller's responsibility via the
// registered data-fd.
func (h *Handle) Send(buf []byte, channel int) ([]byte, error) {
	return h.crypto.EncryptAndSign(buf)
}

// Recv admits an inbound datagram through the ACL (sock, transport) filter
// before attempting decryption, then authenticates+decrypts it. A
// clear-traffic policy of RxClearTrafficAllowed lets an unencrypted
// payload through when no crypto instance is installed yet, accommodating
// a rekey window where the peer hasn't switched over yet either.
func (h *Handle) Recv(sock int, transport uint8, ip net.IP, buf []byte, channel int) ([]byte, error) {
	if h.acl.Validate(sock, transport, ip) == ACLReject {
		logrus.WithFields(logrus.Fields{"subsystem": "acl", "src": ip.String()}).Debug("packet rejected by ACL")
		return nil, codedErr(ErrPolicy, "recv", nil)
	}

	if h.crypto.InUse() == 0 {
		h.mu.RLock()
		allowClear := h.rxClearTraffic == RxClearTrafficAllowed
		h.mu.RUnlock()
		if allowClear {
			return buf, nil
		}
		return nil, codedErr(ErrConfiguration, "recv", ErrNoInstances)
	}

	return h.crypto.AuthenticateAndDecrypt(buf)
}
