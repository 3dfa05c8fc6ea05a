// Package loopback implements an in-memory, deterministic cciefb.Platform
// for tests: no real sockets, no real clock, no real filesystem. Grounded
// on the teacher's pkg/can/virtual bus (an in-process transport used
// purely for tests), simplified from virtual's TCP-framed broker protocol
// to direct in-memory datagram queues since there is no multi-process
// test topology to support here.
package loopback

import (
	"sync"

	"github.com/cciefb-go/cciefb"
)

// Ether is the shared, process-wide broadcast domain multiple Platform
// instances attach to, simulating one physical UDP segment. The teacher's
// virtual bus needed a TCP broker process for this; a single in-process
// struct is enough since tests never span real process boundaries.
type Ether struct {
	mu      sync.Mutex
	sockets map[uint16][]*Socket // keyed by local port
}

// NewEther creates an empty broadcast domain.
func NewEther() *Ether {
	return &Ether{sockets: make(map[uint16][]*Socket)}
}

func (e *Ether) register(s *Socket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sockets[s.port] = append(e.sockets[s.port], s)
}

func (e *Ether) unregister(s *Socket) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.sockets[s.port]
	for i, o := range list {
		if o == s {
			e.sockets[s.port] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

type datagram struct {
	data    []byte
	srcIP   uint32
	srcPort uint16
	localIP uint32
	ifindex int
}

// Socket is an in-memory cciefb.UDPSocket. Every datagram destined for its
// (ip, port) — including broadcast sends on the same port — lands in an
// unbounded FIFO, drained synchronously by RecvFrom/RecvFromIndexed.
type Socket struct {
	ether   *Ether
	ip      uint32
	port    uint16
	ifindex int

	mu    sync.Mutex
	queue []datagram
}

var _ cciefb.UDPSocket = (*Socket)(nil)

// SendTo delivers data to every socket on dstPort that is bound to dstIP
// or to address 0; when dstIP is the broadcast value 0xFFFFFFFF every
// socket on the port receives it. Loopback never partitions by subnet, so
// a subnet-directed broadcast reaches only the sockets bound to 0 (and any
// socket bound to that exact address).
func (s *Socket) SendTo(dstIP uint32, dstPort uint16, data []byte) (int, error) {
	s.ether.mu.Lock()
	targets := append([]*Socket(nil), s.ether.sockets[dstPort]...)
	s.ether.mu.Unlock()

	cp := append([]byte(nil), data...)
	for _, t := range targets {
		if dstIP != 0xFFFFFFFF && t.ip != 0 && t.ip != dstIP {
			continue
		}
		t.mu.Lock()
		t.queue = append(t.queue, datagram{data: cp, srcIP: s.ip, srcPort: s.port, localIP: t.ip, ifindex: t.ifindex})
		t.mu.Unlock()
	}
	return len(data), nil
}

// RecvFrom implements cciefb.UDPSocket.
func (s *Socket) RecvFrom(buf []byte) (n int, srcIP uint32, srcPort uint16, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, 0, 0, false, nil
	}
	dg := s.queue[0]
	s.queue = s.queue[1:]
	n = copy(buf, dg.data)
	return n, dg.srcIP, dg.srcPort, true, nil
}

// RecvFromIndexed implements cciefb.UDPSocket.
func (s *Socket) RecvFromIndexed(buf []byte) (n int, srcIP uint32, srcPort uint16, localIP uint32, ifindex int, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return 0, 0, 0, 0, 0, false, nil
	}
	dg := s.queue[0]
	s.queue = s.queue[1:]
	n = copy(buf, dg.data)
	return n, dg.srcIP, dg.srcPort, dg.localIP, dg.ifindex, true, nil
}

// Close implements cciefb.UDPSocket.
func (s *Socket) Close() error {
	s.ether.unregister(s)
	return nil
}

// Platform is the in-memory cciefb.Platform. Clocks are explicit counters
// the test drives directly (Advance*), never wall-clock time, so test
// runs are fully reproducible.
type Platform struct {
	Ether *Ether

	monotonicUs uint32
	unixMs      uint64

	ifaces  map[int]ifaceInfo
	ipIndex map[uint32]int

	storage *memStorage
}

type ifaceInfo struct {
	name    string
	mac     cciefb.MACAddress
	netmask uint32
}

var _ cciefb.Platform = (*Platform)(nil)

// NewPlatform constructs a Platform attached to ether, with one interface
// (ifindex 1) owning ip/mac/netmask — enough for a single-homed master or
// slave under test.
func NewPlatform(ether *Ether, ip uint32, mac cciefb.MACAddress, netmask uint32) *Platform {
	p := &Platform{
		Ether:   ether,
		ifaces:  map[int]ifaceInfo{1: {name: "lo0", mac: mac, netmask: netmask}},
		ipIndex: map[uint32]int{ip: 1},
		storage: newMemStorage(),
	}
	return p
}

// OpenUDP implements cciefb.Platform.
func (p *Platform) OpenUDP(ip uint32, port uint16, broadcast bool) (cciefb.UDPSocket, error) {
	s := &Socket{ether: p.Ether, ip: ip, port: port, ifindex: 1}
	p.Ether.register(s)
	return s, nil
}

// InterfaceIndexForIP implements cciefb.Platform.
func (p *Platform) InterfaceIndexForIP(ip uint32) (int, error) {
	idx, ok := p.ipIndex[ip]
	if !ok {
		return 0, cciefb.ErrIllegalArgument
	}
	return idx, nil
}

// InterfaceName implements cciefb.Platform.
func (p *Platform) InterfaceName(ifindex int) (string, error) {
	info, ok := p.ifaces[ifindex]
	if !ok {
		return "", cciefb.ErrIllegalArgument
	}
	return info.name, nil
}

// InterfaceMAC implements cciefb.Platform.
func (p *Platform) InterfaceMAC(ifindex int) (cciefb.MACAddress, error) {
	info, ok := p.ifaces[ifindex]
	if !ok {
		return cciefb.MACAddress{}, cciefb.ErrIllegalArgument
	}
	return info.mac, nil
}

// InterfaceNetmask implements cciefb.Platform.
func (p *Platform) InterfaceNetmask(ifindex int) (uint32, error) {
	info, ok := p.ifaces[ifindex]
	if !ok {
		return 0, cciefb.ErrIllegalArgument
	}
	return info.netmask, nil
}

// SetInterfaceAddress implements cciefb.Platform: updates the in-memory
// interface table, simulating a successful Set-IP application.
func (p *Platform) SetInterfaceAddress(ifindex int, ip uint32, netmask uint32) error {
	info, ok := p.ifaces[ifindex]
	if !ok {
		return cciefb.ErrIllegalArgument
	}
	for existingIP, existingIdx := range p.ipIndex {
		if existingIdx == ifindex {
			delete(p.ipIndex, existingIP)
		}
	}
	info.netmask = netmask
	p.ifaces[ifindex] = info
	p.ipIndex[ip] = ifindex
	return nil
}

// NowMonotonicUs implements cciefb.Platform.
func (p *Platform) NowMonotonicUs() uint32 { return p.monotonicUs }

// NowUnixMs implements cciefb.Platform.
func (p *Platform) NowUnixMs() uint64 { return p.unixMs }

// AdvanceMonotonic advances the simulated monotonic clock, for driving
// Tick loops deterministically from a test.
func (p *Platform) AdvanceMonotonic(deltaUs uint32) { p.monotonicUs += deltaUs }

// SetUnixMs sets the simulated Unix-time clock.
func (p *Platform) SetUnixMs(ms uint64) { p.unixMs = ms }

// Storage implements cciefb.Platform.
func (p *Platform) Storage() cciefb.Storage { return p.storage }
