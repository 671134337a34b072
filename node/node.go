package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	kaddht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/discovery/routing"
	"github.com/libp2p/go-libp2p/p2p/discovery/util"
	"github.com/multiformats/go-multiaddr"

	"github.com/holpsBot/proof-of-wake/api"
	"github.com/holpsBot/proof-of-wake/ledger"
)

const (
	ProtocolMDNS = "proof-of-wake-local"
	ProtocolDHT  = "proof-of-wake-global"
	ProtocolRPC  = "/proof-of-wake/rpc/1.0.0"
	ProtocolPing = "/proof-of-wake/ping/1.0.0"

	// unreachableLatency is recorded for peers that did not answer a ping
	unreachableLatency = int64(9999)
	latencyKey         = "latency"
	rpcStreamTimeout   = 30 * time.Second
	discoveryInterval  = time.Minute
)

// Config holds the node configuration
type Config struct {
	ListenAddrs    []string
	BootstrapPeers []string
	EnableMDNS     bool
	EnableDHT      bool
	Logger         *slog.Logger
}

// PeerInfo holds detailed information about a discovered peer for the API
type PeerInfo struct {
	ID      string   `json:"id"`
	Addrs   []string `json:"addrs"`
	Latency int64    `json:"latency"` // Latency in milliseconds
}

// Node serves the ledger JSON-RPC to libp2p peers.
type Node struct {
	host       host.Host
	dispatcher *api.Dispatcher
	logger     *slog.Logger
	mdns       mdns.Service
	dht        *kaddht.IpfsDHT
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New starts a libp2p host serving svc.
func New(svc ledger.Service, cfg Config) (*Node, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	opts := []libp2p.Option{
		libp2p.EnableRelay(),
		libp2p.EnableHolePunching(),
	}
	if len(cfg.ListenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(cfg.ListenAddrs...))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Node{
		host:       h,
		dispatcher: api.NewDispatcher(svc, logger),
		logger:     logger,
		cancel:     cancel,
	}
	h.SetStreamHandler(ProtocolRPC, n.rpcHandler)
	h.SetStreamHandler(ProtocolPing, pingHandler)
	n.logger.Info(
		fmt.Sprintf("P2P node initialized: %s", h.ID()),
		"component", "node",
	)

	bootstrap, err := parsePeers(cfg.BootstrapPeers)
	if err != nil {
		_ = n.Close()
		return nil, err
	}
	for _, pi := range bootstrap {
		if err := h.Connect(ctx, pi); err != nil {
			n.logger.Warn(
				fmt.Sprintf("failed to connect to bootstrap peer %s: %s", pi.ID, err),
				"component", "node",
			)
			continue
		}
		pi := pi
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.MeasureLatency(ctx, pi.ID)
		}()
	}
	if cfg.EnableMDNS {
		n.mdns = mdns.NewMdnsService(h, ProtocolMDNS, &discoveryNotifee{n: n, ctx: ctx})
		if err := n.mdns.Start(); err != nil {
			n.logger.Warn(
				fmt.Sprintf("mDNS start error: %s", err),
				"component", "node",
			)
		}
	}
	if cfg.EnableDHT {
		if err := n.startDHT(ctx, bootstrap); err != nil {
			_ = n.Close()
			return nil, err
		}
	}
	return n, nil
}

func parsePeers(addrs []string) ([]peer.AddrInfo, error) {
	var ret []peer.AddrInfo
	for _, s := range addrs {
		ma, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid peer address %q: %w", s, err)
		}
		pi, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return nil, fmt.Errorf("invalid peer address %q: %w", s, err)
		}
		ret = append(ret, *pi)
	}
	return ret, nil
}

// ID returns the peer ID of the node.
func (n *Node) ID() peer.ID {
	return n.host.ID()
}

// Addrs returns the full dialable addresses of the node, including its peer ID.
func (n *Node) Addrs() []multiaddr.Multiaddr {
	addrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{
		ID:    n.host.ID(),
		Addrs: n.host.Addrs(),
	})
	if err != nil {
		return nil
	}
	return addrs
}

// Close stops discovery and the host.
func (n *Node) Close() error {
	n.cancel()
	var errs []error
	if n.mdns != nil {
		errs = append(errs, n.mdns.Close())
	}
	if n.dht != nil {
		errs = append(errs, n.dht.Close())
	}
	n.wg.Wait()
	errs = append(errs, n.host.Close())
	return errors.Join(errs...)
}

// rpcHandler serves one JSON-RPC request per stream.
func (n *Node) rpcHandler(s network.Stream) {
	remotePeer := s.Conn().RemotePeer()
	_ = s.SetDeadline(time.Now().Add(rpcStreamTimeout))
	var req api.Request
	if err := json.NewDecoder(io.LimitReader(s, api.MaxRequestSize)).Decode(&req); err != nil {
		n.logger.Debug(
			fmt.Sprintf("failed to decode request from %s: %s", remotePeer, err),
			"component", "node",
		)
		_ = s.Reset()
		return
	}
	defer s.Close()
	ctx, cancel := context.WithTimeout(context.Background(), rpcStreamTimeout)
	defer cancel()
	resp := n.dispatcher.Dispatch(ctx, &req)
	if err := json.NewEncoder(s).Encode(resp); err != nil {
		n.logger.Debug(
			fmt.Sprintf("failed to send response to %s: %s", remotePeer, err),
			"component", "node",
		)
	}
}

// pingHandler echoes one byte
func pingHandler(s network.Stream) {
	defer s.Close()
	buf := make([]byte, 1)
	if _, err := io.ReadFull(s, buf); err != nil {
		return
	}
	_, _ = s.Write(buf)
}

// MeasureLatency pings p and records the round trip in the peerstore.
func (n *Node) MeasureLatency(ctx context.Context, p peer.ID) int64 {
	latency := ping(ctx, n.host, p)
	n.host.Peerstore().Put(p, latencyKey, latency)
	if latency < unreachableLatency {
		n.logger.Debug(
			fmt.Sprintf("measured latency to %s: %dms", p, latency),
			"component", "node",
		)
	}
	return latency
}

func ping(ctx context.Context, h host.Host, p peer.ID) int64 {
	start := time.Now()
	s, err := h.NewStream(ctx, p, ProtocolPing)
	if err != nil {
		return unreachableLatency
	}
	defer s.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}
	if _, err := s.Write([]byte("p")); err != nil {
		return unreachableLatency
	}
	buf := make([]byte, 1)
	if _, err := io.ReadFull(s, buf); err != nil {
		return unreachableLatency
	}
	return time.Since(start).Milliseconds()
}

// Peers lists the known peers, fastest first.
func (n *Node) Peers() []PeerInfo {
	var peerInfos []PeerInfo
	for _, p := range n.host.Peerstore().Peers() {
		if p == n.host.ID() {
			continue
		}
		addrs := n.host.Peerstore().Addrs(p)
		addrStrings := make([]string, len(addrs))
		for i, addr := range addrs {
			addrStrings[i] = addr.String()
		}
		latency := unreachableLatency
		if latencyVal, err := n.host.Peerstore().Get(p, latencyKey); err == nil {
			if lat, ok := latencyVal.(int64); ok {
				latency = lat
			}
		}
		peerInfos = append(peerInfos, PeerInfo{
			ID:      p.String(),
			Addrs:   addrStrings,
			Latency: latency,
		})
	}
	sort.Slice(peerInfos, func(i, j int) bool {
		return peerInfos[i].Latency < peerInfos[j].Latency
	})
	return peerInfos
}

// PeersHandler serves Peers as JSON.
func (n *Node) PeersHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		peers := n.Peers()
		if peers == nil {
			peers = []PeerInfo{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(peers)
	})
}

func (n *Node) startDHT(ctx context.Context, bootstrap []peer.AddrInfo) error {
	kdht, err := kaddht.New(
		ctx,
		n.host,
		kaddht.Mode(kaddht.ModeAutoServer),
		kaddht.BootstrapPeers(bootstrap...),
	)
	if err != nil {
		return fmt.Errorf("failed to create DHT: %w", err)
	}
	n.dht = kdht
	if err := kdht.Bootstrap(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap DHT: %w", err)
	}
	routingDiscovery := routing.NewRoutingDiscovery(kdht)
	util.Advertise(ctx, routingDiscovery, ProtocolDHT)

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(discoveryInterval)
		defer ticker.Stop()
		for {
			peerChan, err := routingDiscovery.FindPeers(ctx, ProtocolDHT)
			if err == nil {
				for p := range peerChan {
					if p.ID == n.host.ID() || len(n.host.Peerstore().Addrs(p.ID)) > 0 {
						continue
					}
					n.logger.Debug(
						fmt.Sprintf("found peer via DHT: %s", p.ID),
						"component", "node",
					)
					n.host.Peerstore().AddAddrs(p.ID, p.Addrs, time.Hour)
					n.MeasureLatency(ctx, p.ID)
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	n.logger.Info("DHT discovery running", "component", "node")
	return nil
}

type discoveryNotifee struct {
	n   *Node
	ctx context.Context
}

func (d *discoveryNotifee) HandlePeerFound(pi peer.AddrInfo) {
	if pi.ID == d.n.host.ID() {
		return
	}
	d.n.logger.Debug(
		fmt.Sprintf("found peer via mDNS: %s", pi.ID),
		"component", "node",
	)
	d.n.host.Peerstore().AddAddrs(pi.ID, pi.Addrs, time.Hour)
	d.n.wg.Add(1)
	go func() {
		defer d.n.wg.Done()
		d.n.MeasureLatency(d.ctx, pi.ID)
	}()
}
