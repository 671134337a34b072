package node

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/holpsBot/proof-of-wake/api"
)

// StreamCaller carries JSON-RPC requests over libp2p streams.
type StreamCaller struct {
	host host.Host
	peer peer.ID
}

func (c *StreamCaller) Call(ctx context.Context, req *api.Request) (*api.Response, error) {
	s, err := c.host.NewStream(ctx, c.peer, ProtocolRPC)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream to %s: %w", c.peer, err)
	}
	defer s.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.SetDeadline(deadline)
	}
	if err := json.NewEncoder(s).Encode(req); err != nil {
		_ = s.Reset()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	if err := s.CloseWrite(); err != nil {
		_ = s.Reset()
		return nil, fmt.Errorf("failed to close request stream: %w", err)
	}
	var resp api.Response
	if err := json.NewDecoder(s).Decode(&resp); err != nil {
		_ = s.Reset()
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return &resp, nil
}

// Conn is a ledger client connected to a remote node over libp2p.
type Conn struct {
	*api.Client
	host host.Host
}

// Close shuts down the client host.
func (c *Conn) Close() error {
	return c.host.Close()
}

// Dial connects to the node at addr, a multiaddr ending in /p2p/<peer id>.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid node address %q: %w", addr, err)
	}
	pi, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return nil, fmt.Errorf("invalid node address %q: %w", addr, err)
	}
	h, err := libp2p.New(libp2p.NoListenAddrs)
	if err != nil {
		return nil, fmt.Errorf("failed to create libp2p host: %w", err)
	}
	if err := h.Connect(ctx, *pi); err != nil {
		return nil, errors.Join(
			fmt.Errorf("failed to connect to %s: %w", pi.ID, err),
			h.Close(),
		)
	}
	return &Conn{
		Client: api.NewClient(&StreamCaller{host: h, peer: pi.ID}),
		host:   h,
	}, nil
}
