// Package transport defines the abstract peer-to-peer contract the server
// consumes and an in-process loopback implementation used for tests and for
// wiring multiple nodes together inside a single process.
package transport

import (
	"context"
	"fmt"
	"sync"

	internalerrors "github.com/empower1/ledgerchain/internal/errors"
)

// InboxCapacity is the bounded inbound-queue capacity every Transport
// implementation must honor; a full queue blocks the sender rather than
// dropping messages.
const InboxCapacity = 1024

// RPC is an inbound message paired with the address it arrived from.
type RPC struct {
	From    string
	Payload []byte
}

// Transport is the abstract contract a node's networking layer must
// satisfy. Every operation is asynchronous and cancel-safe via ctx.
type Transport interface {
	// Recv returns the next inbound RPC, or an error (ErrChannelClosed) once
	// the transport is closed and drained.
	Recv(ctx context.Context) (RPC, error)
	// Connect adds peer to this transport's peer set, keyed by its address.
	Connect(peer Transport)
	// SendMessage delivers payload to peer to's inbound queue. Sending to
	// self is a no-op. Fails with ErrUnknownPeer if to is not connected.
	SendMessage(ctx context.Context, to string, payload []byte) error
	// Broadcast sends payload to every connected peer. Per-peer failures are
	// collected and returned together; they do not abort the broadcast.
	Broadcast(ctx context.Context, payload []byte) error
	// Peers returns a snapshot of the current peer address set.
	Peers() []string
	// Addr returns this transport's own address.
	Addr() string
}

// LocalTransport is an in-process loopback Transport: peers are held in a
// shared map and each transport owns a bounded inbound channel.
type LocalTransport struct {
	addr string

	mu    sync.RWMutex
	peers map[string]*LocalTransport

	inbox chan RPC
}

// NewLocalTransport returns a LocalTransport bound to addr.
func NewLocalTransport(addr string) *LocalTransport {
	return &LocalTransport{
		addr:  addr,
		peers: make(map[string]*LocalTransport),
		inbox: make(chan RPC, InboxCapacity),
	}
}

// Addr returns this transport's address.
func (t *LocalTransport) Addr() string {
	return t.addr
}

// Connect registers peer under its own address. The link is one-directional;
// callers connect each side explicitly. A peer that is not a
// *LocalTransport is ignored and not added to the peer set.
func (t *LocalTransport) Connect(peer Transport) {
	lt, ok := peer.(*LocalTransport)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[lt.Addr()] = lt
}

// Peers returns a snapshot of connected peer addresses.
func (t *LocalTransport) Peers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.peers))
	for addr := range t.peers {
		out = append(out, addr)
	}
	return out
}

// SendMessage delivers payload to peer to's inbox. Sending to self is a
// no-op; an unknown peer fails with ErrUnknownPeer.
func (t *LocalTransport) SendMessage(ctx context.Context, to string, payload []byte) error {
	if to == t.addr {
		return nil
	}
	t.mu.RLock()
	peer, ok := t.peers[to]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", internalerrors.ErrUnknownPeer, to)
	}
	select {
	case peer.inbox <- RPC{From: t.addr, Payload: payload}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast sends payload to every connected peer. Per-peer send failures
// are joined and returned together; they do not stop the broadcast from
// reaching the remaining peers.
func (t *LocalTransport) Broadcast(ctx context.Context, payload []byte) error {
	var errs []error
	for _, addr := range t.Peers() {
		if err := t.SendMessage(ctx, addr, payload); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	joined := errs[0]
	for _, e := range errs[1:] {
		joined = fmt.Errorf("%w; %w", joined, e)
	}
	return joined
}

// Recv returns the next inbound RPC, blocking until one arrives, ctx is
// canceled, or the transport is closed.
func (t *LocalTransport) Recv(ctx context.Context) (RPC, error) {
	select {
	case rpc, ok := <-t.inbox:
		if !ok {
			return RPC{}, internalerrors.ErrChannelClosed
		}
		return rpc, nil
	case <-ctx.Done():
		return RPC{}, ctx.Err()
	}
}

// Close closes the inbound channel; subsequent Recv calls return
// ErrChannelClosed once drained.
func (t *LocalTransport) Close() {
	close(t.inbox)
}
