package identity

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	libp2p "github.com/libp2p/go-libp2p"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/p2p/discovery/routing"
)

var log = logging.Logger("nexu/identity")

// DMProtocol and BlobProtocol are nexu's own stream protocols, negotiated
// directly over libp2p streams outside of GossipSub.
const (
	DMProtocol   = protocol.ID("/nexu/dm/0")
	BlobProtocol = protocol.ID("/nexu/blobs/0")
)

// Endpoint is an authenticated transport instance at one peer: a libp2p
// host, its DHT-based discovery helper, and the GossipSub instance every
// topic subscription is created from.
type Endpoint struct {
	id   ID
	host host.Host
	dht  *dht.IpfsDHT
	disc *routing.RoutingDiscovery
	PS   *pubsub.PubSub

	mu       sync.Mutex
	acceptFn map[protocol.ID]network.StreamHandler
}

// Config controls how an Endpoint binds its transport.
type Config struct {
	// Bootstrap is a list of multiaddrs for well-known DHT bootstrap peers.
	Bootstrap []string
	// ListenAddrs overrides the libp2p default listen set, mostly for tests.
	ListenAddrs []string
}

// Bind loads or creates the secret key under dataDir, opens the libp2p
// host, wires the DHT and GossipSub, and returns a ready Endpoint. Bind
// failures are fatal and propagate to the caller; per-connection accept
// errors never do (see Accept).
func Bind(ctx context.Context, dataDir string, cfg Config) (*Endpoint, error) {
	priv, err := LoadOrCreateKey(dataDir)
	if err != nil {
		return nil, err
	}

	p2pKey, err := libp2pKeyFromEd25519(priv)
	if err != nil {
		return nil, fmt.Errorf("identity: convert key: %w", err)
	}

	opts := []libp2p.Option{
		libp2p.Identity(p2pKey),
		libp2p.EnableRelay(),
		libp2p.EnableNATService(),
		libp2p.EnableHolePunching(),
	}
	if len(cfg.ListenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(cfg.ListenAddrs...))
	}

	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("identity: bind libp2p host: %w", err)
	}

	kdht, err := dht.New(ctx, h, dht.Mode(dht.ModeAuto))
	if err != nil {
		return nil, fmt.Errorf("identity: dht init: %w", err)
	}

	for _, addrStr := range cfg.Bootstrap {
		info, err := peer.AddrInfoFromString(addrStr)
		if err != nil {
			log.Warnf("invalid bootstrap addr %s: %v", addrStr, err)
			continue
		}
		if err := h.Connect(ctx, *info); err != nil {
			log.Warnf("bootstrap connect %s failed: %v", info.ID, err)
		}
	}

	if err := kdht.Bootstrap(ctx); err != nil {
		log.Warnf("dht bootstrap: %v", err)
	}

	disc := routing.NewRoutingDiscovery(kdht)

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMaxMessageSize(1<<20), // 1 MiB cap on a single gossip message
		pubsub.WithFloodPublish(true),
		pubsub.WithPeerExchange(true),
	)
	if err != nil {
		return nil, fmt.Errorf("identity: gossipsub init: %w", err)
	}

	ep := &Endpoint{
		id:       PublicID(priv),
		host:     h,
		dht:      kdht,
		disc:     disc,
		PS:       ps,
		acceptFn: make(map[protocol.ID]network.StreamHandler),
	}
	return ep, nil
}

// ID returns this endpoint's long-lived identity.
func (e *Endpoint) ID() ID { return e.id }

// Host exposes the underlying libp2p host for packages that need to
// dial peers directly (gossiptopic); dm and blob go through Accept and
// Connect instead.
func (e *Endpoint) Host() host.Host { return e.host }

// Discovery exposes the DHT-backed routing discovery helper used to
// advertise and find peers interested in a topic.
func (e *Endpoint) Discovery() *routing.RoutingDiscovery { return e.disc }

// Addr returns this endpoint's current address: its id plus every
// multiaddr the host is currently listening on.
func (e *Endpoint) Addr() Addr {
	return Addr{ID: e.id, Direct: e.host.Addrs()}
}

// Accept registers a stream handler for alpn. Handlers run on their own
// goroutine per accepted stream; handler panics/errors are the handler's
// responsibility to recover from so one bad peer never brings down the
// accept loop.
func (e *Endpoint) Accept(alpn protocol.ID, handler network.StreamHandler) {
	e.mu.Lock()
	e.acceptFn[alpn] = handler
	e.mu.Unlock()
	e.host.SetStreamHandler(alpn, handler)
}

// Connect opens a fresh stream to peer at addr using alpn.
func (e *Endpoint) Connect(ctx context.Context, addr Addr, alpn protocol.ID) (network.Stream, error) {
	info, err := addr.AddrInfo()
	if err != nil {
		return nil, err
	}
	if len(info.Addrs) > 0 {
		if err := e.host.Connect(ctx, info); err != nil {
			return nil, fmt.Errorf("identity: connect %s: %w", info.ID, err)
		}
	}
	return e.host.NewStream(ctx, info.ID, alpn)
}

// Close tears down the host and its DHT, cancelling every accept handler
// and causing in-flight streams to observe end-of-stream.
func (e *Endpoint) Close() error {
	_ = e.dht.Close()
	return e.host.Close()
}

func libp2pKeyFromEd25519(priv ed25519.PrivateKey) (crypto.PrivKey, error) {
	k, err := crypto.UnmarshalEd25519PrivateKey(priv)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func peerIDFromEd25519(id ID) (peer.ID, error) {
	pub, err := crypto.UnmarshalEd25519PublicKey(id[:])
	if err != nil {
		return "", err
	}
	return peer.IDFromPublicKey(pub)
}

// GossipWarmUp is a short settle delay observed to help freshly-joined
// peers appear in the mesh before the first publish. It is a heuristic,
// not a correctness requirement, and is a var rather than a const so
// tests can shrink or disable it.
var GossipWarmUp = 100 * time.Millisecond
