package tube

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"

	"hoover/pkg/core"
)

// fakeNetwork 记录每次连接尝试，并决定哪些主机可达
type fakeNetwork struct {
	mu          sync.Mutex
	reachable   map[string]bool
	attempts    []string
	authErr     error
	channelErr  error
	declareErr  error
	publishErr  error
	published   []Message
	closed      int
	queueBinds  []string
	lastVHost   string
	lastAddress string
}

func newFakeNetwork(reachable ...string) *fakeNetwork {
	n := &fakeNetwork{reachable: map[string]bool{}}
	for _, h := range reachable {
		n.reachable[h] = true
	}
	return n
}

func (n *fakeNetwork) factory() MessageBroker { return &fakeBroker{net: n} }

type fakeBroker struct {
	net       *fakeNetwork
	connected bool
	closed    bool
}

var errRefused = errors.New("connection refused")

func (b *fakeBroker) Connect(ctx context.Context, ep Endpoint) error {
	b.net.mu.Lock()
	defer b.net.mu.Unlock()
	b.net.attempts = append(b.net.attempts, ep.Host)
	b.net.lastAddress = ep.Address()
	if !b.net.reachable[ep.Host] {
		return &BrokerError{Scope: ScopeLibrary, Text: "dial " + ep.Host, Err: errRefused}
	}
	b.connected = true
	return nil
}

func (b *fakeBroker) Authenticate(ctx context.Context, cred Credentials) error {
	b.net.lastVHost = cred.VHost
	return b.net.authErr
}

func (b *fakeBroker) OpenChannel(ctx context.Context) error { return b.net.channelErr }

func (b *fakeBroker) DeclareExchange(ctx context.Context, name, kind string) error {
	return b.net.declareErr
}

func (b *fakeBroker) BindQueue(ctx context.Context, queue, exchange, routingKey string) error {
	b.net.queueBinds = append(b.net.queueBinds, queue+"->"+exchange+"/"+routingKey)
	return nil
}

func (b *fakeBroker) Publish(ctx context.Context, msg Message) error {
	if b.net.publishErr != nil {
		return b.net.publishErr
	}
	b.net.published = append(b.net.published, msg)
	return nil
}

func (b *fakeBroker) Close() error {
	if !b.closed {
		b.closed = true
		b.net.mu.Lock()
		b.net.closed++
		b.net.mu.Unlock()
	}
	return nil
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func testObject(payload string) *core.DataObject {
	return &core.DataObject{
		Payload:      []byte(payload),
		Size:         int64(len(payload)),
		SizeOriginal: int64(len(payload)),
		Hash:         "0123456789abcdef0123456789abcdef01234567",
		HashOriginal: "0123456789abcdef0123456789abcdef01234567",
	}
}

func testHeader(name string, size int64) core.Header {
	return core.Header{
		Filename: name,
		NodeID:   "nid00042",
		TaskID:   "42-7",
		Type:     "darshan",
		Hash:     "0123456789abcdef0123456789abcdef01234567",
		Size:     size,
	}
}

func brokerConfig(servers ...string) BrokerConfig {
	return BrokerConfig{
		Servers:    servers,
		Port:       5672,
		VHost:      "/hoover",
		Username:   "guest",
		Password:   "guest",
		Exchange:   "hoover",
		RoutingKey: "darshan",
	}
}
