package actioncable

import (
	"context"
	"fmt"
	"hash/crc32"
	"reflect"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// PoolConfig configures a Pool of sharded Consumers.
type PoolConfig struct {
	// Size is the number of Consumers in the pool. Defaults to 1 if zero.
	Size int

	// Resolver produces the URL shared by every Consumer in the pool. Each
	// shard dials independently, so a single noisy shard never stalls the
	// others.
	Resolver URLResolver

	DialTimeout time.Duration

	// MessageBufferSize bounds the per-shard buffer feeding the pool's
	// multiplexed message channel; when the buffer is full the incoming
	// message is dropped rather than block the shard's dispatch goroutine.
	MessageBufferSize int

	Logger *zap.Logger
}

// PooledMessage is a Received payload tagged with the identifier it arrived
// on, as delivered by Pool.Messages.
type PooledMessage struct {
	Identifier string
	Message    json.RawMessage
}

// Pool fans a set of channel subscriptions out across several Consumers,
// sharding by identifier so no single socket carries every subscription.
// Useful when a server caps subscriptions per connection or when one socket's
// read loop would otherwise become a throughput bottleneck.
type Pool struct {
	cfg       PoolConfig
	consumers []*Consumer
	shardChan []chan PooledMessage

	mu                sync.RWMutex
	identifierToShard map[string]int

	messageChan chan PooledMessage
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	logger      *zap.Logger
}

// NewPool creates a Pool of cfg.Size Consumers, none of which are connected
// yet; call Start to dial them all.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.Size <= 0 {
		cfg.Size = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		cfg:               cfg,
		consumers:         make([]*Consumer, cfg.Size),
		shardChan:         make([]chan PooledMessage, cfg.Size),
		identifierToShard: make(map[string]int),
		messageChan:       make(chan PooledMessage, cfg.Size*cfg.MessageBufferSize),
		ctx:               ctx,
		cancel:            cancel,
		logger:            cfg.Logger,
	}

	for i := range cfg.Size {
		shardLogger := cfg.Logger.With(zap.Int("shard", i))
		p.consumers[i] = NewConsumer(cfg.Resolver, WithLogger(shardLogger), WithDialTimeout(cfg.DialTimeout))
		p.shardChan[i] = make(chan PooledMessage, cfg.MessageBufferSize)
	}

	return p
}

// Start dials every shard concurrently via errgroup, returning the first
// dial error encountered (if any); shards that did dial successfully remain
// connected regardless. On success it also starts the message multiplexer.
func (p *Pool) Start(ctx context.Context) error {
	p.logger.Info("pool-starting", zap.Int("size", p.cfg.Size))

	g, _ := errgroup.WithContext(ctx)
	for i, consumer := range p.consumers {
		idx, c := i, consumer
		g.Go(func() error {
			if !c.Connect() {
				return fmt.Errorf("shard %d: connect failed", idx)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("pool start: %w", err)
	}

	p.wg.Add(1)
	go p.multiplexMessages()

	PoolActiveConsumers.Set(float64(p.cfg.Size))
	p.logger.Info("pool-started")
	return nil
}

// shardFor deterministically maps identifier to a shard index via CRC32,
// mirroring the hash-sharding scheme a high-throughput subscription fan-out
// uses to spread load across sockets.
func (p *Pool) shardFor(identifier string) int {
	return int(crc32.ChecksumIEEE([]byte(identifier))) % p.cfg.Size
}

// Subscribe creates a subscription on the shard identifier hashes to.
// Every received payload is forwarded onto the pool's multiplexed Messages
// channel; callbacks.Received, if set, is also invoked directly.
func (p *Pool) Subscribe(channel string, params map[string]any, callbacks Callbacks) (*Subscription, error) {
	identifier, err := identifierFor(channelParams(channel, params))
	if err != nil {
		return nil, err
	}

	shard := p.shardFor(identifier)

	p.mu.Lock()
	p.identifierToShard[identifier] = shard
	p.mu.Unlock()

	p.updateDistributionMetrics()

	userReceived := callbacks.Received
	callbacks.Received = func(message json.RawMessage) {
		if userReceived != nil {
			userReceived(message)
		}
		select {
		case p.shardChan[shard] <- PooledMessage{Identifier: identifier, Message: message}:
		default:
			p.logger.Warn("pool-shard-buffer-full-dropping-message",
				zap.Int("shard", shard), zap.String("identifier", identifier))
		}
	}

	return p.consumers[shard].Subscriptions().Create(channel, params, callbacks)
}

// Unsubscribe removes sub from its owning shard's registry.
func (p *Pool) Unsubscribe(sub *Subscription) {
	sub.Unsubscribe()

	p.mu.Lock()
	delete(p.identifierToShard, sub.identifier)
	p.mu.Unlock()
}

// Messages returns the multiplexed stream of Received payloads across every
// shard.
func (p *Pool) Messages() <-chan PooledMessage {
	return p.messageChan
}

// Close disconnects every shard concurrently and waits for the multiplexer
// to exit before closing Messages. The multiplexer stops on cancellation
// without draining; messages still buffered in shard channels are discarded.
func (p *Pool) Close() error {
	p.logger.Info("pool-closing")
	p.cancel()

	var wg sync.WaitGroup
	for _, c := range p.consumers {
		wg.Add(1)
		go func(consumer *Consumer) {
			defer wg.Done()
			consumer.Disconnect()
		}(c)
	}
	wg.Wait()

	p.wg.Wait()
	close(p.messageChan)

	PoolActiveConsumers.Set(0)
	p.logger.Info("pool-closed")
	return nil
}

// multiplexMessages fans in every shard channel plus pool cancellation using
// reflect.Select, since the number of shard channels is only known at
// runtime.
func (p *Pool) multiplexMessages() {
	defer p.wg.Done()

	cases := make([]reflect.SelectCase, len(p.shardChan)+1)
	cases[0] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(p.ctx.Done())}
	for i, ch := range p.shardChan {
		cases[i+1] = reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ch)}
	}

	for {
		chosen, value, ok := reflect.Select(cases)
		if chosen == 0 {
			return
		}
		if !ok {
			cases[chosen].Chan = reflect.ValueOf(make(chan PooledMessage))
			continue
		}

		msg, ok := value.Interface().(PooledMessage)
		if !ok {
			continue
		}

		select {
		case p.messageChan <- msg:
		default:
			p.logger.Warn("pool-output-buffer-full-dropping-message", zap.String("identifier", msg.Identifier))
		}
	}
}

// updateDistributionMetrics records the current per-shard subscription count
// distribution, to catch a skewed hash.
func (p *Pool) updateDistributionMetrics() {
	counts := make(map[int]int)
	p.mu.RLock()
	for _, shard := range p.identifierToShard {
		counts[shard]++
	}
	p.mu.RUnlock()

	for _, count := range counts {
		PoolShardDistribution.Observe(float64(count))
	}
}
