package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// brokerConfig is what both client directions (consume, produce) need to
// build a sarama configuration.
type brokerConfig struct {
	brokers   []string
	group     string
	clientID  string
	topics    []string
	queueCap  int
	timeout   time.Duration
	overrides map[string]string
}

func newSaramaConfig(cfg brokerConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.ClientID = cfg.clientID
	sc.Consumer.Return.Errors = true
	// Read all messages from the start when the group has no stored offset.
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest
	// Offsets are committed explicitly, only after downstream acceptance.
	sc.Consumer.Offsets.AutoCommit.Enable = false

	for key, val := range cfg.overrides {
		switch key {
		case "version":
			ver, err := sarama.ParseKafkaVersion(val)
			if err != nil {
				return nil, fmt.Errorf("kafka version override: %w", err)
			}
			sc.Version = ver
		case "tls_enabled":
			sc.Net.TLS.Enable = val == "true"
		case "sasl_user":
			sc.Net.SASL.Enable = true
			sc.Net.SASL.User = val
		case "sasl_pass":
			sc.Net.SASL.Enable = true
			sc.Net.SASL.Password = val
		default:
			// Unknown keys are tolerated so a config shared with other
			// clients doesn't fail the engine.
		}
	}
	return sc, nil
}

// saramaConsumer adapts sarama's push-style consumer group to the pull
// surface ReadBuffer needs: claims pump messages into a bounded channel and
// Poll drains it with a timeout.
type saramaConsumer struct {
	client sarama.Client
	group  sarama.ConsumerGroup
	msgs   chan Message
	cancel context.CancelFunc
	done   chan struct{}
	log    *slog.Logger

	mu   sync.Mutex
	sess sarama.ConsumerGroupSession
}

func newSaramaConsumer(cfg brokerConfig, log *slog.Logger) (Consumer, error) {
	sc, err := newSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(cfg.brokers, sc)
	if err != nil {
		return nil, err
	}
	group, err := sarama.NewConsumerGroupFromClient(cfg.group, client)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	queueCap := cfg.queueCap
	if queueCap < 1 {
		queueCap = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &saramaConsumer{
		client: client,
		group:  group,
		msgs:   make(chan Message, queueCap),
		cancel: cancel,
		done:   make(chan struct{}),
		log:    log,
	}
	go c.run(ctx, cfg.topics)
	return c, nil
}

func (c *saramaConsumer) run(ctx context.Context, topics []string) {
	defer close(c.done)
	handler := &claimPump{c: c}
	for {
		if err := c.group.Consume(ctx, topics, handler); err != nil {
			c.log.Warn("consumer group session ended", "err", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

func (c *saramaConsumer) Poll(ctx context.Context, timeout time.Duration) (Message, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-c.msgs:
		return msg, true
	case <-timer.C:
		return Message{}, false
	case <-ctx.Done():
		return Message{}, false
	}
}

func (c *saramaConsumer) CommitOffsets(offsets map[TopicPartition]int64) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("no active broker session (rebalance in progress)")
	}
	for tp, off := range offsets {
		sess.MarkOffset(tp.Topic, tp.Partition, off, "")
	}
	sess.Commit()
	return nil
}

// Close tears the client down, waiting a bounded time for the group loop to
// exit. A timeout is logged and accepted, not escalated.
func (c *saramaConsumer) Close() error {
	c.cancel()
	err := c.group.Close()
	_ = c.client.Close()
	select {
	case <-c.done:
	case <-time.After(cleanupTimeout):
		c.log.Warn("consumer teardown timed out", "timeout", cleanupTimeout)
	}
	return err
}

func (c *saramaConsumer) setSession(sess sarama.ConsumerGroupSession) {
	c.mu.Lock()
	c.sess = sess
	c.mu.Unlock()
}

type claimPump struct {
	c *saramaConsumer
}

func (p *claimPump) Setup(sess sarama.ConsumerGroupSession) error {
	p.c.setSession(sess)
	return nil
}

func (p *claimPump) Cleanup(sarama.ConsumerGroupSession) error {
	p.c.setSession(nil)
	return nil
}

func (p *claimPump) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case p.c.msgs <- fromSarama(msg):
			case <-sess.Context().Done():
				return nil
			}
		case <-sess.Context().Done():
			return nil
		}
	}
}

func fromSarama(msg *sarama.ConsumerMessage) Message {
	out := Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	for _, h := range msg.Headers {
		out.Headers = append(out.Headers, Header{Key: string(h.Key), Value: h.Value})
	}
	return out
}

// saramaProducer is the publish side, bound to a synchronous producer so a
// full outbound queue exerts backpressure on the caller.
type saramaProducer struct {
	sp sarama.SyncProducer
}

func newSaramaProducer(cfg brokerConfig) (Producer, error) {
	sc, err := newSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	if cfg.timeout > 0 {
		sc.Producer.Timeout = cfg.timeout
	}
	sp, err := sarama.NewSyncProducer(cfg.brokers, sc)
	if err != nil {
		return nil, err
	}
	return &saramaProducer{sp: sp}, nil
}

func (p *saramaProducer) SendBatch(topic string, rows [][]byte) error {
	msgs := make([]*sarama.ProducerMessage, len(rows))
	for i, row := range rows {
		msgs[i] = &sarama.ProducerMessage{Topic: topic, Value: sarama.ByteEncoder(row)}
	}
	return p.sp.SendMessages(msgs)
}

func (p *saramaProducer) Close() error { return p.sp.Close() }
