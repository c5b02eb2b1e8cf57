package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrDisabled 未配置 broker
var ErrDisabled = errors.New("kafka disabled")

// Client Kafka 客户端，按 topic 复用 writer
type Client struct {
	Brokers     []string
	TopicPrefix string

	mu      sync.Mutex
	writers map[string]*kafka.Writer
}

// NewClient brokersCSV 形如 "k1:9092,k2:9092"
func NewClient(brokersCSV, topicPrefix string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{
		Brokers:     brokers,
		TopicPrefix: topicPrefix,
		writers:     make(map[string]*kafka.Writer),
	}
}

// Enabled 是否启用
func (c *Client) Enabled() bool {
	return c != nil && len(c.Brokers) > 0
}

// TopicName 带前缀的 topic
func (c *Client) TopicName(topic string) string {
	if c.TopicPrefix == "" {
		return topic
	}
	return c.TopicPrefix + "." + topic
}

func (c *Client) writer(topic string) *kafka.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := c.TopicName(topic)
	if w, ok := c.writers[name]; ok {
		return w
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        name,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
	c.writers[name] = w
	return w
}

// Publish 发送已编码的消息，key 决定分区
func (c *Client) Publish(ctx context.Context, topic, key string, value []byte) error {
	if !c.Enabled() {
		return ErrDisabled
	}
	return c.writer(topic).WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: value,
		Time:  time.Now().UTC(),
	})
}

// Close 关闭所有 writer
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, w := range c.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(c.writers, name)
	}
	return errors.Join(errs...)
}
