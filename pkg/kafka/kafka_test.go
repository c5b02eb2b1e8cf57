package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClient_ParsesBrokers(t *testing.T) {
	c := NewClient(" k1:9092, ,k2:9092 ", "storefront")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())
	assert.Equal(t, "storefront.order.created", c.TopicName("order.created"))
}

func TestPublish_Disabled(t *testing.T) {
	c := NewClient("", "")
	assert.False(t, c.Enabled())
	assert.Equal(t, "order.created", c.TopicName("order.created"))

	err := c.Publish(context.Background(), "order.created", "k", []byte("{}"))
	assert.ErrorIs(t, err, ErrDisabled)
	assert.NoError(t, c.Close())
}
