package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront_checkout/internal/model"
	"storefront_checkout/internal/repository"
	"storefront_checkout/pkg/kafka"
)

func TestEventPublisher_WritesOutboxRecord(t *testing.T) {
	f := newCheckoutFixture(t)
	order := placeOrder(t, f, "events")

	records, err := repository.NewOutboxRepository(f.db).ListByKey(context.Background(), model.TopicOrderCreated, order.OrderNumber)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].SentAt)

	evt, err := DecodeOrderEvent(&records[0])
	require.NoError(t, err)
	assert.Equal(t, records[0].EventID, evt.EventID)
	assert.Equal(t, f.store.ID, evt.StoreID)
	assert.Equal(t, order.ID, evt.OrderID)
	assert.InDelta(t, 20.0, evt.Total, 0.001)
	assert.Equal(t, model.PaymentMethodWhatsApp, evt.PaymentMethod)
}

func TestStoreWhatsAppNotifier_Handle(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := placeOrder(t, f, "notify")

	core, logs := observer.New(zap.InfoLevel)
	notifier := NewStoreWhatsAppNotifier(
		repository.NewStoreRepository(f.db),
		repository.NewOrderRepository(f.db),
		NewWhatsAppService(),
		zap.New(core),
	)

	assert.True(t, notifier.Handles(model.TopicOrderCreated))
	assert.False(t, notifier.Handles(model.TopicPaymentConfirmed))

	records, err := repository.NewOutboxRepository(f.db).ListByKey(ctx, model.TopicOrderCreated, order.OrderNumber)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.NoError(t, notifier.Handle(ctx, &records[0]))

	entries := logs.FilterMessage("[WhatsApp] 新订单通知已生成").All()
	require.Len(t, entries, 1)
	link := entries[0].ContextMap()["whatsapp_link"].(string)
	assert.True(t, strings.HasPrefix(link, "https://wa.me/5511999999999?text="))

	// 载荷损坏时返回错误，由 relay 重试
	assert.Error(t, notifier.Handle(ctx, &model.OutboxEvent{Topic: model.TopicOrderCreated, Payload: []byte("{")}))
}

func TestKafkaEventHandler_DisabledSkipsAll(t *testing.T) {
	handler := NewKafkaEventHandler(kafka.NewClient("", "storefront"))
	assert.False(t, handler.Handles(model.TopicOrderCreated))
	assert.True(t, NewActivityLogHandler(nil).Handles(model.TopicOrderStatusChanged))
}
