// Package eventBus fans committed quest board events out to in-process consumers.
// The run command subscribes one to write every event to the log.
package eventBus

import (
	"github.com/Layr-Labs/questboard/pkg/eventBus/eventBusTypes"
	"go.uber.org/zap"
)

// EventBus implements a publish-subscribe pattern for distributing events to registered consumers.
type EventBus struct {
	consumers *eventBusTypes.ConsumerList
	logger    *zap.Logger
}

// NewEventBus creates a new EventBus with the provided logger.
func NewEventBus(l *zap.Logger) *EventBus {
	return &EventBus{
		consumers: eventBusTypes.NewConsumerList(),
		logger:    l,
	}
}

// Subscribe registers a consumer to receive events published to the event bus.
func (eb *EventBus) Subscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Add(consumer)
	eb.logger.Sugar().Debugw("Subscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

// Unsubscribe removes a consumer from the event bus.
func (eb *EventBus) Unsubscribe(consumer *eventBusTypes.Consumer) {
	eb.consumers.Remove(consumer)
	eb.logger.Sugar().Infow("Unsubscribed consumer", zap.String("consumerId", string(consumer.Id)))
}

// Publish sends an event to all subscribed consumers without blocking.
// Consumers whose context is done are dropped; full or nil channels are skipped.
func (eb *EventBus) Publish(event *eventBusTypes.Event) {
	eb.logger.Sugar().Debugw("Publishing event",
		zap.String("eventName", event.Name.String()),
		zap.String("eventId", event.Id),
	)
	for _, consumer := range eb.consumers.GetAll() {
		if consumer.Context != nil && consumer.Context.Err() != nil {
			eb.Unsubscribe(consumer)
			continue
		}
		if consumer.Channel == nil {
			eb.logger.Sugar().Debugw("Consumer channel is nil", zap.String("consumerId", string(consumer.Id)))
			continue
		}
		select {
		case consumer.Channel <- event:
		default:
			eb.logger.Sugar().Warnw("Consumer channel is full, dropping event",
				zap.String("consumerId", string(consumer.Id)),
				zap.String("eventName", event.Name.String()),
			)
		}
	}
}
