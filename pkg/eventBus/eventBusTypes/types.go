// Package eventBusTypes defines the types and interfaces used by the eventBus package.
// It provides the core data structures for implementing a publish-subscribe pattern.
package eventBusTypes

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventName is a string type that identifies different types of events.
type EventName string

// String returns the string representation of the EventName.
func (en *EventName) String() string {
	return string(*en)
}

// Events published by the quest board after an operation has been committed.
var (
	Event_QuestCreated            EventName = "quest_created"
	Event_QuestDurationIncreased  EventName = "quest_duration_increased"
	Event_QuestRewardIncreased    EventName = "quest_reward_increased"
	Event_QuestObjectiveIncreased EventName = "quest_objective_increased"
	Event_PeriodClosed            EventName = "period_closed"
	Event_PeriodBiasFixed         EventName = "period_bias_fixed"
	Event_MerkleRootAdded         EventName = "merkle_root_added"
	Event_RewardsWithdrawn        EventName = "rewards_withdrawn"
	Event_EmergencyWithdraw       EventName = "emergency_withdraw"
	Event_BoardKilled             EventName = "board_killed"
	Event_BoardUnkilled           EventName = "board_unkilled"
	Event_BlacklistUpdated        EventName = "blacklist_updated"
)

// Event represents a message that is published to the event bus.
// It contains a name that identifies the type of event and arbitrary data.
type Event struct {
	// Id is unique per published event
	Id string
	// Name identifies the type of event
	Name EventName
	// Timestamp is when the event was produced
	Timestamp time.Time
	// Data contains the event payload, which can be of any type
	Data any
}

// NewEvent creates an event with a fresh id.
func NewEvent(name EventName, ts time.Time, data any) *Event {
	return &Event{
		Id:        uuid.New().String(),
		Name:      name,
		Timestamp: ts,
		Data:      data,
	}
}

// ConsumerId is a string type that uniquely identifies an event consumer.
type ConsumerId string

// NewConsumerId returns a random consumer id.
func NewConsumerId() ConsumerId {
	return ConsumerId(uuid.New().String())
}

// Consumer represents a subscriber to the event bus.
// It has a unique ID, a context for cancellation, and a channel for receiving events.
type Consumer struct {
	// Id uniquely identifies the consumer
	Id ConsumerId
	// Context can be used to signal cancellation
	Context context.Context
	// Channel receives events from the event bus
	Channel chan *Event
}

// ConsumerList is a thread-safe collection of consumers.
// It provides methods for adding, removing, and retrieving consumers.
type ConsumerList struct {
	mu        sync.Mutex
	consumers []*Consumer
}

// NewConsumerList creates a new empty ConsumerList.
func NewConsumerList() *ConsumerList {
	return &ConsumerList{
		consumers: make([]*Consumer, 0),
	}
}

// Add adds a consumer to the list in a thread-safe manner.
func (cl *ConsumerList) Add(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.consumers = append(cl.consumers, consumer)
}

// Remove removes a consumer from the list in a thread-safe manner.
// It identifies the consumer by its ID.
func (cl *ConsumerList) Remove(consumer *Consumer) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	for i, c := range cl.consumers {
		if c.Id == consumer.Id {
			cl.consumers = append(cl.consumers[:i], cl.consumers[i+1:]...)
			break
		}
	}
}

// GetAll returns a copy of all consumers in the list in a thread-safe manner.
func (cl *ConsumerList) GetAll() []*Consumer {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	out := make([]*Consumer, len(cl.consumers))
	copy(out, cl.consumers)
	return out
}

// IEventBus defines the interface for an event bus.
// It provides methods for subscribing, unsubscribing, and publishing events.
type IEventBus interface {
	// Subscribe registers a consumer to receive events
	Subscribe(consumer *Consumer)
	// Unsubscribe removes a consumer from the event bus
	Unsubscribe(consumer *Consumer)
	// Publish sends an event to all subscribed consumers
	Publish(event *Event)
}

// QuestEventData is the payload of quest creation and top-up events.
type QuestEventData struct {
	QuestId     uint64
	Creator     common.Address
	Gauge       common.Address
	RewardToken common.Address
	// AddedReward is the escrowed amount, excluding the fee
	AddedReward *big.Int
	AddedFee    *big.Int
	// PeriodIds are the periods created or modified by the operation
	PeriodIds []uint64
}

// PeriodClosedData is the payload of Event_PeriodClosed and Event_PeriodBiasFixed.
type PeriodClosedData struct {
	QuestId        uint64
	PeriodId       uint64
	AdjustedBias   *big.Int
	Distributed    *big.Int
	Withdrawable   *big.Int
	Distributor    common.Address
	CompletionRate string
}

// MerkleRootAddedData is the payload of Event_MerkleRootAdded.
type MerkleRootAddedData struct {
	QuestId     uint64
	PeriodId    uint64
	TotalAmount *big.Int
	Root        common.Hash
}

// WithdrawData is the payload of Event_RewardsWithdrawn and Event_EmergencyWithdraw.
type WithdrawData struct {
	QuestId   uint64
	Recipient common.Address
	Amount    *big.Int
}

// KillData is the payload of Event_BoardKilled and Event_BoardUnkilled.
type KillData struct {
	KillTs uint64
}

// BlacklistData is the payload of Event_BlacklistUpdated.
type BlacklistData struct {
	QuestId uint64
	Added   []common.Address
	Removed []common.Address
}
