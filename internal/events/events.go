// Package events provides an event system for primitive lifecycle and chaos notifications.
package events

import (
	"time"
)

// EventType represents the type of event
type EventType string

const (
	// EventScenarioStart is emitted when a scenario begins driving its primitives
	EventScenarioStart EventType = "scenario_start"
	// EventScenarioComplete is emitted when a scenario has shut everything down
	EventScenarioComplete EventType = "scenario_complete"
	// EventShutdown is emitted when a primitive starts shutting down
	EventShutdown EventType = "shutdown"
	// EventTermination is emitted when a primitive reaches (or fails to reach) termination
	EventTermination EventType = "termination"
	// EventBatchDelivered summarizes the exchange requests completed since the previous one
	EventBatchDelivered EventType = "batch_delivered"
	// EventBroadcastSent is emitted when a broadcaster hands a message to its receivers
	EventBroadcastSent EventType = "broadcast_sent"
	// EventChaosAttack is emitted when a chaos attack is executed
	EventChaosAttack EventType = "chaos_attack"
)

// AttackType represents the type of chaos attack
type AttackType string

const (
	AttackTypeCancel AttackType = "cancel"
	AttackTypeDelay  AttackType = "delay"
)

// Event represents a lifecycle or chaos event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	AttackType    AttackType `json:"attack_type,omitempty"`
	Target        string     `json:"target,omitempty"`
	DelayDuration string     `json:"delay_duration,omitempty"`
	Batches       int        `json:"batches,omitempty"`
	Items         int        `json:"items,omitempty"`
	Receivers     int        `json:"receivers,omitempty"`
	Terminated    bool       `json:"terminated,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// NewScenarioStartEvent creates a scenario start event
func NewScenarioStartEvent(name string) Event {
	return Event{
		Type:      EventScenarioStart,
		Timestamp: time.Now(),
		Source:    name,
	}
}

// NewScenarioCompleteEvent creates a scenario complete event
func NewScenarioCompleteEvent(name string, err error) Event {
	return Event{
		Type:      EventScenarioComplete,
		Timestamp: time.Now(),
		Source:    name,
		Data: EventData{
			Error: errorString(err),
		},
	}
}

// NewShutdownEvent creates a shutdown event for the named primitive
func NewShutdownEvent(source string) Event {
	return Event{
		Type:      EventShutdown,
		Timestamp: time.Now(),
		Source:    source,
	}
}

// NewTerminationEvent creates a termination event; terminated is false when the wait gave up
func NewTerminationEvent(source string, terminated bool, err error) Event {
	return Event{
		Type:      EventTermination,
		Timestamp: time.Now(),
		Source:    source,
		Data: EventData{
			Terminated: terminated,
			Error:      errorString(err),
		},
	}
}

// NewBatchDeliveredEvent creates a batch delivered event covering batches completed batches
func NewBatchDeliveredEvent(source string, batches, items int) Event {
	return Event{
		Type:      EventBatchDelivered,
		Timestamp: time.Now(),
		Source:    source,
		Data: EventData{
			Batches: batches,
			Items:   items,
		},
	}
}

// NewBroadcastSentEvent creates a broadcast sent event
func NewBroadcastSentEvent(source string, receivers int) Event {
	return Event{
		Type:      EventBroadcastSent,
		Timestamp: time.Now(),
		Source:    source,
		Data: EventData{
			Receivers: receivers,
		},
	}
}

// NewChaosAttackEvent creates a new chaos attack event
func NewChaosAttackEvent(target string, attackType AttackType) Event {
	return Event{
		Type:      EventChaosAttack,
		Timestamp: time.Now(),
		Source:    "chaos",
		Data: EventData{
			AttackType: attackType,
			Target:     target,
		},
	}
}

// NewChaosAttackEventWithDelay creates a chaos attack event for delay injection
func NewChaosAttackEventWithDelay(target string, delay time.Duration) Event {
	return Event{
		Type:      EventChaosAttack,
		Timestamp: time.Now(),
		Source:    "chaos",
		Data: EventData{
			AttackType:    AttackTypeDelay,
			Target:        target,
			DelayDuration: delay.String(),
		},
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
