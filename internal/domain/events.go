package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType labels one state transition for notification/telemetry consumers.
type EventType string

const (
	EventEntered         EventType = "ENTERED"          // entry order submitted
	EventFilled          EventType = "FILLED"           // entry filled, position open
	EventStoppedOut      EventType = "STOPPED_OUT"      // stop-loss triggered an exit
	EventTargetHit       EventType = "TARGET_HIT"       // profit target triggered an exit
	EventEmergencyClosed EventType = "EMERGENCY_CLOSED" // close-safety window forced a market sell
	EventResolved        EventType = "RESOLVED"         // market paid out (win or loss)
	EventForcedResolved  EventType = "FORCED_RESOLVED"  // timeout fallback — audit me
	EventAborted         EventType = "ABORTED"          // entry never filled
	// EventEntryUnconfirmed: placement failed without an upstream answer, so
	// there is no order ID to watch. The order may rest on the book — audit me.
	EventEntryUnconfirmed EventType = "ENTRY_UNCONFIRMED"
)

// Event is emitted once per position state transition.
type Event struct {
	Type        EventType
	StrategyTag string
	PositionID  string
	MarketID    string
	Question    string
	Outcome     string
	Price       decimal.Decimal // fill/exit price where applicable
	Shares      decimal.Decimal
	PnL         decimal.Decimal // set on terminal events
	Won         bool            // meaningful on EventResolved only
	At          time.Time
}
