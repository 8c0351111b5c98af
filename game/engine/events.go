package engine

// EventType names a race state change
type EventType string

const (
	EventRaceStart    EventType = "race_start"
	EventRound        EventType = "round"
	EventGear         EventType = "gear"
	EventRoll         EventType = "roll"
	EventMoved        EventType = "moved"
	EventHitpoints    EventType = "hitpoints"
	EventLap          EventType = "lap"
	EventCurveStop    EventType = "curve_stop"
	EventCollision    EventType = "collision"
	EventEngineDamage EventType = "engine_damage"
	EventRetired      EventType = "retired"
	EventDisconnected EventType = "disconnected"
	EventStandings    EventType = "standings"
)

// Event is emitted for every state change, in the order changes happen
type Event struct {
	Type      EventType  `json:"type"`
	Turn      int        `json:"turn"`
	Seat      int        `json:"seat"`
	Node      int        `json:"node,omitempty"`
	Path      []int      `json:"path,omitempty"`
	Value     int        `json:"value"` // gear, roll, hitpoints, laps to go or curve stops
	Other     int        `json:"other,omitempty"`
	Message   string     `json:"message,omitempty"`
	Standings []Standing `json:"standings,omitempty"`
}

// Notifier receives race events. Notify is called on the scheduler
// goroutine and must not block for long.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(e Event) { f(e) }

// Notifiers fans an event out to several notifiers in order
type Notifiers []Notifier

func (ns Notifiers) Notify(e Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(e)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(Event) {}
