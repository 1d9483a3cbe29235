package game

// EventType tags an outbound message.
type EventType string

const (
	EventState      EventType = "state"
	EventError      EventType = "error"
	EventTimerStart EventType = "timer_start"
	EventPlayerJoin EventType = "player_join"
	EventWinner     EventType = "winner"
	EventReset      EventType = "reset"
	EventBetPlaced  EventType = "bet_placed"
	EventStart      EventType = "start"
	EventMultiplier EventType = "multiplier"
	EventCashOut    EventType = "cash_out"
	EventCrash      EventType = "crash"
	EventNewGame    EventType = "new_game"
	EventGameResult EventType = "game_result"
	EventGameClosed EventType = "game_closed"
	EventChat       EventType = "chat"
)

// Event is an outbound message. Payload is marshalled by the hub.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ErrorEvent wraps a rejection for the originating connection.
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Payload: AsError(err)}
}
