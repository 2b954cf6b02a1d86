package domain

import "time"

// Command is an obstacle-avoidance decision published by the vision
// supervisor.
type Command string

const (
	CommandMoveForward Command = "MOVE_FORWARD"
	CommandTurnLeft    Command = "TURN_LEFT"
	CommandTurnRight   Command = "TURN_RIGHT"
	CommandStop        Command = "STOP"
)

// Decision is the latest navigation decision for a room. Sequence grows
// monotonically per backend process.
type Decision struct {
	Sequence   int64     `json:"sequence"`
	Room       string    `json:"room"`
	Command    Command   `json:"command"`
	Message    string    `json:"message,omitempty"`
	Confidence *float64  `json:"confidence,omitempty"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Location is a WGS84 coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// RouteGuidance is the next walking step towards the room's destination.
type RouteGuidance struct {
	Summary      string
	Instruction  string
	DistanceText string
	DurationText string
	Destination  Location
}
