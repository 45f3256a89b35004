package types

import "github.com/ericchu94/foos/internal/engine"

// ClientMessage is a control sent by a viewer. Only the fields its Type needs
// are set:
//
//	AdjustSide       id, delta
//	SetSide          id, points
//	CreatePlayer     name
//	DeletePlayer     id
//	CreateGame       match_id, name, swapped
//	DeleteGame       id
//	AddPlayerToMatch id (player), match_id, spot ("TOP" | "BOTTOM")
type ClientMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	MatchID string `json:"match_id,omitempty"`
	Name    string `json:"name,omitempty"`
	Swapped bool   `json:"swapped,omitempty"`
	Delta   int    `json:"delta,omitempty"`
	Points  *int   `json:"points,omitempty"`
	Spot    string `json:"spot,omitempty"`
}

type ServerMessage struct {
	Type    string        `json:"type"` // "StateSnapshot" | "Error"
	Version int           `json:"version,omitempty"`
	Status  string        `json:"status,omitempty"`
	State   *engine.State `json:"state,omitempty"`
	Error   string        `json:"error,omitempty"`
}
