package interactions

import "encoding/json"

// Interaction types on the wire.
const (
	TypePing               = 1
	TypeApplicationCommand = 2
)

// Response types on the wire.
const (
	ResponsePong           = 1
	ResponseChannelMessage = 4

	flagEphemeral = 64
)

// Payload is the inbound interaction body.
type Payload struct {
	Type   int          `json:"type" validate:"required,min=1"`
	Data   *CommandData `json:"data,omitempty"`
	Member *Member      `json:"member,omitempty"`
	User   *UserRef     `json:"user,omitempty"`
}

// CommandData carries the invoked command name and bound options.
type CommandData struct {
	Name    string   `json:"name" validate:"required"`
	Options []Option `json:"options,omitempty"`
}

// Option is one name/value argument pair. Values keep their JSON shape.
type Option struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// Member wraps the actor reference for guild-delivered interactions.
type Member struct {
	User UserRef `json:"user"`
}

// UserRef identifies the acting user. The id is decimal text on the wire.
type UserRef struct {
	ID string `json:"id"`
}

// ActorID returns the actor identifier from either the member or user
// location, empty when neither is present.
func (p *Payload) ActorID() string {
	if p.Member != nil {
		return p.Member.User.ID
	}
	if p.User != nil {
		return p.User.ID
	}
	return ""
}

// OptionMap flattens options into a name-keyed map.
func (d *CommandData) OptionMap() map[string]json.RawMessage {
	options := make(map[string]json.RawMessage, len(d.Options))
	for _, opt := range d.Options {
		options[opt.Name] = opt.Value
	}
	return options
}
