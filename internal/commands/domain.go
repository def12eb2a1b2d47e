// Package commands implements the operator command set shared by the gateway
// worker and the interactions endpoint. Both channels hand it an already
// bound invocation; raw chat-text parsing belongs to the connector layer.
package commands

import (
	"encoding/json"
	"errors"
	"strconv"
)

// ErrUnknownCommand reports an invocation naming no registered command.
var ErrUnknownCommand = errors.New("commands: unknown command")

// Invocation is one logical unit of work: a named command with bound
// arguments, attributed to an actor.
type Invocation struct {
	ID      string
	Name    string
	ActorID int64
	Args    map[string]json.RawMessage
}

// Response is the channel-neutral command result. The webhook handler
// serializes it to the wire format; the gateway connector renders it into
// chat messages.
type Response struct {
	Content   string
	Embeds    []Embed
	Ephemeral bool
}

// Embed is minimal rich content: a title, optional description and fields.
type Embed struct {
	Title       string
	Description string
	Fields      []EmbedField
}

// EmbedField is one name/value pair inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

func (inv Invocation) argString(name string) (string, bool) {
	raw, ok := inv.Args[name]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (inv Invocation) argBool(name string) bool {
	raw, ok := inv.Args[name]
	if !ok {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false
	}
	return b
}

func (inv Invocation) argInt(name string, fallback int) int {
	raw, ok := inv.Args[name]
	if !ok {
		return fallback
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// argUserID accepts a user reference as a JSON number or decimal string;
// both shapes occur on the wire. The second return reports whether a usable
// id was present.
func (inv Invocation) argUserID(name string) (int64, bool) {
	raw, ok := inv.Args[name]
	if !ok {
		return 0, false
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// argValue decodes an arbitrary argument, falling back to the raw text when
// it is not valid JSON.
func (inv Invocation) argValue(name string) (any, bool) {
	raw, ok := inv.Args[name]
	if !ok {
		return nil, false
	}
	var value any
	if err := json.Unmarshal(raw, &value); err == nil {
		if s, isString := value.(string); isString {
			// A string argument may itself carry JSON typed by the operator.
			var nested any
			if err := json.Unmarshal([]byte(s), &nested); err == nil {
				return nested, true
			}
		}
		return value, true
	}
	return string(raw), true
}
