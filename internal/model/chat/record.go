package chat

import (
	"encoding/json"
	"strings"
	"time"
)

// RecordOrigin tells which side of the exchange produced a record.
type RecordOrigin string

const (
	// OriginRequest marks a bundle sent to the model (user side by default).
	OriginRequest RecordOrigin = "request"
	// OriginResponse marks a bundle received from the model.
	OriginResponse RecordOrigin = "response"
)

// PartKind discriminates the closed set of part variants inside a record.
type PartKind string

const (
	PartSystemPrompt PartKind = "system-prompt"
	PartUserPrompt   PartKind = "user-prompt"
	PartText         PartKind = "text"
	PartThinking     PartKind = "thinking"
	PartToolCall     PartKind = "tool-call"
	PartToolReturn   PartKind = "tool-return"
	PartRetryPrompt  PartKind = "retry-prompt"
)

// FragmentKind discriminates mixed user-prompt content items.
type FragmentKind string

const (
	FragmentText       FragmentKind = "text"
	FragmentAttachment FragmentKind = "attachment"
	FragmentReference  FragmentKind = "reference"
)

// Fragment is one item of a mixed user-prompt payload. Only text fragments
// carry evaluable content; attachments and references are kept for replay
// but never surface in a transcript.
type Fragment struct {
	Kind FragmentKind `json:"kind"`
	Text string       `json:"text,omitempty"`
	URL  string       `json:"url,omitempty"`
	Name string       `json:"name,omitempty"`
}

// Part is one tagged variant inside a record. The Kind field selects which of
// the remaining fields are meaningful; unknown kinds round-trip through JSON
// untouched so that old logs survive schema drift.
type Part struct {
	Kind      PartKind        `json:"part_kind"`
	Content   string          `json:"content,omitempty"`
	Fragments []Fragment      `json:"fragments,omitempty"`
	ToolName  string          `json:"tool_name,omitempty"`
	ToolArgs  json.RawMessage `json:"tool_args,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// TextContent collapses the part payload into plain text. For user prompts
// with mixed fragments only the text fragments are joined, everything else is
// dropped.
func (p Part) TextContent() string {
	if len(p.Fragments) == 0 {
		return p.Content
	}
	texts := make([]string, 0, len(p.Fragments))
	for _, f := range p.Fragments {
		if f.Kind == FragmentText && f.Text != "" {
			texts = append(texts, f.Text)
		}
	}
	return strings.Join(texts, " ")
}

// Record is one exchange step of a conversation: an ordered bundle of parts
// either sent to or received from the model. Records are immutable once
// appended to a session.
type Record struct {
	Origin RecordOrigin `json:"origin"`
	Parts  []Part       `json:"parts"`
}

// DefaultRole maps the record origin to the role a part assumes unless its
// kind overrides it.
func (r Record) DefaultRole() Role {
	if r.Origin == OriginResponse {
		return RoleAssistant
	}
	return RoleUser
}

// UserRecord builds a request record holding a single plain user prompt.
func UserRecord(content string, at time.Time) Record {
	ts := at.UTC()
	return Record{
		Origin: OriginRequest,
		Parts:  []Part{{Kind: PartUserPrompt, Content: content, Timestamp: &ts}},
	}
}

// AssistantRecord builds a response record holding a single text part.
func AssistantRecord(content string, at time.Time) Record {
	ts := at.UTC()
	return Record{
		Origin: OriginResponse,
		Parts:  []Part{{Kind: PartText, Content: content, Timestamp: &ts}},
	}
}

// SystemRecord builds a request record holding a system prompt part.
func SystemRecord(content string, at time.Time) Record {
	ts := at.UTC()
	return Record{
		Origin: OriginRequest,
		Parts:  []Part{{Kind: PartSystemPrompt, Content: content, Timestamp: &ts}},
	}
}
