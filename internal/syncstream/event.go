// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// EventStatus is the kind of a stream event.
type EventStatus string

const (
	StatusInfo     EventStatus = "info"
	StatusProgress EventStatus = "progress"
	StatusSuccess  EventStatus = "success"
	StatusError    EventStatus = "error"
	StatusComplete EventStatus = "complete"
)

// Known reports whether the status is one the consumer acts on.
func (s EventStatus) Known() bool {
	switch s {
	case StatusInfo, StatusProgress, StatusSuccess, StatusError, StatusComplete:
		return true
	}
	return false
}

// Event is one frame of the sync stream.
type Event struct {
	Status  EventStatus `json:"status"`
	Message string      `json:"message"`
	Detail  string      `json:"detail,omitempty"`

	// Files is set on completion. HasFiles distinguishes an empty list
	// from an absent one.
	Files    []string `json:"files,omitempty"`
	HasFiles bool     `json:"-"`
}

// Reason is the human-readable failure text of an error event.
func (e Event) Reason() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Detail != "" {
		return e.Detail
	}
	return "sync failed"
}

var errNotEvent = errors.New("not a sync event")

type rawEvent struct {
	Status  *string         `json:"status"`
	Message json.RawMessage `json:"message"`
	Detail  json.RawMessage `json:"detail"`
	Files   json.RawMessage `json:"files"`
}

// ParseEvent decodes one frame. The line must be a JSON object with a
// string status. message and detail may be strings or null. files may be a
// list of names or a list of objects carrying a name.
func ParseEvent(line []byte) (Event, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Event{}, errNotEvent
	}

	var raw rawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return Event{}, fmt.Errorf("%w: %v", errNotEvent, err)
	}
	if raw.Status == nil {
		return Event{}, fmt.Errorf("%w: missing status", errNotEvent)
	}

	ev := Event{Status: EventStatus(*raw.Status)}
	var err error
	if ev.Message, err = optionalString(raw.Message); err != nil {
		return Event{}, fmt.Errorf("%w: message: %v", errNotEvent, err)
	}
	if ev.Detail, err = optionalString(raw.Detail); err != nil {
		return Event{}, fmt.Errorf("%w: detail: %v", errNotEvent, err)
	}
	if ev.Files, ev.HasFiles, err = parseFiles(raw.Files); err != nil {
		return Event{}, fmt.Errorf("%w: files: %v", errNotEvent, err)
	}
	return ev, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func optionalString(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func parseFiles(raw json.RawMessage) ([]string, bool, error) {
	if isNull(raw) {
		return nil, false, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		var name string
		if err := json.Unmarshal(item, &name); err == nil {
			names = append(names, name)
			continue
		}
		var obj struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, false, err
		}
		if obj.Name == "" {
			obj.Name = obj.ID
		}
		names = append(names, obj.Name)
	}
	return names, true, nil
}
