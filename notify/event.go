// Package notify fans catalog events out to logs and game webhooks.
package notify

import (
	"context"
	"fmt"
	"time"

	"mod-catalog/db"
)

// EventKind is also the tag webhooks filter on.
type EventKind string

const (
	EventCreated             EventKind = "created"
	EventStatusChanged       EventKind = "statusChanged"
	EventVerificationRevoked EventKind = "verificationRevoked"
	EventSubmitted           EventKind = "submitted"
	EventApproved            EventKind = "approved"
	EventRejected            EventKind = "rejected"
	EventRemoved             EventKind = "removed"
	EventUpdated             EventKind = "updated"
	EventEditSubmitted       EventKind = "editSubmitted"
	EventEditUpdated         EventKind = "editUpdated"
	EventEditApproved        EventKind = "editApproved"
	EventEditRejected        EventKind = "editRejected"
)

// Event describes something that happened to a project or version. Project
// is always set; Version and Edit are set when the event concerns them.
type Event struct {
	Kind    EventKind
	Project *db.Project
	Version *db.Version
	Edit    *db.EditQueue
	Actor   *db.User
	Reason  string
	At      time.Time
}

// Game returns the game the event belongs to.
func (e Event) Game() string {
	if e.Project == nil {
		return ""
	}
	return e.Project.GameName
}

// Subject names the object the event concerns, e.g. "Foo v1.2.0".
func (e Event) Subject() string {
	name := "unknown project"
	if e.Project != nil {
		name = e.Project.Name
	}
	if e.Version != nil {
		return fmt.Sprintf("%s v%s", name, e.Version.ModVersion)
	}
	return name
}

var kindVerbs = map[EventKind]string{
	EventCreated:             "was created",
	EventStatusChanged:       "changed status",
	EventVerificationRevoked: "lost its verification",
	EventSubmitted:           "was submitted for approval",
	EventApproved:            "was approved",
	EventRejected:            "was rejected",
	EventRemoved:             "was removed",
	EventUpdated:             "was updated",
	EventEditSubmitted:       "has a new edit pending",
	EventEditUpdated:         "has an updated edit pending",
	EventEditApproved:        "had an edit approved",
	EventEditRejected:        "had an edit rejected",
}

// KnownKind reports whether kind is an event the catalog emits.
func KnownKind(kind EventKind) bool {
	_, ok := kindVerbs[kind]
	return ok
}

// Describe renders a one-line human summary of the event.
func Describe(e Event) string {
	verb, ok := kindVerbs[e.Kind]
	if !ok {
		verb = string(e.Kind)
	}
	line := e.Subject() + " " + verb
	if e.Actor != nil {
		line += " by " + e.Actor.Username
	}
	if e.Reason != "" {
		line += ": " + e.Reason
	}
	return line
}

// Sender delivers one event to one kind of sink.
type Sender interface {
	Send(ctx context.Context, e Event) error
}

// Notifier accepts events without waiting for delivery.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}
