//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"chat-relay/domain"
	"chat-relay/domain/event"
)

// EventSink is the live end of one connected session.
// Consume must be fast and non-blocking for the caller; a sink that cannot
// keep up drops events rather than stalling the core.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
	Close() error
}

// ISessionRegistry maps an authenticated user to at most one live sink.
type ISessionRegistry interface {
	// Register installs the sink for userID and returns the superseded sink,
	// if any. The registry never closes the prior sink itself; the caller
	// decides its fate.
	Register(userID string, sink EventSink) (EventSink, bool)
	Unregister(userID string)
	Lookup(userID string) (EventSink, bool)
	// Others returns a snapshot of every registered sink except userID's.
	Others(userID string) []EventSink
}

// Authenticator turns a bearer credential into an Identity, or fails
// with ErrUnauthenticated before any registry entry is created.
type Authenticator interface {
	Authenticate(credential string) (domain.Identity, error)
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
