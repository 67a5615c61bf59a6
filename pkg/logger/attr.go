package logger

import (
	"log/slog"
	"strconv"
)

// Group creates a slog group attribute from the provided attributes.
func Group(name string, attrs ...slog.Attr) slog.Attr {
	return slog.Attr{Key: name, Value: slog.GroupValue(attrs...)}
}

// Errors groups the non-nil errors under "errors", keyed by position.
// It returns an empty Attr, which slog drops, when all of them are nil.
func Errors(errs ...error) slog.Attr {
	as := make([]slog.Attr, 0, len(errs))
	for i, err := range errs {
		if err != nil {
			as = append(as, slog.Any(strconv.Itoa(i), err))
		}
	}
	if len(as) == 0 {
		return slog.Attr{}
	}
	return slog.Attr{Key: "errors", Value: slog.GroupValue(as...)}
}

// Error returns an empty Attr for a nil err.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// optional drops nil identifiers.
func optional(key string, v any) slog.Attr {
	if v == nil {
		return slog.Attr{}
	}
	return slog.Any(key, v)
}

// ReviewableID is "reviewable_id". A nil id is dropped.
func ReviewableID(id any) slog.Attr { return optional("reviewable_id", id) }

// ProviderID is "provider_id". A nil id is dropped.
func ProviderID(id any) slog.Attr { return optional("provider_id", id) }

// ContainerID is "container_id". A nil id is dropped.
func ContainerID(id any) slog.Attr { return optional("container_id", id) }

// ActorID is "actor_id". A nil id is dropped.
func ActorID(id any) slog.Attr { return optional("actor_id", id) }

// Trigger is the fired trigger name.
func Trigger(name string) slog.Attr { return slog.String("trigger", name) }

// FromState is the source state of a transition.
func FromState(s string) slog.Attr { return slog.String("from_state", s) }

// ToState is the destination state.
func ToState(s string) slog.Attr { return slog.String("to_state", s) }

// EventType is the container history event type.
func EventType(t string) slog.Attr { return slog.String("event_type", t) }

// TaskID is "task_id". A nil id is dropped.
func TaskID(id any) slog.Attr { return optional("task_id", id) }

// WorkerID is "worker_id". A nil id is dropped.
func WorkerID(id any) slog.Attr { return optional("worker_id", id) }

// TaskName is the registered handler name.
func TaskName(name string) slog.Attr { return slog.String("task_name", name) }

// Queue is the queue name.
func Queue(name string) slog.Attr { return slog.String("queue", name) }

// RetryCount is how many times the task has failed so far.
func RetryCount(n int) slog.Attr { return slog.Int("retry_count", n) }

// Duration records a duration under the key "duration".
func Duration(d any) slog.Attr { return slog.Any("duration", d) }

// Component records the component name under the key "component".
func Component(name string) slog.Attr { return slog.String("component", name) }
