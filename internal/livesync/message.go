package livesync

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/recap/internal/models"
	"github.com/desertthunder/recap/internal/shared"
)

// EventType is the data.type discriminator of an inbound push frame.
type EventType string

const (
	TypeAuthenticated EventType = "authenticated"
	TypeProgress      EventType = "progress"
	TypeCompleted     EventType = "completed"
	TypeError         EventType = "error"
	TypeNotification  EventType = "notification"
)

// Event is a decoded push frame. The concrete types are listed in [ParseMessage].
type Event interface {
	Type() EventType
	sealed()
}

// AuthenticatedEvent acknowledges the authenticate frame.
type AuthenticatedEvent struct{}

// ProgressEvent reports a non-terminal task update.
type ProgressEvent struct {
	TaskID   string
	Title    string
	Status   models.TaskStatus
	Progress int
	Stage    *string
}

// CompletedEvent reports that a task finished successfully.
type CompletedEvent struct {
	TaskID string
	Title  string
}

// FailedEvent reports that a task failed. It is sent with type "error".
type FailedEvent struct {
	TaskID string
	Title  string
	Error  string
}

// NotificationEvent announces that a server-side feed entry was created.
type NotificationEvent struct {
	ID       string
	Title    string
	Message  string
	Category string
	Link     string
}

// UnknownEvent carries a type this client does not understand.
type UnknownEvent struct {
	Name string
}

func (AuthenticatedEvent) Type() EventType { return TypeAuthenticated }
func (ProgressEvent) Type() EventType      { return TypeProgress }
func (CompletedEvent) Type() EventType     { return TypeCompleted }
func (FailedEvent) Type() EventType        { return TypeError }
func (NotificationEvent) Type() EventType  { return TypeNotification }
func (e UnknownEvent) Type() EventType     { return EventType(e.Name) }

func (AuthenticatedEvent) sealed() {}
func (ProgressEvent) sealed()      {}
func (CompletedEvent) sealed()     {}
func (FailedEvent) sealed()        {}
func (NotificationEvent) sealed()  {}
func (UnknownEvent) sealed()       {}

// flexibleID decodes an identifier sent either as a JSON string or a JSON number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

// payload is the union of every data body field the server sends.
type payload struct {
	Type         string     `json:"type"`
	TaskID       flexibleID `json:"task_id"`
	Title        string     `json:"title"`
	Status       string     `json:"status"`
	Progress     *float64   `json:"progress"`
	Stage        *string    `json:"stage"`
	Error        string     `json:"error"`
	ErrorMessage string     `json:"error_message"`

	ID       flexibleID `json:"id"`
	Message  string     `json:"message"`
	Category string     `json:"category"`
	Link     string     `json:"link"`
}

// ParseMessage decodes one inbound frame.
//
// The result is one of [AuthenticatedEvent], [ProgressEvent], [CompletedEvent],
// [FailedEvent], [NotificationEvent] or [UnknownEvent]. Frames that cannot be decoded
// wrap [shared.ErrMalformedMessage]; a non-zero code without a usable body wraps
// [shared.ErrApplicationCode].
func ParseMessage(data []byte) (Event, error) {
	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
	}

	appErr := func() error {
		return fmt.Errorf("%w: code %d: %s", shared.ErrApplicationCode, env.Code, env.Message)
	}

	if !env.HasData() {
		if env.Code != 0 {
			return nil, appErr()
		}
		return nil, fmt.Errorf("%w: missing data", shared.ErrMalformedMessage)
	}

	var p payload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		if env.Code != 0 {
			return nil, appErr()
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedMessage, err)
	}
	if p.Type == "" {
		if env.Code != 0 {
			return nil, appErr()
		}
		return nil, fmt.Errorf("%w: missing data.type", shared.ErrMalformedMessage)
	}

	taskID := string(p.TaskID)

	switch EventType(p.Type) {
	case TypeAuthenticated:
		if env.Code != 0 {
			return nil, appErr()
		}
		return AuthenticatedEvent{}, nil
	case TypeProgress:
		if taskID == "" || p.Progress == nil {
			return nil, fmt.Errorf("%w: progress frame needs task_id and progress", shared.ErrMalformedMessage)
		}
		return ProgressEvent{
			TaskID:   taskID,
			Title:    p.Title,
			Status:   models.TaskStatus(p.Status).InFlight(),
			Progress: models.RoundProgress(*p.Progress),
			Stage:    p.Stage,
		}, nil
	case TypeCompleted:
		if taskID == "" {
			return nil, fmt.Errorf("%w: completed frame needs task_id", shared.ErrMalformedMessage)
		}
		return CompletedEvent{TaskID: taskID, Title: p.Title}, nil
	case TypeError:
		if taskID == "" {
			if env.Code != 0 {
				return nil, appErr()
			}
			return nil, fmt.Errorf("%w: error frame needs task_id", shared.ErrMalformedMessage)
		}
		return FailedEvent{TaskID: taskID, Title: p.Title, Error: firstNonEmpty(p.Error, p.ErrorMessage, env.Message)}, nil
	case TypeNotification:
		return NotificationEvent{
			ID:       string(p.ID),
			Title:    p.Title,
			Message:  p.Message,
			Category: p.Category,
			Link:     p.Link,
		}, nil
	default:
		return UnknownEvent{Name: p.Type}, nil
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
