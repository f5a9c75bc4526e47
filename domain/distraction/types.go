package distraction

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/study-buddy-go/domain/capture"
	"github.com/soocke/study-buddy-go/domain/geometry"
)

// AlertKind enumerates distraction categories.
type AlertKind int

const (
	PhoneUse AlertKind = iota + 1
	Dozing
)

// String returns the display name used in logs and notifications.
func (k AlertKind) String() string {
	switch k {
	case PhoneUse:
		return "Mobile Phone"
	case Dozing:
		return "Dozing"
	default:
		return "unknown"
	}
}

// Slug is a filesystem friendly form of the kind.
func (k AlertKind) Slug() string {
	switch k {
	case PhoneUse:
		return "mobile_phone"
	case Dozing:
		return "dozing"
	default:
		return "unknown"
	}
}

// Message is the on-screen text shown to the student.
func (k AlertKind) Message() string {
	switch k {
	case PhoneUse:
		return "Put your phone away and focus!"
	case Dozing:
		return "Wake up! You are dozing off!"
	default:
		return ""
	}
}

// AlertEvent is emitted once per debounced distraction.
type AlertEvent struct {
	ID      uuid.UUID
	Kind    AlertKind
	Message string
	Frame   capture.Frame
	At      time.Time
}

// NewAlertEvent builds an event for kind observed on frame at t.
func NewAlertEvent(kind AlertKind, frame capture.Frame, t time.Time) AlertEvent {
	return AlertEvent{ID: uuid.New(), Kind: kind, Message: kind.Message(), Frame: frame, At: t}
}

// Detection is one labeled box reported by an object detector.
type Detection struct {
	Label      string
	Confidence float64
	Box        image.Rectangle
}

// Face carries the landmark mesh of one detected face in pixel coordinates.
type Face struct {
	Landmarks []geometry.Point
}

// ObjectDetector labels objects in a frame.
type ObjectDetector interface {
	Detect(ctx context.Context, frame capture.Frame) ([]Detection, error)
}

// FaceLandmarker locates face landmarks in a frame.
type FaceLandmarker interface {
	Locate(ctx context.Context, frame capture.Frame) ([]Face, error)
}

// EventSink persists and forwards alerts. Record must contain its own
// failures; it never reports them to the caller.
type EventSink interface {
	Record(alert AlertEvent, recipientKey string)
}
