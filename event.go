package commport

import (
	"fmt"
	"time"
)

// Category is a hardware or software condition a listener can subscribe to.
type Category int

const (
	EventCTS Category = iota + 1
	EventDSR
	EventRingIndicator
	EventCarrierDetect
	EventOverrunError
	EventParityError
	EventFramingError
	EventBreakInterrupt
	EventDataAvailable
	EventOutputBufferEmpty
	// EventError is the parallel port error line. Event.Line says which
	// printer status line changed.
	EventError
)

var categoryNames = map[Category]string{
	EventCTS:               "CTS",
	EventDSR:               "DSR",
	EventRingIndicator:     "RI",
	EventCarrierDetect:     "CD",
	EventOverrunError:      "OE",
	EventParityError:       "PE",
	EventFramingError:      "FE",
	EventBreakInterrupt:    "BI",
	EventDataAvailable:     "DATA_AVAILABLE",
	EventOutputBufferEmpty: "OUTPUT_BUFFER_EMPTY",
	EventError:             "ERROR",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Category(%d)", int(c))
}

// ParseCategory is the inverse of Category.String, case sensitive.
func ParseCategory(s string) (Category, bool) {
	for c, name := range categoryNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// Group is the monitor goroutine a category is polled by.
type Group int

const (
	GroupStatus Group = iota
	GroupData
	GroupError
)

func (g Group) String() string {
	switch g {
	case GroupStatus:
		return "status"
	case GroupData:
		return "data"
	case GroupError:
		return "error"
	default:
		return fmt.Sprintf("Group(%d)", int(g))
	}
}

// groupFor maps a category to its monitor group for the given port kind.
// ok is false when the kind does not support the category.
func groupFor(kind PortKind, c Category) (Group, bool) {
	switch kind {
	case PortKindSerial:
		switch c {
		case EventDataAvailable:
			return GroupData, true
		case EventCTS, EventDSR, EventRingIndicator, EventCarrierDetect,
			EventOverrunError, EventParityError, EventFramingError, EventBreakInterrupt,
			EventOutputBufferEmpty:
			return GroupStatus, true
		}
	case PortKindParallel:
		switch c {
		case EventError, EventOutputBufferEmpty:
			return GroupError, true
		}
	}
	return 0, false
}

// categorySet is a bitset indexed by Category.
type categorySet uint32

func (s categorySet) has(c Category) bool { return s&(1<<uint(c)) != 0 }

func (s *categorySet) set(c Category, on bool) {
	if on {
		*s |= 1 << uint(c)
	} else {
		*s &^= 1 << uint(c)
	}
}

// anyIn reports whether any enabled category belongs to g.
func (s categorySet) anyIn(kind PortKind, g Group) bool {
	for c := EventCTS; c <= EventError; c++ {
		if !s.has(c) {
			continue
		}
		if cg, ok := groupFor(kind, c); ok && cg == g {
			return true
		}
	}
	return false
}

// ErrorLine identifies which printer status line an EventError reports.
type ErrorLine int

const (
	LineNone ErrorLine = iota
	LinePaperOut
	LineBusy
	LineSelected
	LineTimedOut
	LineFault
)

func (l ErrorLine) String() string {
	switch l {
	case LineNone:
		return ""
	case LinePaperOut:
		return "paper-out"
	case LineBusy:
		return "busy"
	case LineSelected:
		return "selected"
	case LineTimedOut:
		return "timed-out"
	case LineFault:
		return "fault"
	default:
		return fmt.Sprintf("ErrorLine(%d)", int(l))
	}
}

// Event is delivered to a port's listener on every observed transition.
type Event struct {
	Source   Port
	Category Category
	OldValue bool
	NewValue bool
	Line     ErrorLine
	Time     time.Time
}

func (e Event) String() string {
	name := e.Category.String()
	if e.Line != LineNone {
		name += "/" + e.Line.String()
	}
	src := "<nil>"
	if e.Source != nil {
		src = e.Source.Name()
	}
	return fmt.Sprintf("%s %s %v->%v", src, name, e.OldValue, e.NewValue)
}

// Listener receives port events. HandleEvent runs synchronously on a
// monitor goroutine while the port's dispatch lock is held, so it must not
// call Close, SetNotify, RegisterListener or UnregisterListener on the same
// port. It may read line state.
type Listener interface {
	HandleEvent(Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Event) error

func (f ListenerFunc) HandleEvent(e Event) error { return f(e) }
