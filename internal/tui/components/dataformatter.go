package components

import (
	"fmt"
	"strings"
	"time"
)

// EventRow is one entry of the event table: a port event, or a chunk of
// received data when Data is set.
type EventRow struct {
	Time     time.Time
	Name     string
	Line     string
	OldValue bool
	NewValue bool
	Data     []byte
}

// IsData reports whether the row carries received bytes.
func (r EventRow) IsData() bool { return r.Data != nil }

type DisplayMode struct {
	ShowHex   bool
	ShowASCII bool
}

type DataFormatter struct {
	mode DisplayMode
}

func NewDataFormatter(showHex, showASCII bool) *DataFormatter {
	return &DataFormatter{
		mode: DisplayMode{
			ShowHex:   showHex,
			ShowASCII: showASCII,
		},
	}
}

func (df *DataFormatter) GetDisplayMode() DisplayMode {
	return df.mode
}

func (df *DataFormatter) ToggleHex() {
	df.mode.ShowHex = !df.mode.ShowHex
}

func (df *DataFormatter) ToggleASCII() {
	df.mode.ShowASCII = !df.mode.ShowASCII
}

// Hex renders data as space separated upper case hex bytes.
func Hex(data []byte) string {
	return strings.ToUpper(fmt.Sprintf("% X", data))
}

// ASCII renders printable bytes and replaces the rest with dots.
func ASCII(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 32 && c <= 126 {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// Change renders the transition of an event row.
func Change(r EventRow) string {
	if r.IsData() {
		return "↙ RX"
	}
	return fmt.Sprintf("%s → %s", level(r.OldValue), level(r.NewValue))
}

func level(v bool) string {
	if v {
		return "HIGH"
	}
	return "LOW"
}

// Label is the event name with the printer line appended when present.
func Label(r EventRow) string {
	if r.Line != "" {
		return r.Name + "/" + r.Line
	}
	return r.Name
}

// FormatRow renders a row as a single plain line using the current mode.
func (df *DataFormatter) FormatRow(r EventRow) string {
	parts := []string{"[" + r.Time.Format("15:04:05.000") + "]", Label(r), Change(r)}
	if r.IsData() {
		if df.mode.ShowHex {
			parts = append(parts, "HEX: "+Hex(r.Data))
		}
		if df.mode.ShowASCII {
			parts = append(parts, "ASCII: "+ASCII(r.Data))
		}
		if !df.mode.ShowHex && !df.mode.ShowASCII {
			parts = append(parts, fmt.Sprintf("BYTES: %d", len(r.Data)))
		}
	}
	return strings.Join(parts, " ")
}
