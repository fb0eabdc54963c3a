package commport

import (
	"sync"
	"testing"
	"time"

	"github.com/allbin/go-commport/internal/simdriver"
)

// newTestRegistry serves COM1 and COM2 as serial ports and LPT1 as a
// printer port, all backed by the simulator.
func newTestRegistry(t *testing.T) (*Registry, *simdriver.Driver) {
	t.Helper()
	sim := simdriver.New()
	sim.AddSerial("/dev/ttyS0")
	sim.AddSerial("/dev/ttyS1")
	sim.AddParallel("/dev/lp0")

	reg, err := NewRegistry(sim, StaticSource{
		{Name: "COM1", PhysicalID: "/dev/ttyS0", Kind: PortKindSerial},
		{Name: "COM2", PhysicalID: "/dev/ttyS1", Kind: PortKindSerial},
		{Name: "LPT1", PhysicalID: "/dev/lp0", Kind: PortKindParallel},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return reg, sim
}

// fastOptions keep monitor polls short so tests observe stops quickly.
func fastOptions(opts ...Option) []Option {
	return append([]Option{
		WithPollInterval(10 * time.Millisecond),
		WithStopTimeout(time.Second),
	}, opts...)
}

// recorder is a listener that collects every event it receives.
type recorder struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Event, 64)}
}

func (r *recorder) HandleEvent(e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	r.ch <- e
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// next waits for the next event or fails the test.
func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-r.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// none asserts that no event arrives within d.
func (r *recorder) none(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case e := <-r.ch:
		t.Errorf("unexpected event %v", e)
	case <-time.After(d):
	}
}

// faults collects MonitorFaults delivered to a fault handler.
type faults struct {
	ch chan *MonitorFault
}

func newFaults() *faults {
	return &faults{ch: make(chan *MonitorFault, 64)}
}

func (f *faults) handler() FaultHandler {
	return func(mf *MonitorFault) {
		select {
		case f.ch <- mf:
		default:
		}
	}
}

func (f *faults) next(t *testing.T) *MonitorFault {
	t.Helper()
	select {
	case mf := <-f.ch:
		return mf
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fault")
		return nil
	}
}
