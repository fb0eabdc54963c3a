/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"sync"

	commport "github.com/allbin/go-commport"
)

// eventStream is a port listener that forwards events to C until stop is
// called. Sends never block past stop, so Close cannot wedge on a reader
// that has gone away.
type eventStream struct {
	C    chan commport.Event
	done chan struct{}
	once sync.Once
}

// subscribe registers an eventStream on p and enables cats.
func subscribe(p commport.Port, cats []commport.Category) (*eventStream, error) {
	s := &eventStream{
		C:    make(chan commport.Event, 64),
		done: make(chan struct{}),
	}
	if err := p.RegisterListener(s); err != nil {
		return nil, err
	}
	for _, c := range cats {
		if err := p.SetNotify(c, true); err != nil {
			s.stop()
			p.UnregisterListener()
			return nil, err
		}
	}
	return s, nil
}

func (s *eventStream) HandleEvent(e commport.Event) error {
	select {
	case s.C <- e:
	case <-s.done:
	}
	return nil
}

func (s *eventStream) stop() {
	s.once.Do(func() { close(s.done) })
}
