package commport

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/allbin/go-commport/driver"
	"github.com/sirupsen/logrus"
)

// PortKind distinguishes serial from parallel ports.
type PortKind int

const (
	PortKindSerial PortKind = iota
	PortKindParallel
)

func (k PortKind) String() string {
	switch k {
	case PortKindSerial:
		return "SERIAL"
	case PortKindParallel:
		return "PARALLEL"
	default:
		return fmt.Sprintf("PortKind(%d)", int(k))
	}
}

// ParsePortKind accepts "serial" or "parallel" in any case.
func ParsePortKind(s string) (PortKind, error) {
	switch strings.ToLower(s) {
	case "serial", "":
		return PortKindSerial, nil
	case "parallel":
		return PortKindParallel, nil
	}
	return 0, fmt.Errorf("unknown port kind %q (valid: serial, parallel)", s)
}

// KindForPath guesses the kind of a device node from its name.
func KindForPath(path string) PortKind {
	name := filepath.Base(path)
	if strings.HasPrefix(name, "lp") || strings.HasPrefix(name, "parport") {
		return PortKindParallel
	}
	return PortKindSerial
}

// Discovered is one port reported by a DiscoverySource.
type Discovered struct {
	Name       string
	PhysicalID string
	Kind       PortKind
}

// DiscoverySource enumerates the ports a Registry serves.
type DiscoverySource interface {
	Discover() ([]Discovered, error)
}

// StaticSource serves a fixed list.
type StaticSource []Discovered

func (s StaticSource) Discover() ([]Discovered, error) {
	return append([]Discovered(nil), s...), nil
}

// AliasSource maps logical names such as COM1 onto device paths. The kind
// is derived from the path and entries are reported sorted by name.
type AliasSource map[string]string

func (s AliasSource) Discover() ([]Discovered, error) {
	out := make([]Discovered, 0, len(s))
	for name, path := range s {
		out = append(out, Discovered{Name: name, PhysicalID: path, Kind: KindForPath(path)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// MultiSource merges sources in order. The first source to report a name
// wins; later duplicates are dropped.
type MultiSource []DiscoverySource

func (s MultiSource) Discover() ([]Discovered, error) {
	var out []Discovered
	seen := make(map[string]bool)
	for _, src := range s {
		found, err := src.Discover()
		if err != nil {
			return nil, err
		}
		for _, d := range found {
			if seen[d.Name] {
				continue
			}
			seen[d.Name] = true
			out = append(out, d)
		}
	}
	return out, nil
}

// Entry is the registry record of one physical port. Its open flag is only
// changed under the entry's own mutex.
type Entry struct {
	name       string
	physicalID string
	kind       PortKind

	mu   sync.Mutex
	open bool
}

func (e *Entry) Name() string       { return e.name }
func (e *Entry) PhysicalID() string { return e.physicalID }
func (e *Entry) Kind() PortKind     { return e.kind }

func (e *Entry) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// MarkOpen claims the entry. It fails with ErrAlreadyOpen if it is taken.
func (e *Entry) MarkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, e.name)
	}
	e.open = true
	return nil
}

// MarkClosed releases the entry.
func (e *Entry) MarkClosed() {
	e.mu.Lock()
	e.open = false
	e.mu.Unlock()
}

// Registry is the process-wide table of known ports. It is built once by
// the application and is read-only afterwards.
type Registry struct {
	drv     driver.Driver
	log     *logrus.Entry
	entries map[string]*Entry
	order   []*Entry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry logger.
func WithRegistryLogger(l *logrus.Entry) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry discovers ports from src once. Duplicate names are an error.
func NewRegistry(drv driver.Driver, src DiscoverySource, opts ...RegistryOption) (*Registry, error) {
	l := logrus.New()
	l.SetOutput(io.Discard)
	r := &Registry{
		drv:     drv,
		log:     logrus.NewEntry(l),
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.WithField("prefix", "registry")

	found, err := src.Discover()
	if err != nil {
		return nil, fmt.Errorf("port discovery failed: %w", err)
	}
	for _, d := range found {
		if _, dup := r.entries[d.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePort, d.Name)
		}
		e := &Entry{name: d.Name, physicalID: d.PhysicalID, kind: d.Kind}
		r.entries[d.Name] = e
		r.order = append(r.order, e)
		r.log.WithFields(logrus.Fields{
			"port": d.Name,
			"path": d.PhysicalID,
			"kind": d.Kind.String(),
		}).Debug("Port registered")
	}
	return r, nil
}

// Entries returns the entries in discovery order.
func (r *Registry) Entries() []*Entry {
	return append([]*Entry(nil), r.order...)
}

// Reserve looks up an entry by logical name.
func (r *Registry) Reserve(name string) (*Entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return e, nil
}

// Open acquires exclusive ownership of the named port. The result is a
// *SerialPort or a *ParallelPort depending on the entry kind.
func (r *Registry) Open(name string, opts ...Option) (Port, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	e, err := r.Reserve(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSuchPort, err)
	}
	p, err := r.claim(e, cfg)
	if err != nil {
		return nil, err
	}

	switch cp := p.(type) {
	case *SerialPort:
		err = cp.configure()
	case *ParallelPort:
		err = cp.configure()
	}
	if err != nil {
		if cerr := p.Close(); cerr != nil {
			r.log.WithError(cerr).WithField("port", name).Warn("Close after failed configure")
		}
		return nil, err
	}
	r.log.WithField("port", name).WithField("session", p.ID()).Info("Port opened")
	return p, nil
}

// claim opens the driver session while holding the entry, so two callers
// can never both succeed.
func (r *Registry) claim(e *Entry, cfg Config) (Port, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.open {
		return nil, fmt.Errorf("%w: %s", ErrPortInUse, e.name)
	}

	sess, err := r.drv.Open(e.physicalID)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, e.physicalID, err)
	}

	var p Port
	switch e.kind {
	case PortKindSerial:
		if ss, ok := sess.(driver.SerialSession); ok {
			p = newSerialPort(e, ss, cfg)
		}
	case PortKindParallel:
		if ps, ok := sess.(driver.ParallelSession); ok {
			p = newParallelPort(e, ps, cfg)
		}
	}
	if p == nil {
		if cerr := sess.Close(); cerr != nil {
			r.log.WithError(cerr).WithField("port", e.name).Warn("Close after session kind mismatch")
		}
		return nil, fmt.Errorf("%w: %s: driver session is not a %s device", ErrIO, e.name, e.kind)
	}
	e.open = true
	return p, nil
}

// OpenSerial is Open restricted to serial entries.
func (r *Registry) OpenSerial(name string, opts ...Option) (*SerialPort, error) {
	if err := r.checkKind(name, PortKindSerial); err != nil {
		return nil, err
	}
	p, err := r.Open(name, opts...)
	if err != nil {
		return nil, err
	}
	return p.(*SerialPort), nil
}

// OpenParallel is Open restricted to parallel entries.
func (r *Registry) OpenParallel(name string, opts ...Option) (*ParallelPort, error) {
	if err := r.checkKind(name, PortKindParallel); err != nil {
		return nil, err
	}
	p, err := r.Open(name, opts...)
	if err != nil {
		return nil, err
	}
	return p.(*ParallelPort), nil
}

func (r *Registry) checkKind(name string, want PortKind) error {
	e, err := r.Reserve(name)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoSuchPort, err)
	}
	if e.kind != want {
		return fmt.Errorf("%w: %s is a %s port", ErrUnsupportedOperation, name, e.kind)
	}
	return nil
}
