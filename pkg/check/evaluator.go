package check

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cgast/envcheck/pkg/events"
	"github.com/cgast/envcheck/pkg/requirement"
	"github.com/cgast/envcheck/pkg/size"
	"github.com/cgast/envcheck/pkg/version"
)

// state tracks whether the list has been loaded and evaluated.
type state int

const (
	unevaluated state = iota
	evaluated
)

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithRegistry replaces the built-in override handlers.
func WithRegistry(r *Registry) Option {
	return func(e *Evaluator) {
		e.handlers = r
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithBus publishes progress events to bus.
func WithBus(bus events.EventBus) Option {
	return func(e *Evaluator) {
		e.bus = bus
	}
}

// Evaluator checks a requirement list against a runtime. Evaluation happens
// once, on first access; later reads return the cached results. The fatal
// flag is raised by Export and never cleared.
type Evaluator struct {
	source   requirement.Source
	runtime  Runtime
	handlers *Registry
	logger   *zap.Logger
	bus      events.EventBus

	mu    sync.Mutex
	state state
	list  []requirement.Requirement
	fatal bool
}

// NewEvaluator creates an evaluator over src and rt.
func NewEvaluator(src requirement.Source, rt Runtime, opts ...Option) *Evaluator {
	e := &Evaluator{
		source:   src,
		runtime:  rt,
		handlers: DefaultRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.handlers == nil {
		e.handlers = NewRegistry()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// List returns the evaluated requirements in source order.
func (e *Evaluator) List() []requirement.Requirement {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensureEvaluated()
	out := make([]requirement.Requirement, len(e.list))
	copy(out, e.list)
	return out
}

// Count returns the number of requirements.
func (e *Evaluator) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ensureEvaluated()
	return len(e.list)
}

// FatalError reports whether an exported blocking requirement failed.
func (e *Evaluator) FatalError() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fatal
}

// ensureEvaluated loads and checks the list once. Callers hold e.mu.
func (e *Evaluator) ensureEvaluated() {
	if e.state == evaluated {
		return
	}
	e.state = evaluated

	list, err := e.load()
	if err != nil {
		e.logger.Warn("requirement list unavailable, continuing with an empty checklist", zap.Error(err))
		e.publish(events.NewEvent(events.EventListError, err.Error()))
		e.list = nil
		return
	}
	e.publish(events.NewEvent(events.EventListLoaded, len(list)))

	start := time.Now()
	e.publish(events.NewEvent(events.EventCheckStart, len(list)))
	for i := range list {
		r := &list[i]
		probed := e.Probe(r.Name)
		r.Result = e.Compare(r.Name, probed, r.Required)
		r.Version = probed

		e.logger.Debug("requirement checked",
			zap.String("name", r.Name),
			zap.String("required", r.Required),
			zap.String("found", probed.String()),
			zap.Stringer("kind", probed.Kind()),
			zap.Bool("result", r.Result),
		)
		ev := events.NewEvent(events.EventCheckCompare, map[string]any{
			"name":   r.Name,
			"result": r.Result,
		})
		ev.Index = i
		e.publish(ev)
	}
	e.list = list

	end := events.NewEvent(events.EventCheckEnd, len(list))
	end.Duration = time.Since(start)
	e.publish(end)
}

func (e *Evaluator) load() ([]requirement.Requirement, error) {
	if e.source == nil {
		return nil, nil
	}
	list, err := e.source.Load()
	if err != nil {
		return nil, err
	}
	if res := requirement.Validate(list); !res.Valid() {
		e.logger.Warn("requirement list has problems", zap.String("errors", res.Error()))
	}
	return list, nil
}

// Probe determines the current value of a named requirement. Precedence:
// override handler, loaded extension, existing function, configuration
// setting. Anything else is null.
func (e *Evaluator) Probe(name string) requirement.Value {
	v := e.probe(name)
	ev := events.NewEvent(events.EventCheckProbe, map[string]any{
		"name":  name,
		"value": v.String(),
		"kind":  v.Kind().String(),
	})
	e.publish(ev)
	return v
}

func (e *Evaluator) probe(name string) requirement.Value {
	if e.runtime == nil {
		return requirement.Null()
	}
	if h, ok := e.handlers.Lookup(name); ok && h.Probe != nil {
		return h.Probe(e.runtime)
	}
	if e.runtime.ExtensionLoaded(name) {
		return requirement.Bool(true)
	}
	if e.runtime.FunctionExists(name) {
		return requirement.Bool(true)
	}
	if v, ok := e.runtime.Setting(name); ok {
		return normalizeSetting(v)
	}
	return requirement.Null()
}

// Compare decides whether probed satisfies required. Precedence: override
// comparator, PHP size shorthand, byte size with unit, dotted version,
// loose equality.
func (e *Evaluator) Compare(name string, probed requirement.Value, required string) bool {
	if h, ok := e.handlers.Lookup(name); ok && h.Compare != nil {
		return h.Compare(probed, required)
	}
	return compareGeneric(probed, required)
}

func compareGeneric(probed requirement.Value, required string) bool {
	found := probed.String()
	switch {
	case size.IsPHPSize(required):
		return size.DecodePHPSize(required) <= size.DecodePHPSize(found)
	case size.IsSize(required):
		return size.DecodeSize(required) <= size.DecodeSize(found)
	case version.IsDotted(required):
		return version.LessOrEqual(required, found)
	default:
		return looseEqual(required, probed)
	}
}

// looseEqual compares a required literal to a probed value the way the
// runtime's == does: against a flag the literal's truthiness counts, null
// equals only the empty string, and numeric strings compare as numbers.
func looseEqual(required string, probed requirement.Value) bool {
	switch probed.Kind() {
	case requirement.KindBool:
		b, _ := probed.BoolValue()
		return requirement.TruthyString(required) == b
	case requirement.KindNull:
		return required == ""
	}

	found := probed.String()
	if required == found {
		return true
	}
	x, errX := parseNumeric(required)
	y, errY := parseNumeric(found)
	return errX == nil && errY == nil && x == y
}

// numericPattern accepts what the runtime considers a numeric string.
var numericPattern = regexp.MustCompile(`^\s*[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?\s*$`)

func parseNumeric(s string) (float64, error) {
	if !numericPattern.MatchString(s) {
		return 0, fmt.Errorf("not numeric: %q", s)
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// normalizeSetting maps ""/"off"/0 to false and "on"/1 to true. A switch
// turned off in php.ini is reported as "".
func normalizeSetting(v string) requirement.Value {
	lower := strings.ToLower(v)
	n, err := parseNumeric(v)
	numeric := err == nil
	switch {
	case lower == "" || lower == "off" || (numeric && n == 0):
		return requirement.Bool(false)
	case lower == "on" || (numeric && n == 1):
		return requirement.Bool(true)
	}
	return requirement.String(v)
}

func (e *Evaluator) publish(ev events.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
