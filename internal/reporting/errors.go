// Package reporting collects the data-quality messages raised while a run
// processes rows, and emits them once at the end.
//
// Messages are keyed by (pipeline, identifier), where the identifier is
// usually a dataset name, and stored as "pipeline - identifier - text".
// Identical messages collapse, so a bad value seen on a million rows is
// reported once.
package reporting

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Severity partitions messages.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

// MaxListedValues is how many values AddMultiValued spells out.
const MaxListedValues = 10

// Publisher sends resource-level error text back to the data source.
type Publisher interface {
	PublishResourceError(ctx context.Context, dataset, resource, text string) error
}

type key struct {
	pipeline   string
	identifier string
}

type publishKey struct {
	pipeline   string
	identifier string
	resource   string
}

type options struct {
	severity Severity
	resource string
	publish  bool
}

// Option adjusts how a message is recorded.
type Option func(*options)

// Warning records the message as a warning instead of an error.
func Warning() Option {
	return func(o *options) { o.severity = SeverityWarning }
}

// Resource names the resource the message applies to, for publication.
func Resource(name string) Option {
	return func(o *options) { o.resource = name }
}

// Publish flags the message for publication to the data source.
func Publish() Option {
	return func(o *options) { o.publish = true }
}

// Manager accumulates messages for one run. It is safe for concurrent use
// so the status server can read counts while themes write.
type Manager struct {
	mu        sync.Mutex
	messages  map[Severity]map[key]map[string]struct{}
	published map[publishKey]map[string]struct{}
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		messages: map[Severity]map[key]map[string]struct{}{
			SeverityError:   {},
			SeverityWarning: {},
		},
		published: make(map[publishKey]map[string]struct{}),
	}
}

// Add records "pipeline - identifier - text".
func (m *Manager) Add(pipeline, identifier, text string, opts ...Option) {
	o := options{severity: SeverityError}
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{pipeline: pipeline, identifier: identifier}
	bySeverity := m.messages[o.severity]
	if bySeverity[k] == nil {
		bySeverity[k] = make(map[string]struct{})
	}
	bySeverity[k][fmt.Sprintf("%s - %s - %s", pipeline, identifier, text)] = struct{}{}

	if o.publish {
		pk := publishKey{pipeline: pipeline, identifier: identifier, resource: o.resource}
		if m.published[pk] == nil {
			m.published[pk] = make(map[string]struct{})
		}
		m.published[pk][text] = struct{}{}
	}
}

// AddMissingValue records "{valueType} {value} not found".
func (m *Manager) AddMissingValue(pipeline, identifier, valueType, value string, opts ...Option) {
	m.Add(pipeline, identifier, fmt.Sprintf("%s %s not found", valueType, value), opts...)
}

// AddMultiValued records "{n} {text}: v1, v2" or, past MaxListedValues,
// "{n} {text}. First 10 values: v1, ..., v10". It returns false and records
// nothing when values is empty.
func (m *Manager) AddMultiValued(pipeline, identifier, text string, values []string, opts ...Option) bool {
	if len(values) == 0 {
		return false
	}
	n := len(values)
	suffix := ""
	if n > MaxListedValues {
		values = values[:MaxListedValues]
		suffix = fmt.Sprintf(". First %d values", MaxListedValues)
	}
	m.Add(pipeline, identifier, fmt.Sprintf("%d %s%s: %s", n, text, suffix, strings.Join(values, ", ")), opts...)
	return true
}

// Errors returns every error message, sorted.
func (m *Manager) Errors() []string {
	return m.list(SeverityError)
}

// Warnings returns every warning message, sorted.
func (m *Manager) Warnings() []string {
	return m.list(SeverityWarning)
}

func (m *Manager) list(s Severity) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []string
	for _, msgs := range m.messages[s] {
		for msg := range msgs {
			out = append(out, msg)
		}
	}
	sort.Strings(out)
	return out
}

// Counts returns the number of distinct errors and warnings.
func (m *Manager) Counts() (errs, warnings int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msgs := range m.messages[SeverityError] {
		errs += len(msgs)
	}
	for _, msgs := range m.messages[SeverityWarning] {
		warnings += len(msgs)
	}
	return errs, warnings
}

// Publication is the text to publish for one resource.
type Publication struct {
	Pipeline string
	Dataset  string
	Resource string
	Text     string
}

// Publications returns the flagged messages grouped per resource, each
// group's texts sorted and joined with ", ". Groups are ordered by
// pipeline, dataset, then resource.
func (m *Manager) Publications() []Publication {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Publication, 0, len(m.published))
	for k, texts := range m.published {
		list := make([]string, 0, len(texts))
		for t := range texts {
			list = append(list, t)
		}
		sort.Strings(list)
		out = append(out, Publication{
			Pipeline: k.pipeline,
			Dataset:  k.identifier,
			Resource: k.resource,
			Text:     strings.Join(list, ", "),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Pipeline != b.Pipeline {
			return a.Pipeline < b.Pipeline
		}
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		return a.Resource < b.Resource
	})
	return out
}

// Flush logs errors then warnings, and publishes flagged messages when pub
// is non-nil. Publication failures are logged and do not stop the flush.
func (m *Manager) Flush(ctx context.Context, logger *slog.Logger, pub Publisher) {
	for _, msg := range m.Errors() {
		logger.Error(msg)
	}
	for _, msg := range m.Warnings() {
		logger.Warn(msg)
	}
	if pub == nil {
		return
	}
	for _, p := range m.Publications() {
		if err := pub.PublishResourceError(ctx, p.Dataset, p.Resource, p.Text); err != nil {
			logger.Error("could not write error to dataset",
				"dataset", p.Dataset,
				"resource", p.Resource,
				"error", err,
			)
		}
	}
}
