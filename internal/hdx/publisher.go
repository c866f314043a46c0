package hdx

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// PublishedError is one resource error written by FilePublisher.
type PublishedError struct {
	Dataset  string `yaml:"dataset"`
	Resource string `yaml:"resource"`
	Text     string `yaml:"text"`
}

// FilePublisher collects resource errors and writes them as YAML on Close,
// for upload to the data exchange by a separate job.
type FilePublisher struct {
	mu      sync.Mutex
	path    string
	entries []PublishedError
}

// NewFilePublisher returns a publisher writing to path.
func NewFilePublisher(path string) *FilePublisher {
	return &FilePublisher{path: path}
}

// PublishResourceError records text against a dataset resource.
func (p *FilePublisher) PublishResourceError(_ context.Context, dataset, resource, text string) error {
	if dataset == "" {
		return fmt.Errorf("publish error: no dataset")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries, PublishedError{Dataset: dataset, Resource: resource, Text: text})
	return nil
}

// Entries returns the recorded errors sorted by dataset then resource.
func (p *FilePublisher) Entries() []PublishedError {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]PublishedError(nil), p.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Dataset != out[j].Dataset {
			return out[i].Dataset < out[j].Dataset
		}
		return out[i].Resource < out[j].Resource
	})
	return out
}

// Close writes the recorded errors. Nothing is written when there are none.
func (p *FilePublisher) Close() error {
	entries := p.Entries()
	if len(entries) == 0 {
		return nil
	}
	data, err := yaml.Marshal(struct {
		Errors []PublishedError `yaml:"errors"`
	}{Errors: entries})
	if err != nil {
		return fmt.Errorf("encode published errors: %w", err)
	}
	if err := os.WriteFile(p.path, data, 0o644); err != nil {
		return fmt.Errorf("write published errors: %w", err)
	}
	return nil
}
