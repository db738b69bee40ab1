package channels

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Registry holds the active classifier and lets it be replaced while
// requests are being served.
type Registry struct {
	current atomic.Pointer[Classifier]
	logger  *slog.Logger
}

// NewRegistry creates a registry serving c.
func NewRegistry(c *Classifier, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{logger: logger}
	r.current.Store(c)
	return r
}

// Classifier returns the active classifier.
func (r *Registry) Classifier() *Classifier {
	return r.current.Load()
}

// Swap installs c as the active classifier.
func (r *Registry) Swap(c *Classifier) {
	r.current.Store(c)
}

// Classify delegates to the active classifier.
func (r *Registry) Classify(domain, query string) Channel {
	return r.Classifier().Classify(domain, query)
}

// Aggregate delegates to the active classifier.
func (r *Registry) Aggregate(rows []Row) []Count {
	return r.Classifier().Aggregate(rows)
}

// ReloadFile loads the rule set at path and installs it. On failure the
// active classifier is left untouched.
func (r *Registry) ReloadFile(path string) error {
	rs, err := LoadRuleSetFile(path)
	if err != nil {
		return err
	}
	c, err := NewClassifier(rs)
	if err != nil {
		return fmt.Errorf("compiling channel rules from %s: %w", path, err)
	}
	r.Swap(c)
	r.logger.Info("Channel rules reloaded", slog.String("path", path))
	return nil
}
