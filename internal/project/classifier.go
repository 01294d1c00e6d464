package project

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/deploybuilder/internal/events"
	"git.home.luguber.info/inful/deploybuilder/internal/logfields"
)

// IndexFile is the page whose presence marks a directory as a servable static site.
const IndexFile = "index.html"

// Classifier inspects a project root and derives its Type.
type Classifier struct {
	manifest string
	rules    []Rule
	sink     events.Sink
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithManifest sets the manifest file name looked up at the project root.
func WithManifest(name string) Option {
	return func(c *Classifier) {
		if name != "" {
			c.manifest = name
		}
	}
}

// WithRules replaces the manifest rule table.
func WithRules(rules []Rule) Option {
	return func(c *Classifier) {
		if len(rules) > 0 {
			c.rules = rules
		}
	}
}

// WithLegacyOrder switches to LegacyRules when enabled.
func WithLegacyOrder(enabled bool) Option {
	return func(c *Classifier) {
		if enabled {
			c.rules = LegacyRules()
		}
	}
}

// WithSink sets the event sink.
func WithSink(sink events.Sink) Option {
	return func(c *Classifier) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// NewClassifier creates a classifier using DefaultRules and package.json.
func NewClassifier(options ...Option) *Classifier {
	c := &Classifier{
		manifest: DefaultManifest,
		rules:    DefaultRules(),
		sink:     events.Discard,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Rules returns the rule table in evaluation order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns the project type of root. It never fails: an unreadable
// or malformed manifest is reported as a warning and classification falls
// back to the index.html check.
func (c *Classifier) Classify(ctx context.Context, root string) Type {
	t, rule := c.classify(ctx, root)
	c.sink.Emit(ctx, events.New(events.ProjectClassified, events.LevelInfo, "Detected project type",
		logfields.Project(root), logfields.ProjectType(string(t)), slog.String("rule", rule)))
	return t
}

func (c *Classifier) classify(ctx context.Context, root string) (Type, string) {
	manifestPath := filepath.Join(root, c.manifest)
	if exists(manifestPath) {
		m, err := readManifest(manifestPath)
		if err == nil {
			if rule, ok := Evaluate(c.rules, m); ok {
				return rule.Type, rule.Name
			}
		} else {
			c.sink.Emit(ctx, events.New(events.ManifestUnreadable, events.LevelWarn, "Could not parse "+c.manifest,
				logfields.Path(manifestPath), logfields.Error(err)))
		}
	}
	if IsFile(filepath.Join(root, IndexFile)) {
		return Static, "index.html present"
	}
	return Unknown, "no manifest or index.html"
}

func readManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// IsFile reports whether path exists and is not a directory.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
