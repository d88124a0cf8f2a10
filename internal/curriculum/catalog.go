// Package curriculum loads the read-only topic catalog. Topics ship
// embedded in the binary and can be extended or overridden from a
// directory of JSON files.
package curriculum

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/ashureev/tutorlabs/internal/domain"
)

//go:embed topics/*.json
var embeddedTopics embed.FS

// ErrTopicNotFound is returned by Get for unknown topic ids.
var ErrTopicNotFound = errors.New("topic not found")

// Summary is the listing view of a topic.
type Summary struct {
	TopicID    string `json:"topic_id"`
	TopicName  string `json:"topic_name"`
	Subject    string `json:"subject"`
	GradeLevel int    `json:"grade_level"`
	TotalSteps int    `json:"total_steps"`
}

// Catalog is an immutable set of topics keyed by id.
type Catalog struct {
	topics map[string]*domain.Topic
}

// Load reads the embedded topics and then every *.json file in dir.
// A topic in dir replaces an embedded topic with the same id. An empty
// dir loads only the embedded topics.
func Load(dir string, logger *slog.Logger) (*Catalog, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Catalog{topics: make(map[string]*domain.Topic)}

	if err := c.loadFS(embeddedTopics, "topics", logger); err != nil {
		return nil, fmt.Errorf("load embedded topics: %w", err)
	}
	if dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return nil, fmt.Errorf("topics dir %q: %w", dir, err)
		}
		if err := c.loadFS(os.DirFS(dir), ".", logger); err != nil {
			return nil, fmt.Errorf("load topics from %s: %w", dir, err)
		}
	}

	logger.Info("Topic catalog loaded", "topics", len(c.topics), "dir", dir)
	return c, nil
}

// New builds a catalog from already-parsed topics.
func New(topics ...*domain.Topic) (*Catalog, error) {
	c := &Catalog{topics: make(map[string]*domain.Topic, len(topics))}
	for _, t := range topics {
		if err := Validate(t); err != nil {
			return nil, err
		}
		c.topics[t.TopicID] = t
	}
	return c, nil
}

func (c *Catalog) loadFS(fsys fs.FS, root string, logger *slog.Logger) error {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		name := path.Join(root, e.Name())
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		var t domain.Topic
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		if t.TopicID == "" {
			t.TopicID = strings.TrimSuffix(e.Name(), ".json")
		}
		if err := Validate(&t); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if _, exists := c.topics[t.TopicID]; exists {
			logger.Info("Topic overridden", "topic_id", t.TopicID, "file", name)
		}
		c.topics[t.TopicID] = &t
	}
	return nil
}

// Validate checks that a topic is usable by a session.
func Validate(t *domain.Topic) error {
	if t == nil {
		return errors.New("nil topic")
	}
	if t.TopicID == "" {
		return errors.New("topic_id is required")
	}
	if t.TopicName == "" {
		return fmt.Errorf("topic %s: topic_name is required", t.TopicID)
	}
	if t.GradeLevel < 1 || t.GradeLevel > 12 {
		return fmt.Errorf("topic %s: grade_level must be 1..12", t.TopicID)
	}
	if len(t.StudyPlan.Steps) == 0 {
		return fmt.Errorf("topic %s: study plan has no steps", t.TopicID)
	}
	for i, step := range t.StudyPlan.Steps {
		if step.StepID != i+1 {
			return fmt.Errorf("topic %s: step %d has step_id %d", t.TopicID, i+1, step.StepID)
		}
		if !step.Type.Valid() {
			return fmt.Errorf("topic %s: step %d has unknown type %q", t.TopicID, step.StepID, step.Type)
		}
		if step.Concept == "" {
			return fmt.Errorf("topic %s: step %d has no concept", t.TopicID, step.StepID)
		}
	}
	return nil
}

// Get returns the topic with the given id.
func (c *Catalog) Get(id string) (*domain.Topic, error) {
	t, ok := c.topics[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	return t, nil
}

// List returns topic summaries ordered by id.
func (c *Catalog) List() []Summary {
	out := make([]Summary, 0, len(c.topics))
	for _, t := range c.topics {
		out = append(out, Summary{
			TopicID:    t.TopicID,
			TopicName:  t.TopicName,
			Subject:    t.Subject,
			GradeLevel: t.GradeLevel,
			TotalSteps: len(t.StudyPlan.Steps),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out
}
