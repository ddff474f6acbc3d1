// Package catalog loads the speaker and topic catalogs served by the debate stage.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/zhouzirui/z-debate/backend/internal/model/speaker"
	"github.com/zhouzirui/z-debate/backend/internal/model/topic"
)

// ErrUnsupportedFormat 表示目录文件扩展名既不是 .toml 也不是 .json。
var ErrUnsupportedFormat = errors.New("catalog file must be .toml or .json")

// Catalog holds the resolved speakers and topics.
type Catalog struct {
	Speakers []speaker.Speaker
	Topics   []topic.Topic
}

type fileCatalog struct {
	Speakers []speaker.Speaker `json:"speakers" toml:"speakers"`
	Topics   []string          `json:"topics" toml:"topics"`
}

// Default returns the built-in catalog.
func Default() Catalog {
	return Catalog{Speakers: speaker.Seed(), Topics: topic.Seed()}
}

// Load reads path and returns its catalog. An empty path yields Default.
// A section missing from the file keeps the built-in entries for that section.
func Load(path string) (Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	var decoded fileCatalog
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.DecodeFile(path, &decoded); err != nil {
			return Catalog{}, fmt.Errorf("decode catalog file %q: %w", path, err)
		}
	case ".json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog file %q: %w", path, err)
		}
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return Catalog{}, fmt.Errorf("decode catalog file %q: %w", path, err)
		}
	default:
		return Catalog{}, fmt.Errorf("%q: %w", path, ErrUnsupportedFormat)
	}

	out := Default()
	if len(decoded.Speakers) > 0 {
		speakers, err := normalizeSpeakers(decoded.Speakers)
		if err != nil {
			return Catalog{}, fmt.Errorf("catalog file %q: %w", path, err)
		}
		out.Speakers = speakers
	}
	if len(decoded.Topics) > 0 {
		topics, err := normalizeTopics(decoded.Topics)
		if err != nil {
			return Catalog{}, fmt.Errorf("catalog file %q: %w", path, err)
		}
		out.Topics = topics
	}
	return out, nil
}

// Stores wraps the catalog in the in-memory stores used by handlers and services.
func (c Catalog) Stores() (*speaker.MemoryStore, *topic.MemoryStore) {
	return speaker.NewMemoryStore(c.Speakers), topic.NewMemoryStore(c.Topics)
}

func normalizeSpeakers(items []speaker.Speaker) ([]speaker.Speaker, error) {
	seen := make(map[string]struct{}, len(items))
	out := make([]speaker.Speaker, 0, len(items))
	for i, item := range items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return nil, fmt.Errorf("speaker #%d: name is required", i+1)
		}
		if _, dup := seen[item.Name]; dup {
			return nil, fmt.Errorf("speaker %q: duplicate name", item.Name)
		}
		if t := item.Temperature; t != nil && (*t < 0 || *t > 2) {
			return nil, fmt.Errorf("speaker %q: temperature %v must be within [0, 2]", item.Name, *t)
		}
		seen[item.Name] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

func normalizeTopics(items []string) ([]topic.Topic, error) {
	seen := make(map[string]struct{}, len(items))
	out := make([]topic.Topic, 0, len(items))
	for _, item := range items {
		label := strings.TrimSpace(item)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			return nil, fmt.Errorf("topic %q: duplicate label", label)
		}
		seen[label] = struct{}{}
		out = append(out, topic.Topic(label))
	}
	if len(out) == 0 {
		return nil, errors.New("topics must contain at least one non-empty label")
	}
	return out, nil
}
