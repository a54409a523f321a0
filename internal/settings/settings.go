// Package settings persists the user's content source and attribute choices
// per mod in a YAML settings file.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"

	"github.com/openra-mobius/mobius-content/internal/logging"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var log = logging.L("settings")

// SourceKey is the reserved key holding the chosen content source.
const SourceKey = "ContentSource"

// Selection is the persisted choice for one mod.
type Selection struct {
	Source     string
	Attributes map[string]string
}

// Attribute returns the stored value for name.
func (s Selection) Attribute(name string) (string, bool) {
	v, ok := s.Attributes[name]
	return v, ok
}

// Clone returns a copy that shares no maps with s.
func (s Selection) Clone() Selection {
	out := Selection{Source: s.Source, Attributes: make(map[string]string, len(s.Attributes))}
	for k, v := range s.Attributes {
		out.Attributes[k] = v
	}
	return out
}

// Store reads and writes selections in a YAML file keyed by mod id.
type Store struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

// NewStore returns a store backed by the file at path.
func NewStore(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Load returns the selection stored for mod. A missing file or mod yields an
// empty selection.
func (s *Store) Load(mod string) (Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return Selection{}, err
	}

	sel := Selection{Attributes: map[string]string{}}
	for k, v := range all[mod] {
		if k == SourceKey {
			sel.Source = v
			continue
		}
		sel.Attributes[k] = v
	}
	return sel, nil
}

// Save replaces the selection stored for mod, keeping other mods untouched.
func (s *Store) Save(mod string, sel Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}

	entry := make(map[string]string, len(sel.Attributes)+1)
	for k, v := range sel.Attributes {
		if k == SourceKey {
			continue
		}
		entry[k] = v
	}
	if sel.Source != "" {
		entry[SourceKey] = sel.Source
	}
	all[mod] = entry

	if err := s.write(all); err != nil {
		return err
	}
	log.Debug("saved content selection", "mod", mod, logging.KeySource, sel.Source)
	return nil
}

func (s *Store) read() (map[string]map[string]string, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]map[string]string{}, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	all := map[string]map[string]string{}
	if err := yaml.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", s.path, err)
	}
	if all == nil {
		all = map[string]map[string]string{}
	}
	return all, nil
}

// write replaces the settings file atomically via a temp file and rename.
func (s *Store) write(all map[string]map[string]string) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	mods := make([]string, 0, len(all))
	for mod := range all {
		mods = append(mods, mod)
	}
	sort.Strings(mods)
	for _, mod := range mods {
		doc.Content = append(doc.Content, scalar(mod), entryNode(all[mod]))
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	tmp, err := afero.TempFile(s.fs, dir, ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}
	return nil
}

// entryNode writes ContentSource first, then attributes by name.
func entryNode(entry map[string]string) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode}
	if v, ok := entry[SourceKey]; ok {
		n.Content = append(n.Content, scalar(SourceKey), scalar(v))
	}
	keys := make([]string, 0, len(entry))
	for k := range entry {
		if k != SourceKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		n.Content = append(n.Content, scalar(k), scalar(entry[k]))
	}
	return n
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}
