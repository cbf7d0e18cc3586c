package shedconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/toolshed-labs/shedconfig/types"
)

// StateStore persists a processed Config so that a later run can compare
// descriptor checksums and detect drift without re-fetching repositories
type StateStore interface {
	// Save writes the given config to the store, existing state is
	// replaced
	Save(c *Config) error
	// Load reads the previously saved config from the store, the
	// descriptors are rehydrated into their concrete registered types
	Load() (*Config, error)
	// Exists returns true when the store contains saved state
	Exists() bool
	// Clear removes any saved state from the store
	Clear() error
}

// FileStateStore persists config state as a JSON document on the local
// filesystem
type FileStateStore struct {
	stateDir  string
	stateFile string
	types     types.RegisteredTypes
	mu        sync.Mutex
}

// NewFileStateStore creates a state store that writes to
// dir/state.json, the given registered types are used to rehydrate
// descriptors when loading
func NewFileStateStore(dir string, rt types.RegisteredTypes) *FileStateStore {
	if rt == nil {
		rt = types.DefaultTypes()
	}

	return &FileStateStore{
		stateDir:  dir,
		stateFile: filepath.Join(dir, "state.json"),
		types:     rt,
	}
}

func (s *FileStateStore) Save(c *Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.MkdirAll(s.stateDir, os.ModePerm)
	if err != nil {
		return fmt.Errorf("unable to create state directory %s: %s", s.stateDir, err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to serialize config: %s", err)
	}

	// write to a temporary file then rename so that a partially written
	// state file is never observed
	tmp, err := os.CreateTemp(s.stateDir, "state-*.tmp")
	if err != nil {
		return fmt.Errorf("unable to create temporary state file: %s", err)
	}

	_, err = tmp.Write(data)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to write state file: %s", err)
	}

	err = tmp.Close()
	if err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("unable to close state file: %s", err)
	}

	return os.Rename(tmp.Name(), s.stateFile)
}

func (s *FileStateStore) Load() (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.stateFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read state file %s: %s", s.stateFile, err)
	}

	conf := NewConfig()

	var objMap map[string]*json.RawMessage
	err = json.Unmarshal(data, &objMap)
	if err != nil {
		return nil, fmt.Errorf("state file %s is corrupt: %s", s.stateFile, err)
	}

	if objMap["descriptors"] == nil {
		return conf, nil
	}

	var rawDescriptors []*json.RawMessage
	err = json.Unmarshal(*objMap["descriptors"], &rawDescriptors)
	if err != nil {
		return nil, fmt.Errorf("state file %s is corrupt: %s", s.stateFile, err)
	}

	for _, m := range rawDescriptors {
		mm := map[string]interface{}{}
		err := json.Unmarshal(*m, &mm)
		if err != nil {
			return nil, err
		}

		meta, ok := mm["meta"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("descriptor in state file does not contain metadata")
		}

		d, err := s.types.CreateDescriptor(meta["type"].(string), meta["name"].(string))
		if err != nil {
			return nil, err
		}

		descData, _ := json.Marshal(mm)

		err = json.Unmarshal(descData, d)
		if err != nil {
			return nil, err
		}

		if repo, ok := meta["repository"].(string); ok {
			d.Metadata().Repository = repo
		}

		err = conf.addDescriptor(d, nil, nil)
		if err != nil {
			return nil, err
		}
	}

	return conf, nil
}

func (s *FileStateStore) Exists() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.stateFile)
	return err == nil
}

func (s *FileStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.stateFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	return nil
}
