package deployments

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is one successful deployment.
type Record struct {
	Contract   string         `json:"contract"`
	Address    common.Address `json:"address"`
	TxHash     common.Hash    `json:"tx_hash"`
	Block      uint64         `json:"block"`
	Deployer   common.Address `json:"deployer"`
	Release    string         `json:"release,omitempty"`
	DeployedAt time.Time      `json:"deployed_at"`
}

type state struct {
	Deployments []Record `json:"deployments"`
}

// Store keeps deployment records in a JSON file, oldest first.
type Store struct {
	path    string
	mu      sync.Mutex
	records []Record
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load reads the file. A missing file is an empty history.
func (s *Store) Load() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.records = nil
			return nil, nil
		}
		return nil, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("deployments %s: %w", s.path, err)
	}
	s.records = st.Deployments
	return append([]Record(nil), s.records...), nil
}

// Append adds rec and rewrites the file atomically.
func (s *Store) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	next := append(append([]Record(nil), s.records...), rec)
	b, err := json.MarshalIndent(state{Deployments: next}, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("deployments rename: %w", err)
	}
	s.records = next
	return nil
}

// Latest returns the most recent record for contract from the last Load or
// Append.
func (s *Store) Latest(contract string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].Contract == contract {
			return s.records[i], true
		}
	}
	return Record{}, false
}
