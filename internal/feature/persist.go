package feature

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/opensource-finance/talon/internal/domain"
)

// Save writes the fitted state to disk as a gob blob.
func (s *State) Save(path string) error {
	if !s.Fitted {
		return fmt.Errorf("save transform state: %w", domain.ErrNotTrained)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save transform state: %w", err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(s); err != nil {
		return fmt.Errorf("encode transform state: %w", err)
	}
	return nil
}

// Load reads a fitted state blob written by Save.
func Load(path string) (*State, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load transform state: %w", err)
	}
	defer f.Close()
	var s State
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode transform state: %w", err)
	}
	if !s.Fitted {
		return nil, domain.ErrNotTrained
	}
	return &s, nil
}
