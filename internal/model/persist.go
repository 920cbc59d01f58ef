package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
)

// Save serializes the trained model.
func (m *GradientBoosted) Save() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, errors.New("model not trained")
	}

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(m.nTrees); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.maxDepth); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.learningRate); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.baseScore); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.trees); err != nil {
		return nil, err
	}
	if err := enc.Encode(m.features); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Load deserializes a trained model.
func (m *GradientBoosted) Load(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)

	if err := dec.Decode(&m.nTrees); err != nil {
		return err
	}
	if err := dec.Decode(&m.maxDepth); err != nil {
		return err
	}
	if err := dec.Decode(&m.learningRate); err != nil {
		return err
	}
	if err := dec.Decode(&m.baseScore); err != nil {
		return err
	}
	if err := dec.Decode(&m.trees); err != nil {
		return err
	}
	if err := dec.Decode(&m.features); err != nil {
		return err
	}

	m.trained = true
	return nil
}

// SaveEnsemble writes an ensemble blob to disk: weights, shared
// schema, then each member's serialized form.
func SaveEnsemble(path string, e *Ensemble) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save classifier: %w", err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	if err := enc.Encode(e.weights); err != nil {
		return fmt.Errorf("encode classifier weights: %w", err)
	}
	if err := enc.Encode(e.features); err != nil {
		return fmt.Errorf("encode classifier schema: %w", err)
	}

	blobs := make([][]byte, len(e.members))
	for i, m := range e.members {
		blob, err := m.Save()
		if err != nil {
			return fmt.Errorf("encode member %d: %w", i, err)
		}
		blobs[i] = blob
	}
	if err := enc.Encode(blobs); err != nil {
		return fmt.Errorf("encode classifier members: %w", err)
	}
	return nil
}

// LoadEnsemble reads an ensemble blob written by SaveEnsemble.
func LoadEnsemble(path string) (*Ensemble, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	defer f.Close()

	dec := gob.NewDecoder(f)
	e := &Ensemble{}
	if err := dec.Decode(&e.weights); err != nil {
		return nil, fmt.Errorf("decode classifier weights: %w", err)
	}
	if err := dec.Decode(&e.features); err != nil {
		return nil, fmt.Errorf("decode classifier schema: %w", err)
	}

	var blobs [][]byte
	if err := dec.Decode(&blobs); err != nil {
		return nil, fmt.Errorf("decode classifier members: %w", err)
	}
	if len(blobs) != len(e.weights) {
		return nil, fmt.Errorf("classifier blob corrupt: %d members, %d weights", len(blobs), len(e.weights))
	}

	e.members = make([]*GradientBoosted, len(blobs))
	for i, blob := range blobs {
		m := New()
		if err := m.Load(blob); err != nil {
			return nil, fmt.Errorf("decode member %d: %w", i, err)
		}
		e.members[i] = m
	}
	return e, nil
}
