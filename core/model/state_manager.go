// Package model provides the estimator contracts and fitted-state bookkeeping
// shared by every algorithm package.
package model

import (
	"sync"

	"github.com/YuminosukeSato/modelbench/pkg/errors"
)

// StateManager manages the fitted state of a model in a thread-safe manner.
// Estimators hold one by composition.
type StateManager struct {
	mu     sync.RWMutex
	fitted bool

	nFeatures int
	nSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions records the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError if the model has not been fitted.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// CheckFeatures returns a NotFittedError or a DimensionError when X cannot be
// fed to the fitted model.
func (s *StateManager) CheckFeatures(modelName, method string, nFeatures int) error {
	if err := s.RequireFitted(modelName, method); err != nil {
		return err
	}
	want, _ := s.GetDimensions()
	if want != nFeatures {
		return errors.NewDimensionError(modelName+"."+method, want, nFeatures, 1)
	}
	return nil
}
