package model

import "slimforge/internal/params"

// Batch represents a minibatch of features and labels.
type Batch struct {
	Inputs [][]float64
	Labels []int
}

// Model defines the training functionality the trainer relies on.
type Model interface {
	params.Module
	// TrainStep runs one SGD pass over batch and returns the average loss.
	TrainStep(batch Batch) float64
	// Predict returns the most likely class for input.
	Predict(input []float64) int
}
