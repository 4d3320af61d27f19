package inference

import (
	"context"
	"fmt"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewTensor validates that the data length matches the shape.
func NewTensor(data []float32, shape ...int64) (*Tensor, error) {
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	if int64(len(data)) != n {
		return nil, fmt.Errorf("tensor data length %d does not match shape %v", len(data), shape)
	}
	return &Tensor{Data: data, Shape: shape}, nil
}

// Elements returns the total element count of the tensor.
func (t *Tensor) Elements() int {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return int(n)
}

// Session defines the interface for a loaded neural network model.
type Session interface {
	// Run executes the model on a single input tensor and returns all
	// output tensors in the model's declared order.
	Run(ctx context.Context, input *Tensor) ([]*Tensor, error)

	// InputShape returns the expected input dimensions, batch first.
	InputShape() []int64

	Close() error
}
