package inference

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var ortInit sync.Once
var ortInitErr error

// initRuntime prepares the shared ONNX runtime environment. The library
// path may be empty, in which case the platform default is used.
func initRuntime(libraryPath string) error {
	ortInit.Do(func() {
		if libraryPath != "" {
			ort.SetSharedLibraryPath(libraryPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// onnxSession wraps a single-input ONNX model.
type onnxSession struct {
	session     *ort.DynamicAdvancedSession
	inputName   string
	inputShape  []int64
	outputNames []string
}

// NewONNXSession loads a model from disk and inspects its input and
// output signature.
func NewONNXSession(modelPath, libraryPath string) (Session, error) {
	if err := initRuntime(libraryPath); err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, fmt.Errorf("reading model signature %s: %w", modelPath, err)
	}
	if len(inputs) != 1 {
		return nil, fmt.Errorf("model %s has %d inputs, expected 1", modelPath, len(inputs))
	}

	outputNames := make([]string, len(outputs))
	for i, o := range outputs {
		outputNames[i] = o.Name
	}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{inputs[0].Name},
		outputNames,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("loading model %s: %w", modelPath, err)
	}

	shape := make([]int64, len(inputs[0].Dimensions))
	copy(shape, inputs[0].Dimensions)
	for i, d := range shape {
		// Dynamic batch dimensions come back as -1.
		if d < 1 {
			shape[i] = 1
		}
	}

	return &onnxSession{
		session:     session,
		inputName:   inputs[0].Name,
		inputShape:  shape,
		outputNames: outputNames,
	}, nil
}

func (s *onnxSession) Run(ctx context.Context, input *Tensor) ([]*Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputs := make([]ort.Value, len(s.outputNames))
	if err := s.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}

	results := make([]*Tensor, len(outputs))
	for i, out := range outputs {
		t, ok := out.(*ort.Tensor[float32])
		if !ok {
			for _, o := range outputs {
				o.Destroy()
			}
			return nil, fmt.Errorf("output %s is not a float32 tensor", s.outputNames[i])
		}
		data := make([]float32, len(t.GetData()))
		copy(data, t.GetData())
		shape := make([]int64, len(t.GetShape()))
		copy(shape, t.GetShape())
		results[i] = &Tensor{Data: data, Shape: shape}
		t.Destroy()
	}
	return results, nil
}

func (s *onnxSession) InputShape() []int64 {
	return s.inputShape
}

func (s *onnxSession) Close() error {
	return s.session.Destroy()
}
