package predictor

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXPredictor runs a trained price model through onnxruntime. The model
// takes a (1, windowSize) tensor of recent closes and emits a single
// predicted price.
type ONNXPredictor struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	input      *ort.Tensor[float32]
	output     *ort.Tensor[float32]
	windowSize int
}

var ortInitOnce sync.Once

func initializeORT() error {
	var err error
	ortInitOnce.Do(func() {
		libPath := "/usr/lib/libonnxruntime.so"
		switch runtime.GOOS {
		case "windows":
			libPath = "onnxruntime.dll"
		case "darwin":
			libPath = "libonnxruntime.dylib"
		}
		ort.SetSharedLibraryPath(libPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// NewONNXPredictor loads the model at modelPath. windowSize must match the
// input dimension the model was exported with.
func NewONNXPredictor(modelPath string, windowSize int) (*ONNXPredictor, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", windowSize)
	}
	if err := initializeORT(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	inputShape := ort.NewShape(1, int64(windowSize))
	inputTensor, err := ort.NewTensor(inputShape, make([]float32, windowSize))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, 1)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"input"}, []string{"output"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &ONNXPredictor{
		session:    session,
		input:      inputTensor,
		output:     outputTensor,
		windowSize: windowSize,
	}, nil
}

// WindowSize returns the number of closes the model expects.
func (p *ONNXPredictor) WindowSize() int {
	return p.windowSize
}

// Predict runs one inference. The session reuses a single input tensor, so
// concurrent callers are serialized.
func (p *ONNXPredictor) Predict(ctx context.Context, closes []float64) (float64, error) {
	if len(closes) != p.windowSize {
		return 0, fmt.Errorf("expected %d closes, got %d", p.windowSize, len(closes))
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == nil {
		return 0, fmt.Errorf("predictor is closed")
	}

	data := p.input.GetData()
	for i, c := range closes {
		data[i] = float32(c)
	}

	if err := p.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}

	return float64(p.output.GetData()[0]), nil
}

// Close releases the session and its tensors.
func (p *ONNXPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
	if p.input != nil {
		p.input.Destroy()
		p.input = nil
	}
	if p.output != nil {
		p.output.Destroy()
		p.output = nil
	}
	return nil
}
