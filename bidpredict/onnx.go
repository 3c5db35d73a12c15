package bidpredict

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

// initOnnxRuntime loads the shared runtime library once per process. Passing
// an empty path keeps onnxruntime_go's platform default.
func initOnnxRuntime(sharedLibPath string) error {
	ortInitOnce.Do(func() {
		if sharedLibPath != "" {
			ort.SetSharedLibraryPath(sharedLibPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXRegressor runs a single-output regression model exported to ONNX.
// Inputs and outputs are float32 on the wire, converted from the float64
// pipeline at the session boundary.
type ONNXRegressor struct {
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	width      int

	mu sync.Mutex
}

// ONNXRegressorConfig locates the exported model and names its graph inputs.
type ONNXRegressorConfig struct {
	ModelPath     string `json:"modelPath"`
	InputName     string `json:"inputName"`
	OutputName    string `json:"outputName"`
	InputWidth    int    `json:"inputWidth"`
	SharedLibPath string `json:"sharedLibPath,omitempty"`
}

// NewONNXRegressor initializes the runtime if needed and opens a session.
func NewONNXRegressor(cfg ONNXRegressorConfig) (*ONNXRegressor, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("onnx: model path is empty")
	}
	if cfg.InputWidth <= 0 {
		return nil, fmt.Errorf("onnx: input width %d", cfg.InputWidth)
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}
	if err := initOnnxRuntime(cfg.SharedLibPath); err != nil {
		return nil, fmt.Errorf("onnx: initialize runtime: %w", err)
	}
	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: open session %s: %w", cfg.ModelPath, err)
	}
	return &ONNXRegressor{
		session:    session,
		inputName:  cfg.InputName,
		outputName: cfg.OutputName,
		width:      cfg.InputWidth,
	}, nil
}

// InputWidth implements Regressor.
func (r *ONNXRegressor) InputWidth() int { return r.width }

// Predict implements Regressor. The session itself is not safe for
// concurrent Run calls, so a mutex serializes them; batching amortizes the
// lock well enough for the service's request sizes.
func (r *ONNXRegressor) Predict(rows [][]float64) ([]float64, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	flat := make([]float32, 0, len(rows)*r.width)
	for i, row := range rows {
		if len(row) != r.width {
			return nil, fmt.Errorf("onnx: row %d has width %d, model expects %d", i, len(row), r.width)
		}
		for _, v := range row {
			flat = append(flat, float32(v))
		}
	}
	input, err := ort.NewTensor(ort.NewShape(int64(len(rows)), int64(r.width)), flat)
	if err != nil {
		return nil, fmt.Errorf("onnx: build input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	r.mu.Lock()
	err = r.session.Run([]ort.Value{input}, outputs)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx: run session: %w", err)
	}
	defer outputs[0].Destroy()

	tensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("onnx: unexpected output tensor type")
	}
	data := tensor.GetData()
	if len(data) != len(rows) {
		return nil, fmt.Errorf("onnx: got %d outputs for %d rows", len(data), len(rows))
	}
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = float64(v)
	}
	return out, nil
}

// Close releases the session. The shared runtime environment stays loaded
// for the life of the process.
func (r *ONNXRegressor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session != nil {
		if err := r.session.Destroy(); err != nil {
			return fmt.Errorf("onnx: destroy session: %w", err)
		}
		r.session = nil
	}
	return nil
}
