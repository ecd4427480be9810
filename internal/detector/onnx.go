package detector

import (
	"context"
	"fmt"
	"image"
	"log"
	"path/filepath"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultInputSize    = 640
	DefaultIoUThreshold = 0.7
)

// ortEnv manages global ONNX Runtime initialization (process-wide singleton).
var ortEnv struct {
	once sync.Once
	err  error
}

func initORT(libPath string) error {
	ortEnv.once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		ortEnv.err = ort.InitializeEnvironment()
	})
	return ortEnv.err
}

// ONNXConfig configures an ONNXDetector.
type ONNXConfig struct {
	ModelPath string
	// Labels overrides the class names embedded in the model metadata.
	Labels []string
	// RuntimeLibrary is the onnxruntime shared library. Empty means the platform
	// default name next to the model file.
	RuntimeLibrary string
	InputSize      int     // Square input side, used when the model input is dynamic
	IoUThreshold   float64 // NMS overlap threshold
	Threads        int
}

// ONNXDetector runs a YOLOv8 detection model exported to ONNX.
type ONNXDetector struct {
	mu         sync.Mutex // the session is not safe for concurrent Run calls
	session    *ort.DynamicAdvancedSession
	inputName  string
	outputName string
	inputSize  int
	iouThresh  float64
	labels     []string
}

func defaultRuntimeLibrary(modelPath string) string {
	name := "libonnxruntime.so"
	switch runtime.GOOS {
	case "darwin":
		name = "libonnxruntime.dylib"
	case "windows":
		name = "onnxruntime.dll"
	}
	return filepath.Join(filepath.Dir(modelPath), name)
}

// NewONNXDetector loads the model and creates an inference session.
func NewONNXDetector(cfg ONNXConfig) (*ONNXDetector, error) {
	libPath := cfg.RuntimeLibrary
	if libPath == "" {
		libPath = defaultRuntimeLibrary(cfg.ModelPath)
	}
	if err := initORT(libPath); err != nil {
		return nil, fmt.Errorf("onnx: failed to initialize runtime from %s: %w", libPath, err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) == 0 {
		return nil, fmt.Errorf("onnx: expected one image input and at least one output, got %d inputs and %d outputs", len(inputs), len(outputs))
	}

	inputSize, err := resolveInputSize(inputs[0].Dimensions, cfg.InputSize)
	if err != nil {
		return nil, err
	}

	labels := cfg.Labels
	if len(labels) == 0 {
		labels, err = modelLabels(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
	}
	if dims := outputs[0].Dimensions; len(dims) == 3 && dims[1] > 4 && int(dims[1]-4) != len(labels) {
		return nil, fmt.Errorf("onnx: model predicts %d classes but %d labels were given", dims[1]-4, len(labels))
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session options: %w", err)
	}
	defer opts.Destroy()
	if err := setThreads(opts, cfg.Threads); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{inputs[0].Name},
		[]string{outputs[0].Name},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to create session: %w", err)
	}

	iouThresh := cfg.IoUThreshold
	if iouThresh <= 0 {
		iouThresh = DefaultIoUThreshold
	}

	return &ONNXDetector{
		session:    session,
		inputName:  inputs[0].Name,
		outputName: outputs[0].Name,
		inputSize:  inputSize,
		iouThresh:  iouThresh,
		labels:     labels,
	}, nil
}

// resolveInputSize prefers the static input shape [1,3,S,S] of the model.
// threadSetter is the part of *ort.SessionOptions that setThreads needs.
type threadSetter interface {
	SetIntraOpNumThreads(n int) error
	SetInterOpNumThreads(n int) error
}

func setThreads(opts threadSetter, threads int) error {
	if threads <= 0 {
		threads = 4
	}
	if err := opts.SetIntraOpNumThreads(threads); err != nil {
		return fmt.Errorf("onnx: failed to set intra-op threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		return fmt.Errorf("onnx: failed to set inter-op threads: %w", err)
	}
	return nil
}

func resolveInputSize(dims ort.Shape, configured int) (int, error) {
	if len(dims) != 4 || dims[1] != 3 {
		return 0, fmt.Errorf("onnx: expected input shape [1,3,H,W], got %v", dims)
	}
	if dims[2] > 0 && dims[3] > 0 {
		if dims[2] != dims[3] {
			return 0, fmt.Errorf("onnx: only square inputs are supported, got %v", dims)
		}
		return int(dims[2]), nil
	}
	if configured <= 0 {
		configured = DefaultInputSize
	}
	return configured, nil
}

// modelLabels reads the "names" entry that YOLO exports store in the model metadata.
func modelLabels(modelPath string) ([]string, error) {
	meta, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read model metadata: %w", err)
	}
	defer meta.Destroy()

	names, ok, err := meta.LookupCustomMetadataMap("names")
	if err != nil {
		return nil, fmt.Errorf("onnx: failed to read class names from metadata: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("onnx: model has no class names in its metadata, pass a labels file")
	}
	// The value is a flow mapping such as {0: 'drowsy', 1: 'yawn'}, which is valid YAML.
	return ParseLabels([]byte("names: " + names))
}

// Labels returns the class names indexed by class ID.
func (d *ONNXDetector) Labels() []string {
	return append([]string(nil), d.labels...)
}

// InputSize returns the side of the square model input.
func (d *ONNXDetector) InputSize() int {
	return d.inputSize
}

func (d *ONNXDetector) Detect(ctx context.Context, img image.Image, minConfidence float64) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boxed, lb := letterbox(img, d.inputSize)
	raw, shape, err := d.infer(toTensor(boxed))
	if err != nil {
		return nil, err
	}
	if len(shape) != 3 || shape[0] != 1 {
		return nil, fmt.Errorf("onnx: expected output shape [1,4+nc,N], got %v", shape)
	}

	cands, err := decodeOutput(raw, int(shape[1])-4, int(shape[2]), minConfidence)
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	return toDetections(nonMaxSuppression(cands, d.iouThresh), d.labels, lb), nil
}

// infer runs one inference call and returns a copy of the output data and its shape.
func (d *ONNXDetector) infer(input []float32) ([]float32, ort.Shape, error) {
	size := int64(d.inputSize)
	tIn, err := ort.NewTensor(ort.NewShape(1, 3, size, size), input)
	if err != nil {
		return nil, nil, fmt.Errorf("onnx: failed to create input tensor: %w", err)
	}
	defer tIn.Destroy()

	d.mu.Lock()
	defer d.mu.Unlock()

	// A nil output is allocated by the runtime with the shape the model produces.
	outputs := []ort.Value{nil}
	if err := d.session.Run([]ort.Value{tIn}, outputs); err != nil {
		return nil, nil, fmt.Errorf("onnx: inference failed: %w", err)
	}
	defer outputs[0].Destroy()

	tOut, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("onnx: expected a float32 output tensor")
	}
	src := tOut.GetData()
	result := make([]float32, len(src))
	copy(result, src)
	return result, tOut.GetShape().Clone(), nil
}

// Close releases the ONNX session resources.
func (d *ONNXDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	if err != nil {
		log.Printf("Detector: failed to destroy onnx session: %v", err)
	}
	return err
}
