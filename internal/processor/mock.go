package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"image"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

// MockExecutor is a configurable Executor for tests and local development.
type MockExecutor struct {
	// ExecuteFunc, when set, handles every call.
	ExecuteFunc func(ctx context.Context, op domain.OperationType, input []byte, settings json.RawMessage) (*Result, error)

	// Calls records the operation types received, in order.
	Calls []domain.OperationType
}

func (m *MockExecutor) Execute(ctx context.Context, op domain.OperationType, input []byte, settings json.RawMessage) (*Result, error) {
	m.Calls = append(m.Calls, op)
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, op, input, settings)
	}
	return &Result{
		Data:            input,
		ContentType:     "image/png",
		OriginalWidth:   1,
		OriginalHeight:  1,
		ProcessedWidth:  1,
		ProcessedHeight: 1,
	}, nil
}

// passthroughRemoveBG returns the input image unchanged. Used in
// development when no background-removal API key is configured.
type passthroughRemoveBG struct{}

// NewPassthroughRemoveBG creates a background-removal executor that is a
// no-op on pixels but still validates and measures the input.
func NewPassthroughRemoveBG() Executor {
	return passthroughRemoveBG{}
}

func (passthroughRemoveBG) Execute(ctx context.Context, op domain.OperationType, input []byte, settings json.RawMessage) (*Result, error) {
	const opName = "PassthroughRemoveBG.Execute"

	cfg, format, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, opName, "Failed to decode image")
	}

	return &Result{
		Data:            input,
		ContentType:     "image/" + format,
		OriginalWidth:   cfg.Width,
		OriginalHeight:  cfg.Height,
		ProcessedWidth:  cfg.Width,
		ProcessedHeight: cfg.Height,
	}, nil
}
