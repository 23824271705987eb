package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	// Register the WebP decoder; PNG and JPEG come in via the imaging
	// library used elsewhere in this package.
	_ "golang.org/x/image/webp"

	"github.com/sami8890/Sam-pixels/internal/domain"
)

const (
	defaultRemoveBGEndpoint = "https://api.remove.bg/v1.0/removebg"
	removeBGTimeout         = 60 * time.Second

	// maxRemoveBGResponseBytes caps the response we will buffer.
	maxRemoveBGResponseBytes = 50 << 20
)

// removeBGClient calls the remove.bg HTTP API. It only handles the
// background-removal operation type.
type removeBGClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
	recorder CallRecorder
}

// NewRemoveBGClient creates an Executor backed by the remove.bg API.
// Every outbound call is reported to the recorder, which may be nil.
func NewRemoveBGClient(apiKey string, recorder CallRecorder) Executor {
	return &removeBGClient{
		apiKey:   apiKey,
		endpoint: defaultRemoveBGEndpoint,
		client:   &http.Client{Timeout: removeBGTimeout},
		recorder: recorder,
	}
}

// record reports one call to the recorder. Attribution comes from the
// owner tagged on the context by the worker.
func (c *removeBGClient) record(ctx context.Context, call APICall) {
	if c.recorder == nil {
		return
	}
	call.UserID = Owner(ctx)
	call.APIName = "removebg"
	call.Endpoint = c.endpoint
	c.recorder.RecordCall(ctx, call)
}

func (c *removeBGClient) Execute(ctx context.Context, op domain.OperationType, input []byte, _ json.RawMessage) (*Result, error) {
	const opName = "RemoveBGClient.Execute"

	if op != domain.OpBackgroundRemoval {
		return nil, domain.Invalid(opName, fmt.Sprintf("Unsupported operation %q", op))
	}

	// Dimensions come from the local decode; the API reports nothing usable.
	cfg, _, err := image.DecodeConfig(bytes.NewReader(input))
	if err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, opName, "Failed to decode image")
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image_file", "image")
	if err != nil {
		return nil, domain.Internal(err, opName, "Failed to build request")
	}
	if _, err := part.Write(input); err != nil {
		return nil, domain.Internal(err, opName, "Failed to build request")
	}
	if err := form.WriteField("size", "auto"); err != nil {
		return nil, domain.Internal(err, opName, "Failed to build request")
	}
	if err := form.Close(); err != nil {
		return nil, domain.Internal(err, opName, "Failed to build request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, domain.Internal(err, opName, "Failed to build request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Api-Key", c.apiKey)

	requestSize := int64(body.Len())
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		c.record(ctx, APICall{
			RequestSize:  requestSize,
			Duration:     time.Since(start),
			ErrorMessage: err.Error(),
		})
		return nil, domain.Internal(err, opName, "Background removal request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through
	case resp.StatusCode == http.StatusTooManyRequests:
		c.record(ctx, APICall{
			RequestSize:  requestSize,
			Duration:     time.Since(start),
			ErrorMessage: "rate limited (status 429)",
		})
		return nil, domain.RateLimit(opName)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.record(ctx, APICall{
			RequestSize:  requestSize,
			Duration:     time.Since(start),
			ErrorMessage: fmt.Sprintf("image rejected (status %d)", resp.StatusCode),
		})
		return nil, domain.Invalid(opName, fmt.Sprintf("Background removal rejected the image (status %d)", resp.StatusCode))
	default:
		c.record(ctx, APICall{
			RequestSize:  requestSize,
			Duration:     time.Since(start),
			ErrorMessage: fmt.Sprintf("unexpected status %d", resp.StatusCode),
		})
		return nil, domain.Errorf(domain.EINTERNAL, opName, "Background removal API returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoveBGResponseBytes))
	if err != nil {
		c.record(ctx, APICall{
			RequestSize:  requestSize,
			Duration:     time.Since(start),
			ErrorMessage: err.Error(),
		})
		return nil, domain.Internal(err, opName, "Failed to read response")
	}

	c.record(ctx, APICall{
		RequestSize:  requestSize,
		ResponseSize: int64(len(data)),
		Duration:     time.Since(start),
		Success:      true,
	})

	outCfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, domain.Internal(err, opName, "Background removal returned an unreadable image")
	}

	return &Result{
		Data:            data,
		ContentType:     "image/png",
		OriginalWidth:   cfg.Width,
		OriginalHeight:  cfg.Height,
		ProcessedWidth:  outCfg.Width,
		ProcessedHeight: outCfg.Height,
	}, nil
}
