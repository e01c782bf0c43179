package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/version"
)

// Defaults for the HTTP detector.
const (
	DefaultTimeout             = 30 * time.Second
	DefaultConfidenceThreshold = 0.25
)

// maxResponseSize caps the decoded inference response.
const maxResponseSize = 4 << 20

var (
	// ErrUnavailable is returned when the inference service fails or cannot be reached.
	ErrUnavailable = errors.New("vision service unavailable")
	// ErrEmptyImage is returned for zero-length uploads.
	ErrEmptyImage = errors.New("image is empty")
)

// Detector runs fire detection on one image.
type Detector interface {
	Detect(ctx context.Context, filename string, image []byte) (*fire.Prediction, error)
}

// HTTPDetector is a Detector backed by a remote inference endpoint.
type HTTPDetector struct {
	endpoint   *url.URL
	baseURL    *url.URL
	client     *http.Client
	confidence float64
}

// Option configures HTTPDetector.
type Option func(*HTTPDetector)

// WithTimeout bounds a whole inference request.
func WithTimeout(timeout time.Duration) Option {
	return func(d *HTTPDetector) {
		if timeout > 0 {
			d.client.Timeout = timeout
		}
	}
}

// WithConfidenceThreshold drops boxes below the given confidence.
func WithConfidenceThreshold(threshold float64) Option {
	return func(d *HTTPDetector) {
		if threshold >= 0 && threshold <= 1 {
			d.confidence = threshold
		}
	}
}

// WithPublicBaseURL resolves relative annotated image URLs against base.
func WithPublicBaseURL(base *url.URL) Option {
	return func(d *HTTPDetector) {
		d.baseURL = base
	}
}

// WithHTTPClient replaces the transport client. Mostly for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(d *HTTPDetector) {
		if client != nil {
			d.client = client
		}
	}
}

// NewHTTPDetector returns a detector posting to endpoint.
func NewHTTPDetector(endpoint string, opts ...Option) (*HTTPDetector, error) {
	if endpoint == "" {
		return nil, errors.New("vision endpoint must be provided")
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse vision endpoint: %w", err)
	}

	d := &HTTPDetector{
		endpoint:   parsed,
		client:     &http.Client{Timeout: DefaultTimeout},
		confidence: DefaultConfidenceThreshold,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// inferenceResponse is what the model service returns.
type inferenceResponse struct {
	Detections        []fire.Detection `json:"detections"`
	AnnotatedImageURL string           `json:"annotated_image_url"`
	Message           string           `json:"message"`
}

// Detect uploads the image and converts the response into a prediction.
func (d *HTTPDetector) Detect(ctx context.Context, filename string, image []byte) (*fire.Prediction, error) {
	if len(image) == 0 {
		return nil, ErrEmptyImage
	}

	body, contentType, err := multipartImage(filename, image)
	if err != nil {
		return nil, err
	}

	target := *d.endpoint
	query := target.Query()
	query.Set("conf", strconv.FormatFloat(d.confidence, 'f', -1, 64))
	target.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build inference request: %w", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", version.UserAgent())

	started := time.Now()

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, bytes.TrimSpace(detail))
	}

	var decoded inferenceResponse
	if err = json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}

	prediction := d.toPrediction(filename, &decoded)

	logger.DebugKV(ctx, "Inference finished",
		"filename", filename,
		"detections", len(prediction.Detections),
		"elapsed", time.Since(started))

	return prediction, nil
}

func (d *HTTPDetector) toPrediction(filename string, resp *inferenceResponse) *fire.Prediction {
	detections := make([]fire.Detection, 0, len(resp.Detections))

	for _, det := range resp.Detections {
		if det.Confidence < d.confidence {
			continue
		}

		detections = append(detections, det)
	}

	message := resp.Message
	if message == "" || len(detections) != len(resp.Detections) {
		message = summary(len(detections))
	}

	return &fire.Prediction{
		Filename:          filename,
		Detections:        detections,
		Message:           message,
		AnnotatedImageURL: d.resolve(resp.AnnotatedImageURL),
	}
}

func (d *HTTPDetector) resolve(raw string) string {
	if raw == "" || d.baseURL == nil {
		return raw
	}

	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}

	return d.baseURL.ResolveReference(ref).String()
}

func summary(count int) string {
	if count == 0 {
		return "No fire detected."
	}

	return fmt.Sprintf("Found %d objects.", count)
}

func multipartImage(filename string, image []byte) (io.Reader, string, error) {
	var buf bytes.Buffer

	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	header.Set("Content-Type", http.DetectContentType(image))

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}

	if _, err = part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write image: %w", err)
	}

	if err = w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
