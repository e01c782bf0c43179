package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
	"github.com/oshokin/fire-watch/internal/notify"
	"github.com/oshokin/fire-watch/internal/vision"
)

// errNilPrediction is returned by ApplyPrediction for a nil prediction.
var errNilPrediction = errors.New("prediction must be provided")

// HandleImage runs the detector on the image and applies its result.
func (o *Orchestrator) HandleImage(ctx context.Context, filename string, image []byte) (*fire.Prediction, error) {
	if o.detector == nil {
		return nil, fmt.Errorf("%w: no detector configured", vision.ErrUnavailable)
	}

	prediction, err := o.detector.Detect(ctx, filename, image)
	if err != nil {
		return nil, fmt.Errorf("detect fire: %w", err)
	}

	return o.ApplyPrediction(ctx, prediction)
}

// ApplyPrediction records a prediction and, when it shows fire, confirms the
// latch, alerts the dashboards and sends an email. The prediction is returned
// as is.
func (o *Orchestrator) ApplyPrediction(ctx context.Context, prediction *fire.Prediction) (*fire.Prediction, error) {
	if prediction == nil {
		return nil, errNilPrediction
	}

	now := o.now()

	event := prediction.Event(now)
	if err := o.repo.AppendDetection(ctx, &event); err != nil {
		return nil, fmt.Errorf("persist detection: %w", err)
	}

	logger.InfoKV(ctx, "Detection recorded",
		"filename", prediction.Filename,
		"objects", event.ObjectCount,
		"has_fire", event.HasFire)

	if !event.HasFire {
		return prediction, nil
	}

	confidence := prediction.FireConfidence()

	o.confirm(ctx, fire.SourceVision, now, fmt.Sprintf("%s (confidence %.2f)", prediction.Filename, confidence))

	report := o.publisher.Publish(ctx, alert.GroupDashboard, alert.FireConfirmed{
		ImageURL:   prediction.AnnotatedImageURL,
		Confidence: confidence,
		Message:    alert.FireConfirmedText,
		Timestamp:  now,
	})

	logger.WarnKV(ctx, "Fire confirmed by visual analysis",
		"image_url", prediction.AnnotatedImageURL,
		"confidence", confidence,
		"dashboards", report.Delivered)

	subject, body := notify.FireConfirmedEmail(prediction.AnnotatedImageURL, confidence, now)
	o.notify(ctx, subject, body)

	return prediction, nil
}
