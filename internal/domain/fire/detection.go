package fire

import "time"

// FireClass is the detector class name that marks a fire.
const FireClass = "fire"

// Detection is one bounding box returned by the vision model.
type Detection struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Confidence float64 `json:"confidence"`
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
}

// Prediction is the raw result of one vision inference call.
type Prediction struct {
	Filename          string      `json:"filename"`
	Detections        []Detection `json:"detections"`
	Message           string      `json:"message"`
	AnnotatedImageURL string      `json:"annotated_image_url,omitempty"`
}

// HasFire reports whether any detection is of the fire class.
func (p *Prediction) HasFire() bool {
	if p == nil {
		return false
	}

	for _, d := range p.Detections {
		if d.ClassName == FireClass {
			return true
		}
	}

	return false
}

// FireConfidence returns the highest confidence among fire detections, or 0.
func (p *Prediction) FireConfidence() float64 {
	if p == nil {
		return 0
	}

	var best float64

	for _, d := range p.Detections {
		if d.ClassName == FireClass && d.Confidence > best {
			best = d.Confidence
		}
	}

	return best
}

// Event converts the prediction into the record kept in the store.
func (p *Prediction) Event(now time.Time) DetectionEvent {
	return DetectionEvent{
		Filename:          p.Filename,
		AnnotatedImageURL: p.AnnotatedImageURL,
		ObjectCount:       len(p.Detections),
		HasFire:           p.HasFire(),
		Timestamp:         now,
	}
}

// DetectionEvent is the persisted summary of an accepted prediction.
type DetectionEvent struct {
	ID                uint64    `json:"id"`
	Filename          string    `json:"filename"`
	AnnotatedImageURL string    `json:"annotated_image_url"`
	ObjectCount       int       `json:"object_count"`
	HasFire           bool      `json:"has_fire"`
	Timestamp         time.Time `json:"timestamp"`
}
