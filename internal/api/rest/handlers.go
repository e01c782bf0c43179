package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/logger"
)

// actorHeader carries the operator identity for audited changes.
const actorHeader = "X-Actor"

// rootMessage is returned by GET /.
const rootMessage = "Fire detection API is running"

// sensorRequest is the body of POST /sensors.
type sensorRequest struct {
	Temperature *float64   `json:"temperature"`
	Humidity    *float64   `json:"humidity"`
	SmokeLevel  *float64   `json:"smoke_level"`
	Timestamp   *time.Time `json:"timestamp"`
}

func (s *sensorRequest) reading() (fire.SensorReading, error) {
	if s.Temperature == nil || s.Humidity == nil || s.SmokeLevel == nil {
		return fire.SensorReading{}, fmt.Errorf("%w: temperature, humidity and smoke_level are required", fire.ErrInvalidReading)
	}

	reading := fire.SensorReading{
		Temperature: *s.Temperature,
		Humidity:    *s.Humidity,
		SmokeLevel:  *s.SmokeLevel,
	}

	if s.Timestamp != nil {
		reading.Timestamp = *s.Timestamp
	}

	return reading, nil
}

func (h *handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "online",
		"message": rootMessage,
	})
}

func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	group, err := alert.ParseGroup(chi.URLParam(r, "client_type"))
	if err != nil {
		writeError(w, r, err)

		return
	}

	h.subscriptions.Serve(w, r, group)
}

func (h *handler) ingestReading(w http.ResponseWriter, r *http.Request) {
	var body sensorRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)

		return
	}

	reading, err := body.reading()
	if err != nil {
		writeError(w, r, err)

		return
	}

	result, err := h.service.IngestReading(r.Context(), reading)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, result)
}

func (h *handler) latestReading(w http.ResponseWriter, r *http.Request) {
	reading, err := h.service.LatestReading(r.Context())
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, reading)
}

func (h *handler) readingHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)

		return
	}

	readings, err := h.service.ReadingHistory(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, readings)
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: multipart field \"file\" is required: %w", errBadRequest, err))

		return
	}
	defer file.Close()

	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeError(w, r, fmt.Errorf("%w: file must be an image", errBadRequest))

		return
	}

	image, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: read upload: %w", errBadRequest, err))

		return
	}

	prediction, err := h.service.HandleImage(r.Context(), header.Filename, image)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, prediction)
}

func (h *handler) detectionHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)

		return
	}

	events, err := h.service.DetectionHistory(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, events)
}

func (h *handler) statusHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, err)

		return
	}

	entries, err := h.service.StatusHistory(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, entries)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]fire.Status{"status": status})
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Dashboard(r.Context())
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, view)
}

func (h *handler) thresholds(w http.ResponseWriter, r *http.Request) {
	thresholds, err := h.service.Thresholds(r.Context())
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, thresholds)
}

func (h *handler) updateThresholds(w http.ResponseWriter, r *http.Request) {
	var patch fire.ThresholdsPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)

		return
	}

	thresholds, err := h.service.UpdateThresholds(r.Context(), patch, actorOf(r))
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, thresholds)
}

func (h *handler) latestMedia(w http.ResponseWriter, r *http.Request) {
	url, err := h.service.LatestPhotoURL(r.Context())
	if err != nil {
		writeError(w, r, err)

		return
	}

	writeJSON(w, r, http.StatusOK, map[string]*string{"latest_photo": url})
}

func (h *handler) fireState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.service.FireState())
}

// resetResponse is the body of DELETE /fire-state.
type resetResponse struct {
	Reset     bool          `json:"reset"`
	FireState fire.Snapshot `json:"fire_state"`
}

func (h *handler) resetFireState(w http.ResponseWriter, r *http.Request) {
	reset, err := h.service.ResetFireState(r.Context(), actorOf(r))
	if err != nil {
		writeError(w, r, err)

		return
	}

	logger.InfoKV(r.Context(), "Fire state reset requested", "reset", reset, "actor", actorOf(r))

	writeJSON(w, r, http.StatusOK, resetResponse{
		Reset:     reset,
		FireState: h.service.FireState(),
	})
}

func decodeJSON(r *http.Request, target any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}

		return fmt.Errorf("%w: decode body: %w", errBadRequest, err)
	}

	return nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
	}

	return limit, nil
}

// actorOf returns the audited identity of the caller.
func actorOf(r *http.Request) string {
	if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
		return actor
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	return "anonymous@" + host
}
