package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"

	service "github.com/okian/tackle/internal/app"
	"github.com/okian/tackle/internal/domain/features"
	"github.com/okian/tackle/internal/domain/model"
	"github.com/okian/tackle/internal/domain/types"
)

// eventRequest mirrors the OpenAPI schema of a tackle event. Pointers tell
// missing fields apart from zero values.
type eventRequest struct {
	GameID        *int64   `json:"gameId"`
	PlayID        *int64   `json:"playId"`
	FrameID       *int64   `json:"frameId"`
	TacklerID     *int64   `json:"tacklerId"`
	BallCarrierID *int64   `json:"ballCarrierId"`
	TacklerX      *float64 `json:"x_tackler"`
	TacklerY      *float64 `json:"y_tackler"`
	BallCarrierX  *float64 `json:"x_ballCarrier"`
	BallCarrierY  *float64 `json:"y_ballCarrier"`
}

// event validates the request and converts it. Missing ball-carrier
// coordinates become NaN.
func (e eventRequest) event() (model.TackleEvent, error) {
	required := []struct {
		name string
		ok   bool
	}{
		{"gameId", e.GameID != nil},
		{"playId", e.PlayID != nil},
		{"frameId", e.FrameID != nil},
		{"tacklerId", e.TacklerID != nil},
		{"ballCarrierId", e.BallCarrierID != nil},
		{"x_tackler", e.TacklerX != nil},
		{"y_tackler", e.TacklerY != nil},
	}
	for _, f := range required {
		if !f.ok {
			return model.TackleEvent{}, fmt.Errorf("missing %s", f.name)
		}
	}
	optional := func(v *float64) float64 {
		if v == nil {
			return math.NaN()
		}
		return *v
	}
	return model.TackleEvent{
		GameID:        *e.GameID,
		PlayID:        *e.PlayID,
		FrameID:       *e.FrameID,
		TacklerID:     *e.TacklerID,
		BallCarrierID: *e.BallCarrierID,
		TacklerX:      *e.TacklerX,
		TacklerY:      *e.TacklerY,
		BallCarrierX:  optional(e.BallCarrierX),
		BallCarrierY:  optional(e.BallCarrierY),
	}, nil
}

// maxEventBytes bounds the encoded size of one event in a request body.
// Batch bodies get one such allowance per permitted event.
const maxEventBytes = 4 << 10

// decodeBody decodes at most limit bytes of the request body into v.
// Oversized bodies map to 413, anything else undecodable to 400.
func decodeBody(w http.ResponseWriter, r *http.Request, op string, limit int64, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "payload_too_large",
			WrapKind(op, ErrTooLarge, fmt.Errorf("body exceeds %d bytes", limit)))
		return false
	}
	writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	return false
}

// FeaturesHandler serves feature extraction requests.
type FeaturesHandler struct {
	extractor    Extractor
	maxBatchSize int
}

// NewFeaturesHandler creates a new features handler.
func NewFeaturesHandler(extractor Extractor, maxBatchSize int) *FeaturesHandler {
	return &FeaturesHandler{extractor: extractor, maxBatchSize: maxBatchSize}
}

// HandlePostFeatures handles POST /features requests.
func (h *FeaturesHandler) HandlePostFeatures(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_features"
	var req eventRequest
	if !decodeBody(w, r, op, maxEventBytes, &req) {
		return
	}
	e, err := req.event()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	fv, err := h.extractor.Extract(r.Context(), e)
	if err != nil {
		status, code, kind := classify(err)
		writeError(w, status, code, WrapKind(op, kind, err))
		return
	}
	writeJSON(w, http.StatusOK, types.NewFeatures(e, fv))
}

// HandlePostBatch handles POST /features/batch requests.
func (h *FeaturesHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_features_batch"
	var reqs []eventRequest
	if !decodeBody(w, r, op, int64(h.maxBatchSize+1)*maxEventBytes, &reqs) {
		return
	}
	if len(reqs) > h.maxBatchSize {
		writeError(w, http.StatusBadRequest, "batch_too_large",
			WrapKind(op, ErrBadRequest, fmt.Errorf("%d events exceed the limit of %d", len(reqs), h.maxBatchSize)))
		return
	}

	events := make([]model.TackleEvent, len(reqs))
	for i, req := range reqs {
		e, err := req.event()
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("event %d: %w", i, err)))
			return
		}
		events[i] = e
	}

	res, err := h.extractor.ExtractBatch(r.Context(), events)
	if err != nil {
		status, code, kind := classify(err)
		writeError(w, status, code, WrapKind(op, kind, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// classify maps an extraction error to a response status, code and kind.
func classify(err error) (int, string, error) {
	if errors.Is(err, service.ErrNotStarted) {
		return http.StatusServiceUnavailable, "unavailable", ErrUnavailable
	}
	switch reason := features.Reason(err); reason {
	case features.ReasonGroupNotFound:
		return http.StatusNotFound, reason, ErrNotFound
	case features.ReasonEmptyGroup, features.ReasonIdentifierNotFound,
		features.ReasonAmbiguousIdentifier, features.ReasonMissingCoordinates:
		return http.StatusUnprocessableEntity, reason, ErrUnprocessable
	case features.ReasonCancelled:
		return http.StatusServiceUnavailable, reason, ErrUnavailable
	default:
		return http.StatusInternalServerError, "internal_error", ErrInternal
	}
}
