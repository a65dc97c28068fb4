package restserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/chrissnell/quasar/internal/types"
)

const (
	msgCannotDetermine = "cannot determine the position or the message"
	msgInternal        = "internal server error"
)

// toErrorResponse maps an error to a status code and response body.
// unknownStationStatus is the status used for names outside the registry:
// a bad name inside a request body is a 400, an unknown path segment a 404.
func toErrorResponse(err error, unknownStationStatus int) (int, ErrorResponse) {
	var (
		unknown      *types.UnknownStationError
		validation   *types.ValidationError
		insufficient *types.InsufficientDataError
		geometry     *types.GeometryError
	)

	resp := ErrorResponse{Timestamp: nowUnix()}

	switch {
	case errors.As(err, &unknown):
		resp.Status = unknownStationStatus
		resp.Error = unknown.Error()
	case errors.As(err, &validation):
		resp.Status = http.StatusBadRequest
		resp.Error = validation.Error()
	case errors.As(err, &insufficient):
		resp.Status = http.StatusNotFound
		resp.Error = insufficient.Error()
		resp.Details = map[string]any{"missing": insufficient.Missing}
	case errors.As(err, &geometry):
		resp.Status = http.StatusNotFound
		resp.Error = msgCannotDetermine
		resp.Details = geometry.Reason
	default:
		resp.Status = http.StatusInternalServerError
		resp.Error = msgInternal
	}

	return resp.Status, resp
}

func nowUnix() int64 {
	return time.Now().Unix()
}
