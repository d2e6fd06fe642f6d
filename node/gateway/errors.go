package gateway

import (
	"net/http"

	"comlake-node/types"

	"golang.org/x/xerrors"
)

// StatusFor classifies err into an http status.
func StatusFor(err error) int {
	switch {
	case xerrors.Is(err, types.ErrValidation),
		xerrors.Is(err, types.ErrEmptyInput),
		xerrors.Is(err, types.ErrQuery):
		return http.StatusBadRequest
	case xerrors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case xerrors.Is(err, types.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ErrorBody is the json error response: {"error": message} or, for missing
// metadata, {"error": {"missing-metadata": [field, ...]}}.
func ErrorBody(err error) map[string]interface{} {
	var missing *types.MissingMetadataError
	if xerrors.As(err, &missing) {
		return map[string]interface{}{
			"error": map[string]interface{}{"missing-metadata": missing.Missing},
		}
	}
	if StatusFor(err) == http.StatusInternalServerError {
		return map[string]interface{}{"error": "internal server error"}
	}
	return map[string]interface{}{"error": err.Error()}
}
