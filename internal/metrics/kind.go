package metrics

import (
	"errors"

	"github.com/alanyoungcy/swapwatch/internal/domain"
)

// ErrorKind maps an error onto a stable label value.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, domain.ErrConnectivity):
		return "connectivity"
	case errors.Is(err, domain.ErrResponse):
		return "response"
	case errors.Is(err, domain.ErrDecode):
		return "decode"
	case errors.Is(err, domain.ErrConfiguration):
		return "configuration"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "other"
	}
}
