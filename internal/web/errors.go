package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/example/foodsched/internal/auth"
	"github.com/example/foodsched/internal/availability"
	"github.com/example/foodsched/internal/db"
	"github.com/example/foodsched/internal/ordering"
)

var (
	errBadRequest = errors.New("bad request")
	errNotACart   = errors.New("order is no longer a cart")
)

type errorInfo struct {
	Status  int
	Message string
}

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorMapper translates domain errors into HTTP statuses. The first
// matching mapping wins.
type errorMapper struct {
	mappings []errorMapping
}

func (m *errorMapper) with(err error, status int, message string) *errorMapper {
	m.mappings = append(m.mappings, errorMapping{err: err, status: status, message: message})
	return m
}

func (m *errorMapper) Map(err error) errorInfo {
	if errors.Is(err, context.DeadlineExceeded) {
		return errorInfo{Status: http.StatusGatewayTimeout, Message: "request timeout"}
	}
	if errors.Is(err, context.Canceled) {
		return errorInfo{Status: http.StatusServiceUnavailable, Message: "request cancelled"}
	}
	for _, mp := range m.mappings {
		if errors.Is(err, mp.err) {
			return errorInfo{Status: mp.status, Message: mp.message}
		}
	}
	return errorInfo{Status: http.StatusInternalServerError, Message: "internal server error"}
}

var defaultErrors = (&errorMapper{}).
	with(errBadRequest, http.StatusBadRequest, "bad request").
	with(availability.ErrInvalidRange, http.StatusBadRequest, "invalid time range").
	with(availability.ErrMisconfiguredSchedule, http.StatusUnprocessableEntity, "restaurant schedule misconfigured").
	with(availability.ErrNotFound, http.StatusNotFound, "no opening within search horizon").
	with(db.ErrNotFound, http.StatusNotFound, "not found").
	with(auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid username/password").
	with(auth.ErrMissingToken, http.StatusUnauthorized, "token required").
	with(auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token").
	with(errForbidden, http.StatusForbidden, "forbidden").
	with(ordering.ErrRejected, http.StatusConflict, "fulfilment time rejected").
	with(errNotACart, http.StatusConflict, "order is no longer a cart")
