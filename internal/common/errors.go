package common

import (
	"errors"
	"net/http"

	"tracking_cf/internal/platform/codeforces"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden access")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict") // e.g. handle already tracked
	ErrInternalServer     = errors.New("internal server error")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrJobLockFailed      = errors.New("failed to acquire job lock")
	ErrPersistence        = errors.New("failed to persist tracker state")
)

const pgUniqueViolation = "23505"

// statusTable is checked in order; the first matching sentinel wins.
var statusTable = []struct {
	status int
	errs   []error
}{
	{http.StatusNotFound, []error{ErrNotFound, codeforces.ErrHandleNotFound}},
	{http.StatusUnauthorized, []error{ErrUnauthorized}},
	{http.StatusForbidden, []error{ErrForbidden}},
	{http.StatusBadRequest, []error{ErrBadRequest, ErrValidation, codeforces.ErrInvalidParameter}},
	{http.StatusConflict, []error{ErrConflict, ErrJobLockFailed}},
	{http.StatusServiceUnavailable, []error{
		ErrServiceUnavailable,
		codeforces.ErrAPIUnavailable,
		codeforces.ErrTransport,
		codeforces.ErrRateLimited,
	}},
}

// HTTPStatusFromError maps domain and judge errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for _, row := range statusTable {
		for _, target := range row.errs {
			if errors.Is(err, target) {
				return row.status
			}
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
