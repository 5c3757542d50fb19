package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"eventgate/api/model"
	"eventgate/dispatch"
	"eventgate/registry"
	"eventgate/workerapi"
)

// writeError maps the dispatch error taxonomy onto HTTP statuses. Domain
// errors keep their identity; an unreachable cluster reads as 503, never as
// a hang.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var wrongVersion *workerapi.WrongVersionError

	switch {
	case errors.Is(err, registry.ErrNoWorkersAvailable):
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, model.Error{Error: "no_workers_available"})

	case errors.Is(err, dispatch.ErrTimeout):
		render.Status(r, http.StatusGatewayTimeout)
		render.JSON(w, r, model.Error{Error: "timeout"})

	case errors.As(err, &wrongVersion):
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, model.Error{
			Error:  "wrong_expected_version",
			Actual: &wrongVersion.Actual,
		})

	case errors.Is(err, workerapi.ErrStreamNotFound),
		errors.Is(err, workerapi.ErrSnapshotNotFound),
		errors.Is(err, workerapi.ErrSubscriptionNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, model.Error{Error: err.Error()})

	case errors.Is(err, dispatch.ErrDispatchFailed):
		render.Status(r, http.StatusBadGateway)
		render.JSON(w, r, model.Error{Error: "dispatch_failed"})

	default:
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, model.Error{Error: err.Error()})
	}
}
