package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"solstice/internal/model"
	"solstice/internal/observability/jsonlog"
	"solstice/internal/task"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.service.List(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req model.NewTask
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.service.Create(r.Context(), req.Title)
	if err != nil {
		if errors.Is(err, task.ErrInvalidTitle) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	found, err := s.service.Get(r.Context(), taskID(r))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, model.ErrNotFound.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handlePatchTask(w http.ResponseWriter, r *http.Request) {
	var req model.TaskPatch
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.service.Patch(r.Context(), taskID(r), req)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrInvalidTitle):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, model.ErrNotFound):
			writeError(w, http.StatusNotFound, model.ErrNotFound.Error())
		default:
			s.internalError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), taskID(r)); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.internalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// taskID parses the {id} path value. Anything that is not a UUID maps to
// uuid.Nil, which no stored task can have, so lookups report not found.
func taskID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	fields := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"err":    err,
	}
	var se *model.StorageError
	if errors.As(err, &se) {
		fields["op"] = se.Op
	}
	jsonlog.FromContext(r.Context()).Error("request_failed", fields)
	writeError(w, http.StatusInternalServerError, err.Error())
}
