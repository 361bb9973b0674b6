package server

import (
	"errors"
	"net/http"

	"repogen/planner"
	"repogen/project"
)

type draftReq struct {
	// Text is free-form business information or a short project description.
	Text string `json:"text"`
}

type specResp struct {
	Message string        `json:"message"`
	Data    *project.Spec `json:"data,omitempty"`
	Error   string        `json:"error,omitempty"`
	Errors  any           `json:"errors,omitempty"`
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req draftReq
	if !s.decode(w, r, &req) {
		return
	}
	spec, err := planner.Draft(r.Context(), s.llm, req.Text)
	if err != nil {
		if errors.Is(err, planner.ErrEmptyBrief) {
			writeJSON(w, http.StatusBadRequest, specResp{Message: "Invalid data provided.", Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, specResp{Message: "Failed to draft project from text.", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, specResp{Message: "Project drafted successfully from text.", Data: &spec})
}

func (s *Server) handleImprove(w http.ResponseWriter, r *http.Request) {
	var spec project.Spec
	if !s.decode(w, r, &spec) {
		return
	}
	if err := spec.Validate(); err != nil {
		resp := specResp{Message: "Invalid data provided.", Error: err.Error()}
		var verr *project.ValidationError
		if errors.As(err, &verr) {
			resp.Errors = verr.Fields
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	improved, err := planner.Improve(r.Context(), s.llm, spec)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, specResp{Message: "Failed to improve project.", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, specResp{Message: "Project improved successfully.", Data: &improved})
}
