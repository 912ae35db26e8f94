package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"pii-masking-service/internal/category"
	"pii-masking-service/internal/masker"
	"pii-masking-service/internal/vault"
)

type predictRequest struct {
	Email *string `json:"email"`
}

// Field order matches the response clients of /predict already parse.
type predictResponse struct {
	InputEmailBody       string                `json:"input_email_body"`
	ListOfMaskedEntities []masker.EntityRecord `json:"list_of_masked_entities"`
	MaskedEmail          string                `json:"masked_email"`
	CategoryOfTheEmail   string                `json:"category_of_the_email"`
}

type maskRequest struct {
	Text *string `json:"text"`
}

type maskResponse struct {
	MaskedText string                `json:"masked_text"`
	Entities   []masker.EntityRecord `json:"entities"`
	ID         string                `json:"id,omitempty"`
}

type demaskRequest struct {
	ID         string                `json:"id"`
	MaskedText *string               `json:"masked_text"`
	Entities   []masker.EntityRecord `json:"entities"`
}

type demaskResponse struct {
	Text       string `json:"text"`
	Unresolved []int  `json:"unresolved"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	s.metrics.RequestsPredict.Add(1)
	var req predictRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Email == nil {
		s.badRequest(w, "Missing 'email' key in the request data")
		return
	}

	res, ok := s.mask(w, r, masker.Clean(*req.Email, s.cfg.LowercaseInput))
	if !ok {
		return
	}

	start := time.Now()
	cat, err := s.categorizer.Categorize(r.Context(), res.MaskedText)
	s.metrics.RecordClassifyLatency(time.Since(start))
	if err != nil {
		s.fail(w, "predict", err)
		return
	}

	writeJSON(w, http.StatusOK, predictResponse{
		InputEmailBody:       *req.Email,
		ListOfMaskedEntities: res.Entities,
		MaskedEmail:          res.MaskedText,
		CategoryOfTheEmail:   cat,
	})
}

func (s *Server) handleMask(w http.ResponseWriter, r *http.Request) {
	s.metrics.RequestsMask.Add(1)
	var req maskRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Text == nil {
		s.badRequest(w, "Missing 'text' key in the request data")
		return
	}

	res, ok := s.mask(w, r, *req.Text)
	if !ok {
		return
	}
	out := maskResponse{MaskedText: res.MaskedText, Entities: res.Entities}
	if s.store != nil {
		id, err := s.store.Save(r.Context(), res)
		if err != nil {
			s.metrics.ErrorsVault.Add(1)
			s.fail(w, "mask", err)
			return
		}
		out.ID = id
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDemask(w http.ResponseWriter, r *http.Request) {
	s.metrics.RequestsDemask.Add(1)
	var req demaskRequest
	if !s.decode(w, r, &req) {
		return
	}

	var (
		masked   string
		entities []masker.EntityRecord
	)
	switch {
	case req.ID != "":
		if s.store == nil {
			s.badRequest(w, "demask by id requires a configured vault")
			return
		}
		rec, err := s.store.Get(r.Context(), req.ID)
		if err != nil {
			if !errors.Is(err, vault.ErrNotFound) {
				s.metrics.ErrorsVault.Add(1)
			}
			s.fail(w, "demask", err)
			return
		}
		masked, entities = rec.MaskedText, rec.Entities
	case req.MaskedText != nil:
		masked, entities = *req.MaskedText, req.Entities
	default:
		s.badRequest(w, "Missing 'masked_text' or 'id' key in the request data")
		return
	}

	text, unresolved := masker.DemaskDetailed(masked, entities)
	s.metrics.RecordDemask(len(entities), len(unresolved))
	if len(unresolved) > 0 {
		s.log.Warnf("demask", "%d of %d records left unresolved", len(unresolved), len(entities))
	}
	if unresolved == nil {
		unresolved = []int{}
	}
	writeJSON(w, http.StatusOK, demaskResponse{Text: text, Unresolved: unresolved})
}

// mask runs the engine and records metrics; on failure it writes the error
// response and returns false.
func (s *Server) mask(w http.ResponseWriter, r *http.Request, text string) (masker.Result, bool) {
	start := time.Now()
	res, err := s.engine.Mask(r.Context(), text)
	s.metrics.RecordMaskLatency(time.Since(start))
	if err != nil {
		s.fail(w, "mask", err)
		return masker.Result{}, false
	}
	s.metrics.RecordEntities(res.Entities)
	return res, true
}

// decode reads a JSON body into v; on failure it writes a 400 or 413 and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.metrics.ErrorsBadRequest.Add(1)
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	s.badRequest(w, "request body must be a JSON object")
	return false
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.metrics.ErrorsBadRequest.Add(1)
	writeError(w, http.StatusBadRequest, msg)
}

// fail maps err to a status, counts it and writes the error response.
// Messages from collaborators are not echoed since they may quote input.
func (s *Server) fail(w http.ResponseWriter, action string, err error) {
	s.log.Errorf(action, "%v", err)
	switch {
	case errors.Is(err, masker.ErrRecognitionUnavailable):
		s.metrics.ErrorsRecognizer.Add(1)
		writeError(w, http.StatusBadGateway, "entity recognizer unavailable")
	case errors.Is(err, category.ErrUnavailable):
		s.metrics.ErrorsClassifier.Add(1)
		writeError(w, http.StatusBadGateway, "classifier unavailable")
	case errors.Is(err, vault.ErrNotFound):
		writeError(w, http.StatusNotFound, "no stored result for that id")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
