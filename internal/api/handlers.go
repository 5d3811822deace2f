package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inkgen/inkgen/internal/generate"
	"github.com/inkgen/inkgen/internal/model"
)

// ---------------------------------------------------------------------------
// GET /  and  GET /api/test
// ---------------------------------------------------------------------------

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Welcome to the inkgen AI Tattoo Designer backend!",
	})
}

// handleTest is the connectivity probe the frontend calls on startup.
func (s *Server) handleTest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "Success",
		"data":   "Backend is running",
	})
}

// ---------------------------------------------------------------------------
// POST /api/generate
// ---------------------------------------------------------------------------

type generateRequest struct {
	UserPrompt string `json:"user_prompt"`
}

type generateResponse struct {
	Status           string `json:"status"`
	AIText           string `json:"ai_text"`
	ImageURL         string `json:"image_url"`
	EngineeredPrompt string `json:"engineered_prompt"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.orch.Handle(r.Context(), req.UserPrompt)
	if err != nil {
		var genErr *generate.Error
		switch {
		case errors.Is(err, model.ErrEmptyPrompt):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, model.ErrServiceUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.As(err, &genErr):
			writeError(w, http.StatusBadGateway, "image generation failed: "+genErr.Message)
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{
		Status:           "success",
		AIText:           result.Text,
		ImageURL:         result.ImageURL,
		EngineeredPrompt: result.EngineeredPrompt,
	})
}

// ---------------------------------------------------------------------------
// GET /api/history
// ---------------------------------------------------------------------------

type historyTurn struct {
	ID        int64   `json:"id"`
	Role      string  `json:"role"`
	Text      string  `json:"text"`
	ImageURL  *string `json:"image_url,omitempty"`
	Timestamp string  `json:"timestamp"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.history.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read history")
		return
	}

	out := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyTurn{
			ID:        t.ID,
			Role:      t.Role,
			Text:      t.Text,
			ImageURL:  t.ImageURL,
			Timestamp: t.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
