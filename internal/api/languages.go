package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/snarg/audio-translator/internal/language"
)

type LanguagesResponse struct {
	AutoDetect string              `json:"auto_detect"`
	Languages  []language.Language `json:"languages"`
}

type LanguagesHandler struct{}

func NewLanguagesHandler() *LanguagesHandler { return &LanguagesHandler{} }

func (h *LanguagesHandler) Routes(r chi.Router) {
	r.Get("/languages", h.List)
}

// List handles GET /api/v1/languages.
func (h *LanguagesHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, LanguagesResponse{
		AutoDetect: language.AutoDetect,
		Languages:  language.All(),
	})
}
