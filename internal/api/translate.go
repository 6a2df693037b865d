package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/audio-translator/internal/pipeline"
	"github.com/snarg/audio-translator/internal/remote"
)

// Pipeline runs one transcription + translation request.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// TranslateHandler accepts an audio upload and returns its transcript and
// translation, either as JSON or as a single text attachment.
type TranslateHandler struct {
	pipeline  Pipeline
	maxUpload int64
	log       zerolog.Logger
}

// NewTranslateHandler creates a new translate handler. maxUpload is in bytes.
func NewTranslateHandler(p Pipeline, maxUpload int64, log zerolog.Logger) *TranslateHandler {
	return &TranslateHandler{
		pipeline:  p,
		maxUpload: maxUpload,
		log:       log.With().Str("handler", "translate").Logger(),
	}
}

// Routes registers the translate endpoint.
func (h *TranslateHandler) Routes(r chi.Router) {
	r.Post("/translate", h.Translate)
}

// Translate handles POST /api/v1/translate.
//
// Form fields: audio (file), source_language, target_language, api_key.
// The key may also come in the X-OpenAI-Key header. ?download=transcript or
// ?download=translation streams that artifact instead of the JSON result.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	download, _ := QueryString(r, "download")
	if download != "" && download != "transcript" && download != "translation" {
		WriteError(w, http.StatusBadRequest, "download must be transcript or translation")
		return
	}

	if r.ContentLength > h.maxUpload {
		WriteError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart form", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio file (form field \"audio\")")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	apiKey := r.FormValue("api_key")
	if apiKey == "" {
		apiKey = r.Header.Get("X-OpenAI-Key")
	}

	result, err := h.pipeline.Run(r.Context(), pipeline.Request{
		AudioData:      data,
		Filename:       header.Filename,
		SourceLanguage: r.FormValue("source_language"),
		TargetLanguage: r.FormValue("target_language"),
		APIKey:         apiKey,
	})
	if err != nil {
		h.writePipelineError(w, r, err)
		return
	}

	switch download {
	case "transcript":
		WriteAttachment(w, result.TranscriptFile, result.Transcript)
	case "translation":
		WriteAttachment(w, result.TranslationFile, result.Translation)
	default:
		WriteJSON(w, http.StatusOK, result)
	}
}

func (h *TranslateHandler) writePipelineError(w http.ResponseWriter, r *http.Request, err error) {
	stage := pipeline.StageOf(err)
	status := StatusForError(err)
	if status >= 500 {
		h.log.Error().Err(err).
			Str("stage", string(stage)).
			Str("request_id", RequestIDFromContext(r.Context())).
			Msg("translate request failed")
	}
	WriteJSON(w, status, ErrorResponse{
		Error:  errorMessage(stage),
		Stage:  string(stage),
		Detail: err.Error(),
	})
}

// StatusForError maps a pipeline error to an HTTP status.
func StatusForError(err error) int {
	switch pipeline.StageOf(err) {
	case pipeline.StageConfig, pipeline.StageValidation:
		return http.StatusBadRequest
	case pipeline.StageConversion:
		return http.StatusUnprocessableEntity
	case pipeline.StageTranscription, pipeline.StageTranslation:
		if errors.Is(err, context.Canceled) {
			return 499
		}
		switch remote.KindOf(err) {
		case remote.KindAuth:
			return http.StatusUnauthorized
		case remote.KindRateLimit:
			return http.StatusTooManyRequests
		case remote.KindTransient:
			return http.StatusGatewayTimeout
		case remote.KindBadRequest:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	default:
		return http.StatusInternalServerError
	}
}

func errorMessage(stage pipeline.Stage) string {
	switch stage {
	case pipeline.StageConfig:
		return "OpenAI API key not provided"
	case pipeline.StageValidation:
		return "invalid request"
	case pipeline.StageConversion:
		return "audio conversion failed"
	case pipeline.StageTranscription:
		return "transcription failed"
	case pipeline.StageTranslation:
		return "translation failed"
	default:
		return "internal error"
	}
}
