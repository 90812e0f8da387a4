package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"campusrun/internal/domain"
	"campusrun/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type confirmRunnerRequest struct {
	RunnerID string `json:"runner_id"`
}

type submitPaymentRequest struct {
	ProofURL  string `json:"proof_url"`
	RefNumber string `json:"ref_number"`
}

type verifyPaymentRequest struct {
	Accepted        bool   `json:"accepted"`
	RejectionReason string `json:"rejection_reason"`
}

type submitProofRequest struct {
	ProofURL string `json:"proof_url"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type rateRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

var allowedUploadTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

func caller(r *http.Request) domain.Identity {
	id, _ := IdentityFromContext(r.Context())
	return id
}

// decodeBody decodes an optional JSON body. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *HTTPServer) respondMission(w http.ResponseWriter, statusCode int, m *models.Mission, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, statusCode, m)
}

func (s *HTTPServer) handleCreateMission(w http.ResponseWriter, r *http.Request) {
	var in domain.CreateMissionInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.CreateMission(r.Context(), caller(r).UserID, in)
	s.respondMission(w, http.StatusCreated, m, err)
}

func (s *HTTPServer) handleListOpen(w http.ResponseWriter, r *http.Request) {
	missions, err := s.deps.Missions.ListOpenMissions(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"missions": missions})
}

func (s *HTTPServer) handleMyMissions(w http.ResponseWriter, r *http.Request) {
	id := caller(r)
	var (
		missions []*models.Mission
		err      error
	)
	if id.Role == models.RoleRunner {
		missions, err = s.deps.Missions.ListMissionsForRunner(r.Context(), id.UserID)
	} else {
		missions, err = s.deps.Missions.ListMissionsForStudent(r.Context(), id.UserID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"missions": missions})
}

func (s *HTTPServer) handleGetMission(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Missions.GetMission(r.Context(), chi.URLParam(r, "id"))
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.Missions.GetMissionHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history})
}

func (s *HTTPServer) handleApplicants(w http.ResponseWriter, r *http.Request) {
	applicants, err := s.deps.Missions.ListApplicants(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applicants": applicants})
}

func (s *HTTPServer) handleApply(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Missions.ApplyToMission(r.Context(), caller(r).UserID, chi.URLParam(r, "id"))
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleConfirmRunner(w http.ResponseWriter, r *http.Request) {
	var req confirmRunnerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.ConfirmRunner(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), req.RunnerID)
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req submitPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.SubmitPaymentProof(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), req.ProofURL, req.RefNumber)
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.VerifyPayment(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), req.Accepted, req.RejectionReason)
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleSubmitProof(w http.ResponseWriter, r *http.Request) {
	var req submitProofRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.SubmitProofOfDelivery(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), req.ProofURL)
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleConfirmDelivery(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Missions.ConfirmDelivery(r.Context(), caller(r).UserID, chi.URLParam(r, "id"))
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleDispute(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.DisputeMission(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), req.Reason)
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleRate(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.RateMission(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), req.Rating, req.Comment)
	s.respondMission(w, http.StatusOK, m, err)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req reasonRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid JSON body")
		return
	}
	m, err := s.deps.Missions.CancelMission(r.Context(), caller(r).UserID, chi.URLParam(r, "id"), req.Reason)
	s.respondMission(w, http.StatusOK, m, err)
}

// handleUpload stores a receipt or proof image and returns its public URL.
// The form field is "file"; "kind" selects the object prefix.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.Storage == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.deps.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid or oversized upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "file is required")
		return
	}
	defer file.Close()

	sniff := make([]byte, 512)
	n, _ := io.ReadFull(file, sniff)
	contentType := http.DetectContentType(sniff[:n])
	if ct := header.Header.Get("Content-Type"); ct != "" && contentType == "application/octet-stream" {
		contentType = ct
	}
	contentType = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	ext, ok := allowedUploadTypes[contentType]
	if !ok {
		writeError(w, http.StatusBadRequest, "validation_error", "unsupported file type "+contentType)
		return
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}

	prefix := "proofs"
	if r.FormValue("kind") == "receipt" {
		prefix = "receipts"
	}
	name := path.Join(prefix, caller(r).UserID, uuid.NewString()+ext)

	url, err := s.deps.Storage.Upload(r.Context(), name, contentType, file)
	if err != nil {
		s.logger.Error().Err(err).Str("object", name).Msg("Upload failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "upload failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}
