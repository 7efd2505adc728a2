package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/inspection"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/ledger"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/models"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/normalize"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/reconcile"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/store"
	"github.com/IT-GilaniMobility/Factory-to-Sales-Requests-sub000/internal/workflow"

	"github.com/google/uuid"
)

type Handler struct {
	requests   store.RequestStore
	workflow   *workflow.Service
	engine     *inspection.Engine
	reconciler *reconcile.Reconciler
	ledger     *ledger.Service
}

func NewHandler(requests store.RequestStore, wf *workflow.Service, engine *inspection.Engine, reconciler *reconcile.Reconciler, ledgerService *ledger.Service) *Handler {
	return &Handler{
		requests:   requests,
		workflow:   wf,
		engine:     engine,
		reconciler: reconciler,
		ledger:     ledgerService,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/requests", h.handleRequests)
	mux.HandleFunc("/api/requests/", h.handleRequestSubroutes)
	mux.HandleFunc("/api/inspections/", h.handleInspectionSubroutes)
	mux.HandleFunc("/api/notifications", h.handleNotifications)
	mux.HandleFunc("/api/notifications/", h.handleNotificationDismiss)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleRequests(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListRequests(w, r)
	case http.MethodPost:
		h.handleCreateRequest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	filterRaw := strings.TrimSpace(r.URL.Query().Get("job_type"))
	var filter models.JobType
	if filterRaw != "" {
		parsed, ok := models.ParseJobType(filterRaw)
		if !ok {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown job_type")
			return
		}
		filter = parsed
	}
	writeJSON(w, http.StatusOK, h.reconciler.Snapshot(filter))
}

type createRequestRequest struct {
	JobType string          `json:"job_type"`
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createRequestRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	jobType, ok := models.ParseJobType(strings.TrimSpace(req.JobType))
	if !ok {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown job_type")
		return
	}

	input := store.CreateRequestInput{
		RequestCode: newRequestCode(jobType, time.Now().UTC()),
		JobType:     jobType,
		CreatedBy:   actor.Identity,
		Payload:     req.Payload,
		CreatedAt:   time.Now().UTC(),
	}
	row, created, err := h.requests.CreateRequest(r.Context(), input)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	if !created {
		// Suffix collision with an existing code: regenerate once rather
		// than handing the caller someone else's request.
		input.RequestCode = newRequestCode(jobType, time.Now().UTC())
		row, created, err = h.requests.CreateRequest(r.Context(), input)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		if !created {
			writeError(w, "", http.StatusInternalServerError, "internal_error", "could not allocate a request code")
			return
		}
	}

	request := normalize.FromRow(row, jobType)
	h.reconciler.ApplyLocal(request)
	writeJSON(w, http.StatusOK, request)
}

// newRequestCode builds the human-readable identifier assigned at creation:
// job-type prefix, date, and a short random suffix, e.g. WL-20250101-AB12.
func newRequestCode(jobType models.JobType, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("%s-%s-%s", models.RequestCodePrefix(jobType), now.Format("20060102"), suffix)
}

func (h *Handler) handleRequestSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	requestCode := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetRequest(w, r, requestCode)
	case len(parts) == 2 && parts[1] == "status" && r.Method == http.MethodPost:
		h.handleSetStatus(w, r, requestCode)
	case len(parts) == 2 && parts[1] == "inspection" && r.Method == http.MethodPost:
		h.handleOpenInspection(w, r, requestCode)
	case len(parts) == 2 && parts[1] == "deliveries":
		h.handleDeliveries(w, r, requestCode)
	case len(parts) == 3 && parts[1] == "deliveries" && r.Method == http.MethodDelete:
		h.handleDeleteDelivery(w, r, parts[2])
	case len(parts) == 2 && parts[1] == "work-hours":
		h.handleWorkHours(w, r, requestCode)
	case len(parts) == 3 && parts[1] == "work-hours" && parts[2] == "total" && r.Method == http.MethodGet:
		h.handleTotalHours(w, r, requestCode)
	case len(parts) == 3 && parts[1] == "work-hours" && r.Method == http.MethodDelete:
		h.handleDeleteWorkHours(w, r, parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request, requestCode string) {
	jobTypeRaw := strings.TrimSpace(r.URL.Query().Get("job_type"))
	if jobTypeRaw != "" {
		jobType, ok := models.ParseJobType(jobTypeRaw)
		if !ok {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown job_type")
			return
		}
		request, err := h.workflow.GetRequest(r.Context(), requestCode, jobType)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, request)
		return
	}

	// No table hint; probe each job-type table in order.
	for _, jobType := range models.JobTypes {
		request, err := h.workflow.GetRequest(r.Context(), requestCode, jobType)
		if err == nil {
			writeJSON(w, http.StatusOK, request)
			return
		}
		if !errors.Is(err, store.ErrRequestNotFound) {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
	}
	writeError(w, "", http.StatusNotFound, "request_not_found", "request not found")
}

type setStatusRequest struct {
	JobType string `json:"job_type"`
	Status  string `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request, requestCode string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req setStatusRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	jobType, ok := models.ParseJobType(strings.TrimSpace(req.JobType))
	if !ok {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown job_type")
		return
	}
	newStatus, ok := models.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}

	// Optimistic update: show the new status immediately, roll back if the
	// authoritative write fails or verification disagrees. An actor without
	// the capability never touches the shared view; their attempt fails
	// without a visible flicker.
	previous, hadLocal := h.reconciler.Get(requestCode)
	optimistic := hadLocal && workflow.Authorized(actor)
	if optimistic {
		applied := previous
		applied.Status = newStatus
		h.reconciler.ApplyLocal(applied)
	}

	request, err := h.workflow.SetStatus(r.Context(), requestCode, jobType, newStatus, actor)
	if err != nil {
		if optimistic {
			h.reconciler.Rollback(previous)
		}
		var verifyErr *workflow.StatusVerifyError
		if errors.As(err, &verifyErr) {
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"error": map[string]string{
					"code":    "status_verify_mismatch",
					"message": verifyErr.Error(),
				},
				"request": request,
			})
			return
		}
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	h.reconciler.Refresh(request)
	writeJSON(w, http.StatusOK, request)
}

type openInspectionRequest struct {
	JobType string `json:"job_type"`
}

type inspectionResponse struct {
	Inspection models.Inspection       `json:"inspection"`
	Items      []models.InspectionItem `json:"items"`
}

func (h *Handler) handleOpenInspection(w http.ResponseWriter, r *http.Request, requestCode string) {
	if _, ok := requireFactory(w, r); !ok {
		return
	}

	var req openInspectionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	jobType, ok := models.ParseJobType(strings.TrimSpace(req.JobType))
	if !ok {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown job_type")
		return
	}

	insp, items, err := h.engine.OpenOrCreate(r.Context(), requestCode, jobType)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, inspectionResponse{Inspection: insp, Items: items})
}

func (h *Handler) handleInspectionSubroutes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/inspections/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	inspectionID := parts[0]
	if !isValidUUID(inspectionID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "inspection_id must be a UUID")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetInspection(w, r, inspectionID)
	case len(parts) == 2 && parts[1] == "save" && r.Method == http.MethodPost:
		h.handleSaveInspection(w, r, inspectionID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetInspection(w http.ResponseWriter, r *http.Request, inspectionID string) {
	insp, items, err := h.engine.Load(r.Context(), inspectionID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, inspectionResponse{Inspection: insp, Items: items})
}

type saveInspectionRequest struct {
	Inspector string                  `json:"inspector"`
	Items     []inspection.ItemUpdate `json:"items"`
}

func (h *Handler) handleSaveInspection(w http.ResponseWriter, r *http.Request, inspectionID string) {
	actor, ok := requireFactory(w, r)
	if !ok {
		return
	}

	var req saveInspectionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	inspector := strings.TrimSpace(req.Inspector)
	if inspector == "" {
		inspector = actor.Identity
	}

	result, err := h.engine.Save(r.Context(), inspectionID, req.Items, inspector)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	notes, err := h.reconciler.NotificationsFor(r.Context(), actor)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (h *Handler) handleNotificationDismiss(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/notifications/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "dismiss" || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := h.reconciler.Dismiss(r.Context(), actor, parts[0]); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type deliveryRequest struct {
	JobType     string    `json:"job_type"`
	DeliveredAt time.Time `json:"delivered_at"`
	Carrier     string    `json:"carrier"`
	Recipient   string    `json:"recipient"`
	Note        string    `json:"note"`
}

func (h *Handler) handleDeliveries(w http.ResponseWriter, r *http.Request, requestCode string) {
	switch r.Method {
	case http.MethodGet:
		jobType, ok := jobTypeFromQuery(w, r)
		if !ok {
			return
		}
		notes, err := h.ledger.ListDeliveries(r.Context(), requestCode, jobType)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, notes)
	case http.MethodPost:
		if _, ok := requireFactory(w, r); !ok {
			return
		}
		var req deliveryRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		jobType, ok := models.ParseJobType(strings.TrimSpace(req.JobType))
		if !ok {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown job_type")
			return
		}
		note, err := h.ledger.AddDelivery(r.Context(), ledger.DeliveryInput{
			RequestCode: requestCode,
			JobType:     jobType,
			DeliveredAt: req.DeliveredAt,
			Carrier:     req.Carrier,
			Recipient:   req.Recipient,
			Note:        req.Note,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, note)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleDeleteDelivery(w http.ResponseWriter, r *http.Request, noteID string) {
	if _, ok := requireFactory(w, r); !ok {
		return
	}
	if err := h.ledger.DeleteDelivery(r.Context(), noteID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type workHoursRequest struct {
	JobType  string    `json:"job_type"`
	Worker   string    `json:"worker"`
	Hours    float64   `json:"hours"`
	WorkedOn time.Time `json:"worked_on"`
	Note     string    `json:"note"`
}

func (h *Handler) handleWorkHours(w http.ResponseWriter, r *http.Request, requestCode string) {
	switch r.Method {
	case http.MethodGet:
		jobType, ok := jobTypeFromQuery(w, r)
		if !ok {
			return
		}
		entries, err := h.ledger.ListWorkHours(r.Context(), requestCode, jobType)
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case http.MethodPost:
		if _, ok := requireFactory(w, r); !ok {
			return
		}
		var req workHoursRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
		jobType, ok := models.ParseJobType(strings.TrimSpace(req.JobType))
		if !ok {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "unknown job_type")
			return
		}
		if strings.TrimSpace(req.Worker) == "" || req.Hours <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "worker and positive hours are required")
			return
		}
		entry, err := h.ledger.AddWorkHours(r.Context(), ledger.WorkHoursInput{
			RequestCode: requestCode,
			JobType:     jobType,
			Worker:      req.Worker,
			Hours:       req.Hours,
			WorkedOn:    req.WorkedOn,
			Note:        req.Note,
		})
		if err != nil {
			status, code, msg := mapError(err)
			writeError(w, "", status, code, msg)
			return
		}
		writeJSON(w, http.StatusOK, entry)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handleTotalHours(w http.ResponseWriter, r *http.Request, requestCode string) {
	jobType, ok := jobTypeFromQuery(w, r)
	if !ok {
		return
	}
	total, err := h.ledger.TotalHours(r.Context(), requestCode, jobType)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"total_hours": total})
}

func (h *Handler) handleDeleteWorkHours(w http.ResponseWriter, r *http.Request, entryID string) {
	if _, ok := requireFactory(w, r); !ok {
		return
	}
	if err := h.ledger.DeleteWorkHours(r.Context(), entryID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func jobTypeFromQuery(w http.ResponseWriter, r *http.Request) (models.JobType, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("job_type"))
	jobType, ok := models.ParseJobType(raw)
	if !ok {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "job_type query parameter is required")
		return "", false
	}
	return jobType, true
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

type errorResponse struct {
	RequestID string        `json:"request_id,omitempty"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrNotAuthorized):
		return http.StatusForbidden, "not_authorized", "actor lacks the required capability"
	case errors.Is(err, store.ErrRequestNotFound):
		return http.StatusNotFound, "request_not_found", "request not found"
	case errors.Is(err, store.ErrInspectionNotFound):
		return http.StatusNotFound, "inspection_not_found", "inspection not found"
	case errors.Is(err, store.ErrTemplateNotFound):
		return http.StatusNotFound, "template_not_found", "checklist template not found"
	case errors.Is(err, store.ErrDeliveryNotFound):
		return http.StatusNotFound, "delivery_not_found", "delivery note not found"
	case errors.Is(err, store.ErrWorkHourNotFound):
		return http.StatusNotFound, "work_hours_not_found", "work hour entry not found"
	case errors.Is(err, store.ErrUnknownStatus):
		return http.StatusBadRequest, "invalid_request", "unknown status"
	case errors.Is(err, store.ErrUnknownJobType):
		return http.StatusBadRequest, "invalid_request", "unknown job type"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
