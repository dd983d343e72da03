package inspections_api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/FieldReport/ImpoundBox/internal/confirm"
	"github.com/FieldReport/ImpoundBox/internal/ledger"
	"github.com/FieldReport/ImpoundBox/internal/models"
	"github.com/FieldReport/ImpoundBox/internal/services/inspections"
	"github.com/FieldReport/ImpoundBox/internal/services/releases"
	"github.com/FieldReport/ImpoundBox/internal/storage/pginspections"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type InspectionsAPI struct {
	insp *inspections.Service
	rel  *releases.Service
}

func New(insp *inspections.Service, rel *releases.Service) *InspectionsAPI {
	return &InspectionsAPI{insp: insp, rel: rel}
}

func (a *InspectionsAPI) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/inspections", a.createInspection)
	r.Get("/inspections", a.listInspections)
	r.Get("/inspections/{id}", a.getInspection)
	r.Get("/inspections/{id}/releases", a.listReleases)
	r.Post("/inspections/{id}/releases", a.commitRelease)
	return r
}

func (a *InspectionsAPI) createInspection(w http.ResponseWriter, r *http.Request) {
	var req createInspectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	insp, err := a.insp.CreateInspection(r.Context(), models.InspectionCreateInput{
		SerialNumber:   req.SerialNumber,
		DrugshopName:   req.DrugshopName,
		District:       req.District,
		BoxesImpounded: int64(req.BoxesImpounded),
		ContactPhones:  req.ContactPhones,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, toInspectionDTO(insp))
}

func (a *InspectionsAPI) listInspections(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	list, err := a.insp.ListInspections(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]inspectionDTO, 0, len(list))
	for _, i := range list {
		out = append(out, toInspectionDTO(i))
	}
	writeJSON(w, http.StatusOK, listResponse[inspectionDTO]{Items: out})
}

func (a *InspectionsAPI) getInspection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	got, err := a.insp.GetInspectionsByIDs(r.Context(), []uint64{id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(got) == 0 {
		writeError(w, http.StatusNotFound, "inspection not found")
		return
	}
	writeJSON(w, http.StatusOK, toInspectionDTO(got[0]))
}

func (a *InspectionsAPI) listReleases(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, offset := pagination(r)
	recs, err := a.insp.ListReleaseRecords(r.Context(), id, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]releaseRecordDTO, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toReleaseRecordDTO(rec))
	}
	writeJSON(w, http.StatusOK, listResponse[releaseRecordDTO]{Items: out})
}

func (a *InspectionsAPI) commitRelease(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req releaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Ворота подтверждения: координатор не вызывается, пока оператор не
	// подтвердил физический пересчёт, ответственность и не набрал фразу.
	got, err := a.insp.GetInspectionsByIDs(r.Context(), []uint64{id})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(got) == 0 {
		writeError(w, http.StatusNotFound, "inspection not found")
		return
	}
	gate := confirm.Confirmation{
		CountVerified:  req.Confirmation.CountVerified,
		RecordAccepted: req.Confirmation.RecordAccepted,
		Text:           req.Confirmation.Text,
	}
	if err := gate.Validate(got[0].SerialNumber); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := a.rel.CommitRelease(r.Context(), id, releases.ReleaseInput{
		Quantity:    int64(req.Quantity),
		ReleasedBy:  req.ReleasedBy,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		Note:        req.Note,
	})
	if err != nil {
		writeReleaseError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, releaseResponse{
		Record:    toReleaseRecordDTO(out.Record),
		Remaining: out.Remaining,
		Status:    out.Status,
		// Доставка асинхронная; итог появится в notify-полях записи.
		Notification: "pending",
	})
}

func writeReleaseError(w http.ResponseWriter, err error) {
	var over *ledger.OverReleaseError
	switch {
	case errors.As(err, &over):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     over.Error(),
			Requested: over.Requested,
			Available: over.Available,
		})
	case errors.Is(err, ledger.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pginspections.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, releases.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

func pathID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid inspection id")
	}
	return id, nil
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
