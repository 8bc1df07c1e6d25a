package activity

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/spendwise/pkg/auth"
	"github.com/platinummonkey/spendwise/pkg/httputil"
	"github.com/platinummonkey/spendwise/pkg/middleware"
)

// Handlers provides HTTP handlers for the activity API
type Handlers struct {
	service *Service
	now     func() time.Time
}

// NewHandlers creates new activity handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service, now: time.Now}
}

// RegisterRoutes registers activity routes on a router whose requests are
// already authenticated
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	adminOnly := middleware.RequireRole(auth.RoleAdmin)

	router.HandleFunc("/activities", h.search).Methods("GET")
	router.HandleFunc("/activities/my-activities", h.myActivities).Methods("GET")
	router.HandleFunc("/activities/types", h.typeStats).Methods("GET")
	router.HandleFunc("/activities/statistics", h.statistics).Methods("GET")
	router.Handle("/activities/recent", adminOnly(http.HandlerFunc(h.recent))).Methods("GET")
	router.Handle("/activities/clean", adminOnly(http.HandlerFunc(h.clean))).Methods("POST")
	router.HandleFunc("/activities/export", h.export).Methods("GET")
	router.HandleFunc("/activities/export/preview", h.exportPreview).Methods("GET")
}

// search handles GET /activities
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	page, err := h.service.Search(r.Context(), filter, callerOf(r))
	if err != nil {
		writeServiceError(w, r, "failed to search activities", err)
		return
	}
	httputil.WriteSuccess(w, page)
}

// myActivities handles GET /activities/my-activities
func (h *Handlers) myActivities(w http.ResponseWriter, r *http.Request) {
	page, limit, err := httputil.ParsePagination(r, defaultPageLimit, maxPageLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	result, err := h.service.MyActivities(r.Context(), callerOf(r), page, limit)
	if err != nil {
		writeServiceError(w, r, "failed to load activities", err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// typeStats handles GET /activities/types
func (h *Handlers) typeStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	counts, err := h.service.StatsByType(r.Context(), filter, callerOf(r))
	if err != nil {
		writeServiceError(w, r, "failed to count activity types", err)
		return
	}
	httputil.WriteSuccess(w, counts)
}

// statistics handles GET /activities/statistics
func (h *Handlers) statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context(), callerOf(r))
	if err != nil {
		writeServiceError(w, r, "failed to load activity statistics", err)
		return
	}
	httputil.WriteSuccess(w, stats)
}

// recent handles GET /activities/recent
func (h *Handlers) recent(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", maxPageLimit)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	entries, err := h.service.Recent(r.Context(), limit, callerOf(r))
	if err != nil {
		writeServiceError(w, r, "failed to load recent activities", err)
		return
	}
	httputil.WriteSuccess(w, entries)
}

type cleanRequest struct {
	Days int `json:"days"`
}

// clean handles POST /activities/clean. An empty body uses the retention default.
func (h *Handlers) clean(w http.ResponseWriter, r *http.Request) {
	var req cleanRequest
	if err := httputil.ParseJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Days < 0 {
		httputil.WriteValidationError(w, "days must be positive")
		return
	}

	deleted, err := h.service.PurgeOlderThan(r.Context(), req.Days, callerOf(r))
	if err != nil {
		writeServiceError(w, r, "failed to clean activities", err)
		return
	}
	httputil.WriteSuccessMessage(w,
		fmt.Sprintf("removed %d activity records", deleted),
		map[string]int64{"deleted": deleted})
}

type exportMetadata struct {
	ExportDate   time.Time `json:"export_date"`
	TotalRecords int       `json:"total_records"`
	ExportedBy   string    `json:"exported_by"`
}

type exportResponse struct {
	Success  bool           `json:"success"`
	Data     []*Entry       `json:"data"`
	Metadata exportMetadata `json:"metadata"`
}

// export handles GET /activities/export?format=csv|json
func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	format := ExportFormat(httputil.ParseQueryString(r, "format", string(ExportFormatCSV)))
	if format != ExportFormatCSV && format != ExportFormatJSON {
		httputil.WriteBadRequest(w, "format must be csv or json")
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ac := middleware.GetAuthContext(r)
	caller := callerOf(r)

	entries, err := h.service.Export(r.Context(), filter, caller)
	if err != nil {
		writeServiceError(w, r, "failed to export activities", err)
		return
	}

	q := r.URL.Query()
	rec := RequestRecord(r, caller.UserID, TypeExportData, fmt.Sprintf("exported activity log (%s)", format))
	rec.Metadata = map[string]interface{}{
		"format":        string(format),
		"start_date":    q.Get("start_date"),
		"end_date":      q.Get("end_date"),
		"activity_type": q.Get("activity_type"),
		"record_count":  len(entries),
	}
	h.service.Record(r.Context(), rec)

	now := h.now()
	if format == ExportFormatJSON {
		exportedBy := ""
		if ac != nil && ac.User != nil {
			exportedBy = ac.User.Username
		}
		httputil.WriteJSON(w, http.StatusOK, exportResponse{
			Success: true,
			Data:    entries,
			Metadata: exportMetadata{
				ExportDate:   now,
				TotalRecords: len(entries),
				ExportedBy:   exportedBy,
			},
		})
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=activity-logs-%s.csv", now.Format("2006-01-02")))
	w.WriteHeader(http.StatusOK)
	if err := writeCSV(w, entries); err != nil {
		httputil.LogAndWriteInternalError(w, r, "failed to write export", err)
	}
}

// exportPreview handles GET /activities/export/preview
func (h *Handlers) exportPreview(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	preview, err := h.service.Preview(r.Context(), filter, callerOf(r))
	if err != nil {
		writeServiceError(w, r, "failed to preview export", err)
		return
	}
	httputil.WriteSuccess(w, preview)
}

func callerOf(r *http.Request) Caller {
	return CallerFrom(middleware.GetAuthContext(r))
}

func writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		httputil.WriteForbidden(w, err.Error())
	case errors.Is(err, ErrInvalidFilter):
		httputil.WriteBadRequest(w, "sort_by must be one of created_at, activity_type, ip_address, id and sort_order asc or desc")
	default:
		httputil.LogAndWriteInternalError(w, r, msg, err)
	}
}

// parseFilter reads the shared query parameters. Dates are RFC 3339 or
// YYYY-MM-DD; a date-only end_date covers that whole day.
func parseFilter(r *http.Request) (SearchFilter, error) {
	page, limit, err := httputil.ParsePagination(r, defaultPageLimit, maxPageLimit)
	if err != nil {
		return SearchFilter{}, err
	}

	q := r.URL.Query()
	filter := SearchFilter{
		Type:      Type(q.Get("activity_type")),
		Text:      q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
		Page:      page,
		Limit:     limit,
	}

	if s := q.Get("start_date"); s != "" {
		t, _, err := parseDate(s)
		if err != nil {
			return SearchFilter{}, fmt.Errorf("invalid start_date: %s", s)
		}
		filter.StartDate = &t
	}

	if s := q.Get("end_date"); s != "" {
		t, dateOnly, err := parseDate(s)
		if err != nil {
			return SearchFilter{}, fmt.Errorf("invalid end_date: %s", s)
		}
		if dateOnly {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		filter.EndDate = &t
	}

	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return SearchFilter{}, errors.New("end_date is before start_date")
	}

	return filter, nil
}

func parseDate(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
