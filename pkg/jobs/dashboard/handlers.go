package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/JailtonJunior94/jobkit-go/pkg/jobs"
	"github.com/JailtonJunior94/jobkit-go/pkg/observability"
	"github.com/go-chi/chi/v5"
)

type overviewResponse struct {
	Title    string     `json:"title"`
	AppPath  string     `json:"app_path"`
	ReadOnly bool       `json:"read_only"`
	Stats    jobs.Stats `json:"stats"`
	Links    []string   `json:"links"`
}

type listResponse struct {
	State    jobs.State  `json:"state,omitempty"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Jobs     []*jobs.Job `json:"jobs"`
}

type recurringResponse struct {
	ID            string    `json:"id"`
	Spec          string    `json:"spec"`
	Type          string    `json:"type"`
	Queue         string    `json:"queue"`
	NextExecution time.Time `json:"next_execution"`
}

func (dc *Context) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		writeError(r.Context(), dc.Logger, w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrRecurringNotFound):
		writeError(r.Context(), dc.Logger, w, http.StatusNotFound, "recurring job not found")
	default:
		dc.Logger.Error(r.Context(), "dashboard request failed",
			observability.String("op", op),
			observability.Error(err),
		)
		writeError(r.Context(), dc.Logger, w, http.StatusInternalServerError, "internal server error")
	}
}

func (dc *Context) stats(r *http.Request) (jobs.Stats, error) {
	s, err := dc.Storage.Stats(r.Context())
	if err != nil {
		return s, err
	}
	s.Recurring = int64(len(dc.Configuration.RecurringJobs()))
	return s, nil
}

func overview(w http.ResponseWriter, r *http.Request, dc *Context) {
	s, err := dc.stats(r)
	if err != nil {
		dc.fail(w, r, "overview", err)
		return
	}
	writeJSON(r.Context(), dc.Logger, w, http.StatusOK, overviewResponse{
		Title:    dc.Options.Title,
		AppPath:  dc.Options.AppPath,
		ReadOnly: dc.Options.IsReadOnly,
		Stats:    s,
		Links:    []string{"api/stats", "api/jobs", "api/servers", "api/recurring", "metrics"},
	})
}

func stats(w http.ResponseWriter, r *http.Request, dc *Context) {
	s, err := dc.stats(r)
	if err != nil {
		dc.fail(w, r, "stats", err)
		return
	}
	writeJSON(r.Context(), dc.Logger, w, http.StatusOK, s)
}

func listJobs(w http.ResponseWriter, r *http.Request, dc *Context) {
	query := r.URL.Query()

	var state jobs.State
	if raw := query.Get("state"); raw != "" {
		parsed, err := jobs.ParseState(raw)
		if err != nil {
			writeError(r.Context(), dc.Logger, w, http.StatusBadRequest, err.Error())
			return
		}
		state = parsed
	}

	page := 1
	if raw := query.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(r.Context(), dc.Logger, w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = n
	}

	size := dc.Options.pageSize()
	list, err := dc.Storage.List(r.Context(), state, (page-1)*size, size)
	if err != nil {
		dc.fail(w, r, "list_jobs", err)
		return
	}

	writeJSON(r.Context(), dc.Logger, w, http.StatusOK, listResponse{
		State:    state,
		Page:     page,
		PageSize: size,
		Jobs:     list,
	})
}

func getJob(w http.ResponseWriter, r *http.Request, dc *Context) {
	job, err := dc.Storage.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		dc.fail(w, r, "get_job", err)
		return
	}
	writeJSON(r.Context(), dc.Logger, w, http.StatusOK, job)
}

func requeueJob(w http.ResponseWriter, r *http.Request, dc *Context) {
	changeJob(w, r, dc, "requeue_job", dc.Storage.Requeue)
}

func deleteJob(w http.ResponseWriter, r *http.Request, dc *Context) {
	changeJob(w, r, dc, "delete_job", dc.Storage.Delete)
}

func changeJob(w http.ResponseWriter, r *http.Request, dc *Context, op string, change func(ctx context.Context, id string) error) {
	id := chi.URLParam(r, "id")
	if err := change(r.Context(), id); err != nil {
		dc.fail(w, r, op, err)
		return
	}

	job, err := dc.Storage.Get(r.Context(), id)
	if err != nil {
		dc.fail(w, r, op, err)
		return
	}

	dc.Logger.Info(r.Context(), "job changed from dashboard",
		observability.String("op", op),
		observability.String("job_id", id),
		observability.String("state", string(job.State)),
	)
	writeJSON(r.Context(), dc.Logger, w, http.StatusOK, job)
}

func servers(w http.ResponseWriter, r *http.Request, dc *Context) {
	list, err := dc.Storage.Servers(r.Context())
	if err != nil {
		dc.fail(w, r, "servers", err)
		return
	}
	writeJSON(r.Context(), dc.Logger, w, http.StatusOK, list)
}

func listRecurring(w http.ResponseWriter, r *http.Request, dc *Context) {
	now := time.Now().UTC()
	recurring := dc.Configuration.RecurringJobs()

	list := make([]recurringResponse, 0, len(recurring))
	for _, rj := range recurring {
		list = append(list, recurringResponse{
			ID:            rj.ID,
			Spec:          rj.Spec,
			Type:          rj.Type,
			Queue:         rj.Queue,
			NextExecution: rj.Next(now),
		})
	}
	writeJSON(r.Context(), dc.Logger, w, http.StatusOK, list)
}

func triggerRecurring(w http.ResponseWriter, r *http.Request, dc *Context) {
	rj, ok := dc.Configuration.Recurring(chi.URLParam(r, "id"))
	if !ok {
		dc.fail(w, r, "trigger_recurring", jobs.ErrRecurringNotFound)
		return
	}

	job, err := dc.Client.Trigger(r.Context(), rj)
	if err != nil {
		dc.fail(w, r, "trigger_recurring", err)
		return
	}
	writeJSON(r.Context(), dc.Logger, w, http.StatusCreated, job)
}

func metrics(w http.ResponseWriter, r *http.Request, dc *Context) {
	dc.metrics.ServeHTTP(w, r)
}
