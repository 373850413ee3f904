package db

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/bpm-calibrate/internal/httputil"
)

// AttachAPIRoutes serves the ledger as JSON:
//
//	GET /api/sweeps?limit=N
//	GET /api/runs?sweep=ID&failed=true&limit=N
func (db *DB) AttachAPIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/sweeps", db.handleSweeps)
	mux.HandleFunc("/api/runs", db.handleRuns)
}

func (db *DB) handleSweeps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	sweeps, err := db.ListSweeps(r.Context(), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if sweeps == nil {
		sweeps = []Sweep{}
	}
	httputil.WriteJSON(w, http.StatusOK, sweeps)
}

func (db *DB) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	q := RunQuery{SweepID: r.URL.Query().Get("sweep")}
	var err error
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if v := r.URL.Query().Get("failed"); v != "" {
		if q.FailedOnly, err = strconv.ParseBool(v); err != nil {
			httputil.BadRequest(w, "invalid failed value: "+v)
			return
		}
	}
	runs, err := db.ListRuns(r.Context(), q)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []Run{}
	}
	httputil.WriteJSON(w, http.StatusOK, runs)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s value: %q", key, v)
	}
	return n, nil
}
