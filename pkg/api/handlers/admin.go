package handlers

import (
	"net/http"

	"dialogd/pkg/logger"
	"dialogd/pkg/store"
	"dialogd/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterAdmin registers operational routes restricted to backend and
// admin API keys.
func RegisterAdmin(r *mux.Router) {
	r.HandleFunc("/stats", getStats).Methods(http.MethodGet)
	r.HandleFunc("/admin/sweep", runSweep).Methods(http.MethodPost)
}

func requireOperator(w http.ResponseWriter, r *http.Request) bool {
	role := r.Header.Get("X-Role-Name")
	if role != "backend" && role != "admin" {
		utils.JSONError(w, http.StatusForbidden, "forbidden")
		return false
	}
	return true
}

// getStats handles GET /stats with whole-store counters.
func getStats(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	threads, err := store.CountThreads()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	msgs, err := store.CountMessages()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Threads  int    `json:"threads"`
		Messages int    `json:"messages"`
		DBPath   string `json:"db_path"`
	}{Threads: threads, Messages: msgs, DBPath: store.DBPath()})
}

// runSweep handles POST /admin/sweep: removes orphaned message rows and
// stale pair entries on demand. ?dry_run=true reports without deleting.
func runSweep(w http.ResponseWriter, r *http.Request) {
	if !requireOperator(w, r) {
		return
	}
	dryRun := r.URL.Query().Get("dry_run") == "true"
	n, err := store.SweepOrphans(dryRun)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("sweep_triggered", "removed", n, "dry_run", dryRun)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Removed int  `json:"removed"`
		DryRun  bool `json:"dry_run"`
	}{Removed: n, DryRun: dryRun})
}
