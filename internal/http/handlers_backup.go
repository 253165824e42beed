package http

import (
	"errors"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/services"
)

func (s *Server) handleBackupExport(w http.ResponseWriter, r *http.Request) {
	snap := s.backup.Export()
	w.Header().Set("Content-Disposition", `attachment; filename="tally-backup.json"`)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleBackupImport(w http.ResponseWriter, r *http.Request) {
	mode := services.ImportMode(strings.TrimSpace(r.URL.Query().Get("mode")))
	if mode == "" {
		mode = services.ImportMerge
	}

	var snap core.Snapshot
	if err := decodeJSON(r, &snap); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.backup.Import(r.Context(), snap, mode)
	if err != nil {
		if errors.Is(err, services.ErrUnknownImportMode) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeDomainError(w, err)
		return
	}

	// An import can touch any month; the caches cannot be invalidated
	// selectively, so they restart empty.
	s.statsCache.Purge()
	s.progressCache.Purge()

	log.FromContext(r.Context()).InfoContext(r.Context(), "Backup imported",
		log.FieldOperation, log.OpImport, "mode", string(mode))
	writeJSON(w, http.StatusOK, stats)
}
