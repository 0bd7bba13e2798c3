package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rmarchant/rebal-backend/internal/config"
	"github.com/rmarchant/rebal-backend/internal/engine"
)

const maxConfigBody = 1 << 20

// redacted strips the admin token before a config leaves the API.
func redacted(rt *config.Runtime) *config.Runtime {
	out := *rt
	out.AdminToken = ""
	return &out
}

func (s *Server) handleConfigGet(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfgs.Read()
	if err != nil {
		fmt.Printf("Error reading runtime config: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to read config")
		return
	}
	writeJSON(w, http.StatusOK, redacted(cfg))
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	next, err := config.DecodeRuntime(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Callers may omit the token; keep the one already in force.
	if next.AdminToken == "" {
		cur, err := s.cfgs.Read()
		if err != nil {
			fmt.Printf("Error reading runtime config: %v\n", err)
			writeError(w, http.StatusInternalServerError, "failed to read config")
			return
		}
		next.AdminToken = cur.AdminToken
	}

	stored, err := s.cfgs.Write(next)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fmt.Println("[API] Runtime config updated")
	writeJSON(w, http.StatusOK, redacted(stored))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfgs.SetPaused(true)
	if err != nil {
		fmt.Printf("Error pausing: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to update config")
		return
	}
	fmt.Println("[API] Trading paused")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": cfg.Paused})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfgs.SetPaused(false)
	if err != nil {
		fmt.Printf("Error resuming: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to update config")
		return
	}
	fmt.Println("[API] Trading resumed")
	writeJSON(w, http.StatusOK, map[string]bool{"paused": cfg.Paused})
}

// handleStatus runs a read-only tick: a full snapshot plus what the engine
// would do right now, without sending anything on-chain.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfgs.Read()
	if err != nil {
		fmt.Printf("Error reading runtime config: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to read config")
		return
	}

	res, err := s.engine.DryRun(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, engine.ErrBusy) {
			writeError(w, http.StatusConflict, "a tick is already running")
			return
		}
		fmt.Printf("Error running status tick: %v\n", err)
		writeError(w, http.StatusInternalServerError, "status tick failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRunOnce(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.cfgs.Read()
	if err != nil {
		fmt.Printf("Error reading runtime config: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to read config")
		return
	}

	res, err := s.engine.RunTick(r.Context(), cfg)
	if err != nil {
		if errors.Is(err, engine.ErrBusy) {
			writeError(w, http.StatusConflict, "a tick is already running")
			return
		}
		fmt.Printf("Error running tick: %v\n", err)
		writeError(w, http.StatusInternalServerError, "tick failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
