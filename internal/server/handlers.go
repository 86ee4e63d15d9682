package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shadedclan/killboard/internal/domain"
	"github.com/shadedclan/killboard/internal/locking"
	"github.com/shadedclan/killboard/internal/modules/leaderboard"
	kbsync "github.com/shadedclan/killboard/internal/modules/sync"
	"github.com/shadedclan/killboard/pkg/weekwindow"
)

const (
	defaultBoardLimit = 10
	maxBoardLimit     = 100
)

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "killboard",
	})
}

// handleStatus reports sync, lock and storage state for dashboards.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	lastSync, err := s.state.LastSync()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read sync state")
		return
	}

	alert, err := s.state.Alert()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read alert state")
		return
	}

	lock, err := s.locks.Status(kbsync.JobName)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read lock state")
		return
	}

	matchCount, killRows, err := s.matches.Counts()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to read match counts")
		return
	}

	week := weekwindow.Current(s.now())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"last_sync":  lastSync,
		"last_error": alert,
		"lock":       lock,
		"week": map[string]string{
			"start": week.StartZ(),
			"end":   week.EndZ(),
		},
		"matches":        matchCount,
		"player_matches": killRows,
	})
}

// handleAlertConsume hands the pending sync failure to an external notifier
// (the Discord bridge polls this). Each error occurrence is delivered exactly
// once: consuming advances the notified marker, so repeat polls get 204 until
// a new failure is recorded.
func (s *Server) handleAlertConsume(w http.ResponseWriter, r *http.Request) {
	alert, err := s.state.ConsumeAlert()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to consume alert")
		return
	}
	if alert == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

// handleLeaderboard serves the live board for the running week.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	scope, limit := boardParams(r)
	week := weekwindow.Current(s.now())

	rows, err := s.board.Fetch(leaderboard.Query{
		ClanID:   s.cfg.ClanID,
		Platform: s.cfg.Shard,
		StartUTC: week.StartZ(),
		EndUTC:   week.EndZ(),
		Scope:    scope,
		Limit:    limit,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Leaderboard query failed")
		s.writeError(w, http.StatusInternalServerError, "failed to compute leaderboard")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"week_start": week.StartZ(),
		"week_end":   week.EndZ(),
		"scope":      scope,
		"frozen":     false,
		"rows":       rows,
	})
}

// handleLeaderboardLast serves the previous week: the frozen snapshot when one
// exists, otherwise a live computation over the same window.
func (s *Server) handleLeaderboardLast(w http.ResponseWriter, r *http.Request) {
	scope, limit := boardParams(r)
	week := weekwindow.Previous(s.now())

	snap, err := s.snapshots.Fetch(s.cfg.ClanID, s.cfg.Shard, week.StartZ(), scope, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("Snapshot lookup failed")
		s.writeError(w, http.StatusInternalServerError, "failed to read snapshot")
		return
	}
	if snap != nil {
		s.writeJSON(w, http.StatusOK, map[string]interface{}{
			"week_start": snap.WeekStart,
			"week_end":   snap.WeekEnd,
			"scope":      snap.Scope,
			"frozen":     true,
			"rows":       snap.Rows,
		})
		return
	}

	rows, err := s.board.Fetch(leaderboard.Query{
		ClanID:   s.cfg.ClanID,
		Platform: s.cfg.Shard,
		StartUTC: week.StartZ(),
		EndUTC:   week.EndZ(),
		Scope:    scope,
		Limit:    limit,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Leaderboard query failed")
		s.writeError(w, http.StatusInternalServerError, "failed to compute leaderboard")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"week_start": week.StartZ(),
		"week_end":   week.EndZ(),
		"scope":      scope,
		"frozen":     false,
		"rows":       rows,
	})
}

// handleSyncNow triggers a sync run inline. A held lock means a run is
// already in flight and maps to 409.
func (s *Server) handleSyncNow(w http.ResponseWriter, r *http.Request) {
	outcome, err := s.syncJob.Run(r.Context())
	if err != nil {
		if errors.Is(err, locking.ErrLockHeld) {
			s.writeError(w, http.StatusConflict, "sync already running")
			return
		}
		s.log.Error().Err(err).Msg("On-demand sync failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, outcome)
}

// handleRosterList lists the active roster.
func (s *Server) handleRosterList(w http.ResponseWriter, r *http.Request) {
	members, err := s.roster.ActiveMembers(s.cfg.ClanID, s.cfg.Shard)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to load roster")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"clan_id": s.cfg.ClanID,
		"members": members,
	})
}

type registerRequest struct {
	AccountID  string `json:"account_id"`
	PlayerName string `json:"player_name"`
	Role       string `json:"role"`
}

// handleRosterRegister adds or reactivates a tracked member.
func (s *Server) handleRosterRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.AccountID = strings.TrimSpace(req.AccountID)
	req.PlayerName = strings.TrimSpace(req.PlayerName)
	if req.AccountID == "" || req.PlayerName == "" {
		s.writeError(w, http.StatusBadRequest, "account_id and player_name are required")
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}

	if err := s.roster.RegisterMember(s.cfg.ClanID, s.cfg.Shard, req.AccountID, req.PlayerName, req.Role); err != nil {
		s.log.Error().Err(err).Str("account_id", req.AccountID).Msg("Roster registration failed")
		s.writeError(w, http.StatusInternalServerError, "failed to register member")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]string{
		"account_id":  req.AccountID,
		"player_name": req.PlayerName,
		"status":      "registered",
	})
}

// handleRosterDeactivate marks a member inactive, preserving history.
func (s *Server) handleRosterDeactivate(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	if accountID == "" {
		s.writeError(w, http.StatusBadRequest, "account id is required")
		return
	}

	if err := s.roster.DeactivateMember(s.cfg.ClanID, s.cfg.Shard, accountID); err != nil {
		s.log.Error().Err(err).Str("account_id", accountID).Msg("Roster deactivation failed")
		s.writeError(w, http.StatusInternalServerError, "failed to deactivate member")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{
		"account_id": accountID,
		"status":     "deactivated",
	})
}

// handlePlayerStats serves the current-season stat summary for one player.
func (s *Server) handlePlayerStats(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		s.writeError(w, http.StatusBadRequest, "player name is required")
		return
	}

	mode := r.URL.Query().Get("mode")
	ranked := r.URL.Query().Get("ranked") == "true"

	summary, err := s.stats.Summary(r.Context(), name, mode, ranked)
	if err != nil {
		s.log.Error().Err(err).Str("player", name).Msg("Stats lookup failed")
		s.writeError(w, http.StatusBadGateway, "failed to fetch player stats")
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

// boardParams parses the shared scope/limit query parameters.
func boardParams(r *http.Request) (domain.Scope, int) {
	scope := domain.ParseScope(r.URL.Query().Get("scope"))

	limit := defaultBoardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxBoardLimit {
		limit = maxBoardLimit
	}
	return scope, limit
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
