package courier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/couriernet/courier/types"
)

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidTarget):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotActive), errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyDeleted), errors.Is(err, ErrAlreadyReported),
		errors.Is(err, ErrNotBlocked), errors.Is(err, ErrNotFollowing),
		errors.Is(err, ErrEmptyVault):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

type createProfileRequest struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
	Avatar   string `json:"avatar"`
}

type sendMessageRequest struct {
	Recipient   string `json:"recipient"`
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	Fee         uint64 `json:"fee"`
}

type reportMessageRequest struct {
	Reason string `json:"reason"`
}

func (s *HTTPServer) createProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req createProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", ErrValidation))
		return
	}
	profile, err := s.core.CreateProfile(types.Address(caller(r)), req.Username, req.Bio, req.Avatar)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, profile)
}

func (s *HTTPServer) getProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := s.core.GetUserProfile(types.Address(mux.Vars(r)["address"]))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, profile)
}

func (s *HTTPServer) sendMessageHandler(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", ErrValidation))
		return
	}
	if req.MessageType == "" {
		req.MessageType = "text"
	}
	id, err := s.core.SendMessage(types.Address(caller(r)), types.Address(req.Recipient), req.Content, req.MessageType, req.Fee)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"message_id": id})
}

// messageID parses the {id} path variable.
func messageID(r *http.Request) (types.MessageID, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", raw, ErrValidation)
	}
	return types.MessageID(id), nil
}

func (s *HTTPServer) getMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	msg, err := s.core.GetMessage(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, msg)
}

func (s *HTTPServer) deleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.core.DeleteMessage(types.Address(caller(r)), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"deleted": true})
}

func (s *HTTPServer) reportMessageHandler(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req reportMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", ErrValidation))
		return
	}
	if err := s.core.ReportMessage(types.Address(caller(r)), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"reported": true})
}

func (s *HTTPServer) reportersHandler(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]interface{}{"reporters": s.core.ReportersFor(id)})
}

// pagination parses offset/limit query parameters with the same
// clamping defaults everywhere.
func pagination(r *http.Request) (offset, limit int) {
	limit = 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed >= 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return offset, limit
}

func (s *HTTPServer) userMessagesHandler(w http.ResponseWriter, r *http.Request) {
	addr := types.Address(mux.Vars(r)["address"])
	offset, limit := pagination(r)
	writeJSON(w, map[string]interface{}{
		"messages": s.core.GetUserMessages(addr, offset, limit),
		"total":    s.core.GetUserMessageCount(addr),
		"offset":   offset,
		"limit":    limit,
	})
}

func (s *HTTPServer) conversationHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	a, b := types.Address(vars["a"]), types.Address(vars["b"])
	offset, limit := pagination(r)

	response := map[string]interface{}{
		"messages": s.core.GetConversation(a, b, offset, limit),
		"offset":   offset,
		"limit":    limit,
	}
	if id, exists := s.core.LookupConversation(a, b); exists {
		response["conversation_id"] = id
	}
	writeJSON(w, response)
}

func (s *HTTPServer) blockHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.core.BlockUser(types.Address(caller(r)), types.Address(mux.Vars(r)["address"])); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"blocked": true})
}

func (s *HTTPServer) unblockHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.core.UnblockUser(types.Address(caller(r)), types.Address(mux.Vars(r)["address"])); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"blocked": false})
}

func (s *HTTPServer) followHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.core.FollowUser(types.Address(caller(r)), types.Address(mux.Vars(r)["address"])); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"following": true})
}

func (s *HTTPServer) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.core.UnfollowUser(types.Address(caller(r)), types.Address(mux.Vars(r)["address"])); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]bool{"following": false})
}

func (s *HTTPServer) isBlockedHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, map[string]bool{
		"blocked": s.core.IsUserBlocked(types.Address(vars["a"]), types.Address(vars["b"])),
	})
}

func (s *HTTPServer) isFollowingHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	writeJSON(w, map[string]bool{
		"following": s.core.IsUserFollowing(types.Address(vars["a"]), types.Address(vars["b"])),
	})
}

func (s *HTTPServer) withdrawHandler(w http.ResponseWriter, r *http.Request) {
	amount, err := s.core.Withdraw(types.Address(caller(r)))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]uint64{"amount": amount})
}

func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.core.Snapshot())
}

func (s *HTTPServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	info, _ := host.Info()
	payload := map[string]interface{}{
		"server":         "courier",
		"owner":          s.core.Owner(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
		"stats":          s.core.Snapshot(),
	}
	if s.publicKey != "" {
		payload["event_public_key"] = s.publicKey
	}
	if info != nil {
		payload["host"] = map[string]interface{}{
			"hostname": info.Hostname,
			"os":       info.OS,
			"platform": info.Platform,
			"uptime":   info.Uptime,
		}
	}
	writeJSON(w, payload)
}

func (s *HTTPServer) metricsHandler(w http.ResponseWriter, r *http.Request) {
	var lines []string

	stats := s.core.Snapshot()
	lines = append(lines, "# HELP courier_profiles_total Registered profiles")
	lines = append(lines, "# TYPE courier_profiles_total gauge")
	lines = append(lines, fmt.Sprintf("courier_profiles_total %d", stats.Profiles))
	lines = append(lines, "# HELP courier_messages_total Messages recorded (deleted included)")
	lines = append(lines, "# TYPE courier_messages_total counter")
	lines = append(lines, fmt.Sprintf("courier_messages_total %d", stats.Messages))
	lines = append(lines, "# HELP courier_conversations_total Conversations indexed")
	lines = append(lines, "# TYPE courier_conversations_total counter")
	lines = append(lines, fmt.Sprintf("courier_conversations_total %d", stats.Conversations))
	lines = append(lines, "# HELP courier_blocks_total Block relations currently set")
	lines = append(lines, "# TYPE courier_blocks_total gauge")
	lines = append(lines, fmt.Sprintf("courier_blocks_total %d", stats.Blocks))
	lines = append(lines, "# HELP courier_follows_total Follow relations currently set")
	lines = append(lines, "# TYPE courier_follows_total gauge")
	lines = append(lines, fmt.Sprintf("courier_follows_total %d", stats.Follows))
	lines = append(lines, "# HELP courier_reports_total Messages flagged for moderation")
	lines = append(lines, "# TYPE courier_reports_total counter")
	lines = append(lines, fmt.Sprintf("courier_reports_total %d", stats.Reports))
	lines = append(lines, "# HELP courier_vault_balance Accumulated fee balance")
	lines = append(lines, "# TYPE courier_vault_balance gauge")
	lines = append(lines, fmt.Sprintf("courier_vault_balance %d", stats.VaultBalance))

	lines = append(lines, "# HELP courier_events_total Audit log entries by kind")
	lines = append(lines, "# TYPE courier_events_total counter")
	for kind, count := range s.core.Events().CountsByKind() {
		lines = append(lines, fmt.Sprintf(`courier_events_total{kind="%s"} %d`, kind, count))
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
}
