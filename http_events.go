package courier

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// eventsHandler serves a page of the audit log in append order.
// Query parameters: offset, limit, kind (optional filter).
func (s *HTTPServer) eventsHandler(w http.ResponseWriter, r *http.Request) {
	offset, limit := pagination(r)
	kind := r.URL.Query().Get("kind")

	log := s.core.Events()
	events := log.List(offset, limit, kind)

	total := log.Len()
	if kind != "" {
		total = log.CountsByKind()[kind]
	}

	writeJSON(w, map[string]interface{}{
		"total":    total,
		"count":    len(events),
		"events":   events,
		"has_more": offset+len(events) < total,
		"offset":   offset,
		"limit":    limit,
	})
}

// eventsLiveHandler upgrades to a websocket and streams every event
// appended from now on. Slow consumers miss events rather than stall
// the core; auditors that need completeness page /events instead.
func (s *HTTPServer) eventsLiveHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	events, cancel := s.core.Events().Subscribe(256)

	// Read loop only to detect the peer closing.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logrus.Debugf("event stream closed: %v", err)
				}
				return
			}
		}
	}()

	go func() {
		defer conn.Close()
		for e := range events {
			if err := conn.WriteJSON(e); err != nil {
				cancel()
				return
			}
		}
	}()
}
