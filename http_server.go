package courier

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// callerHeader carries the caller's address. Transport authentication
// is out of scope for the core; deployments put a verifying proxy or
// the client SDK's signature layer in front of this server.
const callerHeader = "X-Courier-Address"

// HTTPServer exposes the core's operation surface as a JSON API plus
// the audit endpoints (/events, /events/live, /metrics, /status.json).
type HTTPServer struct {
	core      *Core
	publicKey string // base64 event-signing key, empty when unsigned
	startTime time.Time
	upgrader  websocket.Upgrader
}

// NewHTTPServer wires a server to the core.
func NewHTTPServer(core *Core, publicKey string) *HTTPServer {
	return &HTTPServer{
		core:      core,
		publicKey: publicKey,
		startTime: time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Router builds the route table.
func (s *HTTPServer) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/profile", s.createProfileHandler).Methods("POST")
	r.HandleFunc("/profile/{address}", s.getProfileHandler).Methods("GET")

	r.HandleFunc("/messages", s.sendMessageHandler).Methods("POST")
	r.HandleFunc("/messages/{id}", s.getMessageHandler).Methods("GET")
	r.HandleFunc("/messages/{id}", s.deleteMessageHandler).Methods("DELETE")
	r.HandleFunc("/messages/{id}/report", s.reportMessageHandler).Methods("POST")
	r.HandleFunc("/messages/{id}/reporters", s.reportersHandler).Methods("GET")

	r.HandleFunc("/users/{address}/messages", s.userMessagesHandler).Methods("GET")
	r.HandleFunc("/conversations/{a}/{b}", s.conversationHandler).Methods("GET")

	r.HandleFunc("/block/{address}", s.blockHandler).Methods("POST")
	r.HandleFunc("/block/{address}", s.unblockHandler).Methods("DELETE")
	r.HandleFunc("/follow/{address}", s.followHandler).Methods("POST")
	r.HandleFunc("/follow/{address}", s.unfollowHandler).Methods("DELETE")
	r.HandleFunc("/blocked/{a}/{b}", s.isBlockedHandler).Methods("GET")
	r.HandleFunc("/following/{a}/{b}", s.isFollowingHandler).Methods("GET")

	r.HandleFunc("/withdraw", s.withdrawHandler).Methods("POST")

	r.HandleFunc("/events", s.eventsHandler).Methods("GET")
	r.HandleFunc("/events/live", s.eventsLiveHandler).Methods("GET")

	r.HandleFunc("/stats.json", s.statsHandler).Methods("GET")
	r.HandleFunc("/status.json", s.statusHandler).Methods("GET")
	r.HandleFunc("/metrics", s.metricsHandler).Methods("GET")

	return r
}

// Start listens and serves until the listener dies.
func (s *HTTPServer) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen error: %w", err)
	}
	logrus.Infof("🌐 courier API listening on %s", listener.Addr())
	return http.Serve(listener, s.Router())
}

// caller extracts the calling address from the request header.
func caller(r *http.Request) string {
	return r.Header.Get(callerHeader)
}

// writeJSON encodes a payload, logging instead of failing the request
// when the client went away mid-write.
func writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.WithError(err).Warn("Failed to encode response")
	}
}

// writeError maps the core's error taxonomy onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(httpStatusFor(err))
	if encodeErr := json.NewEncoder(w).Encode(map[string]string{"error": err.Error()}); encodeErr != nil {
		logrus.WithError(encodeErr).Warn("Failed to encode error response")
	}
}
