package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/nvale/orgchat/pkg/rag"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

// Request is one client message over the socket.
type Request struct {
	Type         string  `json:"type"` // "query", "ingest", "history", "clear", "organizations"
	Organization string  `json:"organization,omitempty"`
	SessionID    string  `json:"session_id,omitempty"`
	Query        string  `json:"query,omitempty"`
	URL          string  `json:"url,omitempty"`
	TopK         int     `json:"top_k,omitempty"`
	Threshold    float32 `json:"threshold,omitempty"`
	Rerank       bool    `json:"rerank,omitempty"`
}

// Response is one server message over the socket.
type Response struct {
	Type    string      `json:"type"` // "answer", "status", "error"
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Server is a thin WebSocket facade over the answering pipeline. Each client
// message runs as its own request against the orchestrator; the pipeline
// itself carries all concurrency guarantees.
type Server struct {
	orchestrator *rag.Orchestrator
}

func New(orchestrator *rag.Orchestrator) *Server {
	return &Server{orchestrator: orchestrator}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("Error reading message: %v", err)
			break
		}

		var req Request
		if err := json.Unmarshal(message, &req); err != nil {
			s.send(conn, Response{Type: "error", Content: "invalid message"})
			continue
		}
		s.handleRequest(r.Context(), conn, req)
	}
}

func (s *Server) handleRequest(ctx context.Context, conn *websocket.Conn, req Request) {
	switch req.Type {
	case "query":
		result, err := s.orchestrator.Query(ctx, rag.QueryRequest{
			Organization: req.Organization,
			SessionID:    req.SessionID,
			Query:        req.Query,
			TopK:         req.TopK,
			Threshold:    req.Threshold,
			Rerank:       req.Rerank,
		})
		if err != nil {
			s.send(conn, Response{Type: "error", Content: err.Error()})
			return
		}
		s.send(conn, Response{Type: "answer", Content: result.Answer, Data: result})

	case "ingest":
		s.send(conn, Response{Type: "status", Content: "ingesting " + req.URL})
		count, err := s.orchestrator.IngestSource(ctx, req.Organization, req.URL, 0, 0)
		if err != nil {
			s.send(conn, Response{Type: "error", Content: err.Error()})
			return
		}
		s.send(conn, Response{Type: "status", Content: "indexed", Data: map[string]int{"chunks_indexed": count}})

	case "history":
		s.send(conn, Response{Type: "history", Data: s.orchestrator.GetHistory(req.SessionID)})

	case "clear":
		s.orchestrator.ClearHistory(req.SessionID)
		s.send(conn, Response{Type: "status", Content: "history cleared"})

	case "organizations":
		orgs, err := s.orchestrator.ListOrganizations(ctx)
		if err != nil {
			s.send(conn, Response{Type: "error", Content: err.Error()})
			return
		}
		s.send(conn, Response{Type: "organizations", Data: orgs})

	default:
		s.send(conn, Response{Type: "error", Content: "unknown request type"})
	}
}

func (s *Server) send(conn *websocket.Conn, resp Response) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// Run registers the socket and health endpoints and serves until the
// listener fails.
func (s *Server) Run(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.orchestrator.GetStats())
	})

	log.Printf("Starting server on %s", addr)
	return http.ListenAndServe(addr, mux)
}
