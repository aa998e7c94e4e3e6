// Package api exposes the read-only settlement mirror: batched filled-amount
// lookups over the same ledger layout the engine writes, plus a websocket
// stream of committed audit events. It has no write endpoints.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/clearport/pkg/order"
	"github.com/uhyunpark/clearport/pkg/settlement"
	"github.com/uhyunpark/clearport/pkg/storage"
)

// Server serves the REST mirror and the websocket event stream.
type Server struct {
	log    *zap.Logger
	store  *storage.LedgerStore
	domain order.Domain
	router *mux.Router
	hub    *Hub
}

func NewServer(log *zap.Logger, store *storage.LedgerStore, domain order.Domain) *Server {
	s := &Server{
		log:    log,
		store:  store,
		domain: domain,
		router: mux.NewRouter(),
		hub:    NewHub(log),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders/filled", s.handleFilledAmounts).Methods("POST")
	api.HandleFunc("/orders/{uid}/filled", s.handleFilledAmount).Methods("GET")
	api.HandleFunc("/domain", s.handleDomain).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the websocket hub and blocks serving HTTP.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	s.log.Info("mirror_listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// Handler returns the HTTP handler, for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Publish implements settlement.Sink: committed audit events are broadcast
// to websocket subscribers.
func (s *Server) Publish(ev settlement.Event) {
	message, err := json.Marshal(EventMessage{Channel: ev.Name(), Data: ev})
	if err != nil {
		s.log.Warn("event_marshal_failed", zap.Error(err))
		return
	}
	s.hub.Broadcast(message)
}

func (s *Server) handleFilledAmounts(w http.ResponseWriter, r *http.Request) {
	var req FilledAmountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	uids := make([]order.UID, len(req.UIDs))
	for i, raw := range req.UIDs {
		uid, err := order.ParseUIDHex(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		uids[i] = uid
	}

	amounts, err := s.store.FilledAmounts(uids)
	if err != nil {
		s.log.Error("filled_amounts_lookup_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}

	resp := FilledAmountsResponse{Amounts: make([]string, len(amounts))}
	for i, amount := range amounts {
		resp.Amounts[i] = amount.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFilledAmount(w http.ResponseWriter, r *http.Request) {
	uid, err := order.ParseUIDHex(mux.Vars(r)["uid"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := s.store.FilledAmount(uid)
	if err != nil {
		s.log.Error("filled_amount_lookup_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}
	preSigned, err := s.store.IsPreSigned(uid)
	if err != nil {
		s.log.Error("presig_lookup_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ledger read failed")
		return
	}

	writeJSON(w, http.StatusOK, FilledAmountResponse{
		UID:       uid.String(),
		Amount:    amount.String(),
		PreSigned: preSigned,
	})
}

func (s *Server) handleDomain(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, DomainResponse{
		Name:              s.domain.Name,
		Version:           s.domain.Version,
		ChainID:           s.domain.ChainID.String(),
		VerifyingContract: s.domain.VerifyingContract.Hex(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
