// Package server exposes a deployed vault over HTTP.
//
// Mutating requests are authenticated with an HS256 bearer token whose
// subject is the caller's address, and run one at a time.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/jvs-project/timelock/internal/ledger"
	"github.com/jvs-project/timelock/pkg/logging"
	"github.com/jvs-project/timelock/pkg/model"
	"github.com/jvs-project/timelock/pkg/timelock"
)

// ErrNoKey is returned by New without a token key.
var ErrNoKey = errors.New("server: a token key is required")

// Options configures a Server.
type Options struct {
	Key    []byte // HS256 key for bearer tokens
	Logger *logging.Logger
}

// Server serves one vault.
type Server struct {
	client *timelock.Client
	key    []byte
	log    *logging.Logger
	router chi.Router

	// mu serializes mutating requests.
	mu sync.Mutex
}

// New builds the router for client.
func New(client *timelock.Client, opts Options) (*Server, error) {
	if len(opts.Key) == 0 {
		return nil, ErrNoKey
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global()
	}
	s := &Server{client: client, key: opts.Key, log: opts.Logger}
	s.router = s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	s.log.Info("listening", map[string]any{"addr": addr, "vault": s.client.Vault().Address().Hex()})
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if reg := s.client.Metrics(); reg != nil {
		r.Method(http.MethodGet, "/metrics", reg.Handler())
	}

	r.Route("/v1", func(api chi.Router) {
		api.Get("/vault", s.handleVault)
		api.Get("/events", s.handleEvents)
		api.Get("/accounts/{address}", s.handleAccount)

		api.Group(func(auth chi.Router) {
			auth.Use(s.authenticate)
			auth.Get("/vault/pending", s.handlePending)
			auth.Post("/deposit", s.handleDeposit)
			auth.Post("/transfer", s.handleTransfer)
			auth.Post("/deposits/toggle", s.mutate(s.client.ToggleDeposits))
			auth.Post("/withdrawals/initiate", s.mutate(s.client.InitiateWithdrawal))
			auth.Post("/withdrawals/execute", s.mutate(s.client.ExecuteWithdrawal))
			auth.Post("/withdrawals/emergency", s.mutate(s.client.EmergencyWithdraw))
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("request", map[string]any{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
		})
	})
}

// publicStatus is the vault state anyone may read.
type publicStatus struct {
	Address             common.Address `json:"address"`
	Owner               common.Address `json:"owner"`
	UnlockTime          time.Time      `json:"unlock_time"`
	EmergencyUnlockTime time.Time      `json:"emergency_unlock_time"`
	DepositsEnabled     bool           `json:"deposits_enabled"`
	Balance             model.Amount   `json:"balance"`
	TimeUntilUnlock     int64          `json:"time_until_unlock_seconds"`
}

func (s *Server) status() publicStatus {
	st := s.client.Status()
	return publicStatus{
		Address:             st.Address,
		Owner:               st.Owner,
		UnlockTime:          st.UnlockTime,
		EmergencyUnlockTime: st.EmergencyUnlockTime,
		DepositsEnabled:     st.DepositsEnabled,
		Balance:             st.Balance,
		TimeUntilUnlock:     int64(st.TimeUntilUnlock / time.Second),
	}
}

type mutationResponse struct {
	Events []model.Event `json:"events"`
	Vault  publicStatus  `json:"vault"`
}

// run executes fn under the request mutex and reports the events it caused.
func (s *Server) run(w http.ResponseWriter, fn func() error) {
	evs, err := s.exec(fn)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Events: evs, Vault: s.status()})
}

func (s *Server) exec(fn func() error) ([]model.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.client.Events())
	err := fn()
	return s.client.Events()[before:], err
}

func (s *Server) mutate(op func(context.Context, common.Address) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := Caller(r.Context())
		s.run(w, func() error { return op(r.Context(), caller) })
	}
}

type amountRequest struct {
	To     string       `json:"to,omitempty"`
	Amount model.Amount `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	caller, _ := Caller(r.Context())
	s.run(w, func() error { return s.client.Deposit(r.Context(), caller, req.Amount) })
}

// handleTransfer sends value from the caller; without "to" it is a bare
// transfer to the vault.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, err.Error())
		return
	}
	to := s.client.Vault().Address()
	if req.To != "" {
		var err error
		if to, err = ledger.Resolve(req.To); err != nil {
			writeVaultError(w, err)
			return
		}
	}
	caller, _ := Caller(r.Context())
	s.run(w, func() error { return s.client.Transfer(r.Context(), caller, to, req.Amount) })
}

func (s *Server) handleVault(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	caller, _ := Caller(r.Context())
	pending, err := s.client.PendingWithdrawal(caller)
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pending":          pending,
		"withdrawal_state": s.client.Vault().WithdrawalState(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	evs := s.client.Events()
	if t := r.URL.Query().Get("type"); t != "" {
		filtered := evs[:0:0]
		for _, ev := range evs {
			if string(ev.Type) == t {
				filtered = append(filtered, ev)
			}
		}
		evs = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := ledger.Resolve(chi.URLParam(r, "address"))
	if err != nil {
		writeVaultError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"address": addr,
		"balance": s.client.BalanceOf(addr),
	})
}
