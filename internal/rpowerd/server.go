package rpowerd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"RackPower/internal/driver"
	"RackPower/internal/power"
	"RackPower/internal/region"
)

// Server is the daemon's control API. Power requests resolve the node
// through the region, hand it to the engine and return the action's
// outcome; operations stay idempotent because identical concurrent
// requests coalesce inside the engine.
type Server struct {
	engine *power.Engine
	region region.Client
	http   *http.Server

	mu    sync.RWMutex
	nodes map[string]region.Node
}

func NewServer(listen string, engine *power.Engine, client region.Client) *Server {
	s := &Server{
		engine: engine,
		region: client,
		nodes:  make(map[string]region.Node),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/power/on", s.handleChange(driver.ChangeOn))
	mux.HandleFunc("/v1/power/off", s.handleChange(driver.ChangeOff))
	mux.HandleFunc("/v1/power/cycle", s.handleChange(driver.ChangeCycle))
	mux.HandleFunc("/v1/power/state", s.handleQuery)
	mux.HandleFunc("/v1/nodes", s.handleNodes)
	mux.HandleFunc("/livez", s.handleLivez)

	s.http = &http.Server{
		Addr:         listen,
		Handler:      s.loggingMiddleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// UpdateNodeCache replaces the cached region node list. The sweeper
// calls it every cycle so power requests rarely need a region round
// trip of their own.
func (s *Server) UpdateNodeCache(nodes []region.Node) {
	fresh := make(map[string]region.Node, len(nodes))
	for _, node := range nodes {
		fresh[node.SystemID] = node
	}
	s.mu.Lock()
	s.nodes = fresh
	s.mu.Unlock()
}

func (s *Server) resolveNode(ctx context.Context, systemID string) (region.Node, error) {
	s.mu.RLock()
	node, ok := s.nodes[systemID]
	s.mu.RUnlock()
	if ok {
		return node, nil
	}

	nodes, err := s.region.ListNodes(ctx)
	if err != nil {
		return region.Node{}, err
	}
	s.UpdateNodeCache(nodes)

	s.mu.RLock()
	node, ok = s.nodes[systemID]
	s.mu.RUnlock()
	if !ok {
		return region.Node{}, &region.NoSuchNodeError{SystemID: systemID}
	}
	return node, nil
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s from %s (%v)", r.Method, r.URL.RequestURI(), r.RemoteAddr, time.Since(start))
	})
}

type changeRequest struct {
	SystemID string            `json:"system_id"`
	Context  map[string]string `json:"context,omitempty"`
	Wait     bool              `json:"wait,omitempty"`
}

type changeReply struct {
	SystemID string `json:"system_id"`
	Change   string `json:"change"`
	Status   string `json:"status"`
	State    string `json:"state,omitempty"`
	Error    string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleChange(change driver.Change) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req changeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if req.SystemID == "" {
			http.Error(w, "system_id is required", http.StatusBadRequest)
			return
		}

		node, err := s.resolveNode(r.Context(), req.SystemID)
		if err != nil {
			writeError(w, req.SystemID, change, err)
			return
		}
		// Request-supplied parameters override the region's record for
		// this action only. The cached map is shared with the sweeper,
		// so overrides go into a copy.
		if len(req.Context) > 0 {
			merged := make(map[string]string, len(node.Context)+len(req.Context))
			for k, v := range node.Context {
				merged[k] = v
			}
			for k, v := range req.Context {
				merged[k] = v
			}
			node.Context = merged
		}

		h, err := s.engine.MaybeChangePowerState(node, change)
		if err != nil {
			writeError(w, req.SystemID, change, err)
			return
		}

		if !req.Wait {
			writeJSON(w, http.StatusAccepted, changeReply{
				SystemID: req.SystemID,
				Change:   string(change),
				Status:   "started",
			})
			return
		}

		state, err := h.Wait(r.Context())
		if err != nil {
			writeJSON(w, http.StatusBadGateway, changeReply{
				SystemID: req.SystemID,
				Change:   string(change),
				Status:   "failed",
				Error:    err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, changeReply{
			SystemID: req.SystemID,
			Change:   string(change),
			Status:   "done",
			State:    string(state),
		})
	}
}

func writeError(w http.ResponseWriter, systemID string, change driver.Change, err error) {
	code := http.StatusInternalServerError
	var conflict *power.ActionInProgressError
	var unknownType *driver.UnknownPowerTypeError
	var noSuchNode *region.NoSuchNodeError
	switch {
	case errors.As(err, &conflict):
		code = http.StatusConflict
	case errors.As(err, &unknownType):
		code = http.StatusBadRequest
	case errors.As(err, &noSuchNode):
		code = http.StatusNotFound
	}
	writeJSON(w, code, changeReply{
		SystemID: systemID,
		Change:   string(change),
		Status:   "rejected",
		Error:    err.Error(),
	})
}

type stateReply struct {
	SystemID string `json:"system_id"`
	State    string `json:"state"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	systemID := r.URL.Query().Get("system_id")
	if systemID == "" {
		http.Error(w, "system_id is required", http.StatusBadRequest)
		return
	}

	node, err := s.resolveNode(r.Context(), systemID)
	if err != nil {
		code := http.StatusInternalServerError
		var noSuchNode *region.NoSuchNodeError
		if errors.As(err, &noSuchNode) {
			code = http.StatusNotFound
		}
		writeJSON(w, code, stateReply{SystemID: systemID, State: string(driver.StateError), Error: err.Error()})
		return
	}

	state, err := s.engine.GetPowerState(r.Context(), node)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, stateReply{
			SystemID: systemID,
			State:    string(driver.StateError),
			Error:    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, stateReply{SystemID: systemID, State: string(state)})
}

type nodeReply struct {
	SystemID   string `json:"system_id"`
	Hostname   string `json:"hostname"`
	PowerType  string `json:"power_type"`
	PowerState string `json:"power_state"`
	Busy       bool   `json:"busy"`
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	nodes, err := s.region.ListNodes(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	s.UpdateNodeCache(nodes)

	reply := make([]nodeReply, 0, len(nodes))
	for _, node := range nodes {
		reply = append(reply, nodeReply{
			SystemID:   node.SystemID,
			Hostname:   node.Hostname,
			PowerType:  node.PowerType,
			PowerState: string(node.PowerState),
			Busy:       s.engine.Registry().InProgress(node.SystemID),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"nodes": reply})
}

func (s *Server) handleLivez(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
