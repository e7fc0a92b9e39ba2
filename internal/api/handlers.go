package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"foodsim/internal/config"
	"foodsim/internal/graph"
	"foodsim/internal/model"
	"foodsim/internal/worker"
)

// OrdersHandler handles GET/POST /v1/orders
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/orders" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		var items []model.Order
		switch stage := r.URL.Query().Get("stage"); stage {
		case "":
			items = s.Sim.Orders()
		case "cooking":
			items = s.Sim.CookingOrders()
		case "delivery":
			items = s.Sim.DeliveryOrders()
		default:
			writeProblem(w, 400, "Invalid stage", "stage must be cooking or delivery", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		if !s.getPrincipal(r).CanOperate() {
			writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var req struct {
			Destination *graph.VertexID `json:"destination"`
			Food        []model.Food    `json:"food"`
			Random      bool            `json:"random"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		var (
			o   model.Order
			err error
		)
		switch {
		case req.Random:
			o, err = s.Sim.CreateRandomOrder()
		case req.Destination == nil:
			writeProblem(w, 400, "Invalid order", "destination required", r.URL.Path)
			return
		default:
			o, err = s.Sim.CreateOrder(*req.Destination, req.Food)
		}
		if err != nil {
			writeError(w, r, "Create order failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, o)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OrderByIDHandler handles GET /v1/orders/{id} and GET /v1/orders/completed
func (s *Server) OrderByIDHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/orders/")
	if rest == "completed" {
		s.completedOrders(w, r)
		return
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		writeProblem(w, 400, "Invalid order id", err.Error(), r.URL.Path)
		return
	}
	o, err := s.Sim.Order(model.OrderID(id))
	if err != nil && s.Archive != nil {
		// Orders evicted from the in-memory history are still in the archive.
		o, err = s.Archive.Get(r.Context(), model.OrderID(id))
	}
	if err != nil {
		writeError(w, r, "Order not found", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// completedOrders serves the in-memory history plus, with source=archive,
// the persisted archive.
func (s *Server) completedOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeProblem(w, 400, "Invalid limit", err.Error(), r.URL.Path)
		return
	}
	if r.URL.Query().Get("source") != "archive" || s.Archive == nil {
		writeJSON(w, http.StatusOK, map[string]any{"items": s.Sim.History(), "source": "history"})
		return
	}
	items, err := s.Archive.Recent(r.Context(), limit)
	if err != nil {
		writeProblem(w, 500, "List archive failed", err.Error(), r.URL.Path)
		return
	}
	total, err := s.Archive.Count(r.Context())
	if err != nil {
		writeProblem(w, 500, "Count archive failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total, "source": "archive"})
}

func (s *Server) MenuHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": model.Menu()})
}

// CouriersHandler handles GET/POST /v1/couriers and GET/DELETE /v1/couriers/{id}
func (s *Server) CouriersHandler(w http.ResponseWriter, r *http.Request) {
	id, hasID, ok := workerID(w, r, "/v1/couriers")
	if !ok {
		return
	}
	switch {
	case !hasID && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"items": s.Sim.Couriers()})
	case !hasID && r.Method == http.MethodPost:
		if !s.getPrincipal(r).CanOperate() {
			writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var req struct {
			ID worker.ID `json:"id"`
		}
		if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
			return
		}
		nid, err := s.Sim.ActivateCourier(req.ID)
		if err != nil {
			writeError(w, r, "Activate courier failed", err)
			return
		}
		c, _ := s.Sim.Courier(nid)
		writeJSON(w, http.StatusCreated, c)
	case hasID && r.Method == http.MethodGet:
		c, err := s.Sim.Courier(id)
		if err != nil {
			writeError(w, r, "Courier not found", err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	case hasID && r.Method == http.MethodDelete:
		if !s.getPrincipal(r).CanOperate() {
			writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		if err := s.Sim.DeactivateCourier(id); err != nil {
			writeError(w, r, "Deactivate courier failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// KitchenersHandler handles GET/POST /v1/kitcheners and GET/DELETE /v1/kitcheners/{id}
func (s *Server) KitchenersHandler(w http.ResponseWriter, r *http.Request) {
	id, hasID, ok := workerID(w, r, "/v1/kitcheners")
	if !ok {
		return
	}
	switch {
	case !hasID && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"items": s.Sim.Kitcheners()})
	case !hasID && r.Method == http.MethodPost:
		if !s.getPrincipal(r).CanOperate() {
			writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		var req struct {
			ID    worker.ID    `json:"id"`
			Stage *model.Stage `json:"stage"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Stage == nil {
			writeProblem(w, 400, "Invalid kitchener", "stage required", r.URL.Path)
			return
		}
		nid, err := s.Sim.ActivateKitchener(req.ID, *req.Stage)
		if err != nil {
			writeError(w, r, "Activate kitchener failed", err)
			return
		}
		k, _ := s.Sim.Kitchener(nid)
		writeJSON(w, http.StatusCreated, k)
	case hasID && r.Method == http.MethodGet:
		k, err := s.Sim.Kitchener(id)
		if err != nil {
			writeError(w, r, "Kitchener not found", err)
			return
		}
		writeJSON(w, http.StatusOK, k)
	case hasID && r.Method == http.MethodDelete:
		if !s.getPrincipal(r).CanOperate() {
			writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		if err := s.Sim.DeactivateKitchener(id); err != nil {
			writeError(w, r, "Deactivate kitchener failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// workerID parses /prefix or /prefix/{id}. ok is false once a problem was written.
func workerID(w http.ResponseWriter, r *http.Request, prefix string) (id worker.ID, hasID, ok bool) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return 0, false, true
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		writeProblem(w, 400, "Invalid worker id", rest, r.URL.Path)
		return 0, false, false
	}
	return worker.ID(n), true, true
}

func (s *Server) KitchenQueuesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Sim.KitchenQueues())
}

// MapHandler handles GET /v1/map
func (s *Server) MapHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"depot":    s.Sim.Depot(),
		"vertices": s.Sim.Vertices(),
		"edges":    s.Sim.Edges(),
	})
}

// VerticesHandler handles POST /v1/map/vertices and DELETE /v1/map/vertices/{id} (admin)
func (s *Server) VerticesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.getPrincipal(r).IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/map/vertices"), "/")
	switch {
	case rest == "" && r.Method == http.MethodPost:
		var req struct {
			X int `json:"x"`
			Y int `json:"y"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		writeJSON(w, http.StatusCreated, s.Sim.AddVertex(req.X, req.Y))
	case rest != "" && r.Method == http.MethodDelete:
		id, err := strconv.Atoi(rest)
		if err != nil {
			writeProblem(w, 400, "Invalid vertex id", err.Error(), r.URL.Path)
			return
		}
		if err := s.Sim.RemoveVertex(graph.VertexID(id)); err != nil {
			writeError(w, r, "Remove vertex failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// EdgesHandler handles POST and DELETE /v1/map/edges (admin)
func (s *Server) EdgesHandler(w http.ResponseWriter, r *http.Request) {
	if !s.getPrincipal(r).IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req struct {
			From     graph.VertexID `json:"from"`
			To       graph.VertexID `json:"to"`
			Distance int            `json:"distance"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		e, err := s.Sim.AddEdge(req.From, req.To, req.Distance)
		if err != nil {
			writeError(w, r, "Add edge failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	case http.MethodDelete:
		from, to, ok := vertexPair(w, r)
		if !ok {
			return
		}
		if err := s.Sim.RemoveEdge(from, to); err != nil {
			writeError(w, r, "Remove edge failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PathHandler handles GET /v1/path?from=&to=
func (s *Server) PathHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	from, to, ok := vertexPair(w, r)
	if !ok {
		return
	}
	route, err := s.Sim.FindPath(from, to)
	if err != nil {
		writeError(w, r, "No route", err)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func vertexPair(w http.ResponseWriter, r *http.Request) (from, to graph.VertexID, ok bool) {
	q := r.URL.Query()
	a, errA := strconv.Atoi(q.Get("from"))
	b, errB := strconv.Atoi(q.Get("to"))
	if err := errors.Join(errA, errB); err != nil {
		writeProblem(w, 400, "Invalid vertices", "from and to must be vertex ids", r.URL.Path)
		return 0, 0, false
	}
	return graph.VertexID(a), graph.VertexID(b), true
}

func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.Sim.Stats())
}

// ClockHandler handles GET/PUT /v1/clock and POST /v1/clock/tick
func (s *Server) ClockHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v1/clock/tick" {
		s.tickHandler(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.writeClock(w)
	case http.MethodPut:
		if !s.getPrincipal(r).CanOperate() {
			writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
			return
		}
		if s.Runner == nil {
			writeProblem(w, 409, "Clock not running", "the simulation is driven manually", r.URL.Path)
			return
		}
		var req struct {
			Speed  *int  `json:"speed"`
			Paused *bool `json:"paused"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Speed != nil {
			if *req.Speed < 1 || *req.Speed > config.MaxTimeSpeed {
				writeProblem(w, 400, "Invalid speed", fmt.Sprintf("speed must be in [1,%d]", config.MaxTimeSpeed), r.URL.Path)
				return
			}
			s.Runner.SetSpeed(*req.Speed)
		}
		if req.Paused != nil {
			s.Runner.SetPaused(*req.Paused)
		}
		s.writeClock(w)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeClock(w http.ResponseWriter) {
	body := map[string]any{"now": s.Sim.Now()}
	if s.Runner != nil {
		body["runner"] = s.Runner.State()
	}
	writeJSON(w, http.StatusOK, body)
}

// tickHandler advances the simulation by hand, mostly while the runner is paused.
func (s *Server) tickHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.getPrincipal(r).CanOperate() {
		writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
		return
	}
	var req struct {
		Seconds float64 `json:"seconds"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Seconds <= 0 || req.Seconds > 24*3600 {
		writeProblem(w, 400, "Invalid tick", "seconds must be in (0, 86400]", r.URL.Path)
		return
	}
	s.Sim.Tick(time.Duration(req.Seconds * float64(time.Second)))
	s.writeClock(w)
}

// AutoOrdersHandler handles PUT /v1/auto-orders
func (s *Server) AutoOrdersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !s.getPrincipal(r).CanOperate() {
		writeProblem(w, 403, "Forbidden", "operator or admin required", r.URL.Path)
		return
	}
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	s.Sim.SetAutoOrders(req.Enabled)
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check the archive database and the Redis broker when they are in use.
	type pinger interface {
		Ping(ctx context.Context) error
	}
	for name, dep := range map[string]any{"archive": s.Archive, "broker": s.Broker} {
		p, ok := dep.(pinger)
		if !ok {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			writeProblem(w, 503, "Not Ready", name+": "+err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
