package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"foodsim/internal/config"
	"foodsim/internal/event"
	"foodsim/internal/graph"
	"foodsim/internal/model"
	"foodsim/internal/runner"
	"foodsim/internal/sim"
	"foodsim/internal/store"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Map.Vertices = []graph.VertexSpec{{X: 0, Y: 0}, {X: 200, Y: 0}, {X: 200, Y: 150}}
	cfg.Map.Edges = []graph.EdgeSpec{{From: 0, To: 1}, {From: 1, To: 0}, {From: 1, To: 2}, {From: 2, To: 0}}
	cfg.Sim.Couriers = 1
	cfg.Sim.DoughKitcheners = 1
	cfg.Sim.FillingKitcheners = 1
	cfg.Sim.PickerKitcheners = 1
	cfg.Sim.InitialOrders = 0
	cfg.Sim.AutoOrders.Enabled = false
	cfg.Courier.PauseChance = 0
	cfg.Kitchener.PauseChance = 0
	return cfg
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := testConfig()
	archive := store.NewMemory()
	broker := NewBroker()
	events := event.Func(func(e event.Event) {
		broker.Publish(TopicOf(e.Type), e)
		broker.Publish(AllTopics, e)
	})
	sys, err := sim.New(cfg,
		sim.WithRand(func(lo, hi int) int { return lo }),
		sim.WithStart(time.Unix(0, 0).UTC()),
		sim.WithEvents(events),
		sim.WithArchive(func(o model.Order) { _ = archive.Save(context.Background(), o) }),
	)
	if err != nil {
		t.Fatalf("sim: %v", err)
	}
	return NewServer(cfg, sys, archive, broker, nil)
}

func do(t *testing.T, h http.HandlerFunc, method, path, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Role", role)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	if rr := do(t, s.HealthHandler, http.MethodGet, "/healthz", "", ""); rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	if rr := do(t, s.ReadyHandler, http.MethodGet, "/readyz", "", ""); rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestOrdersCreateGetList(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s.OrdersHandler, http.MethodPost, "/v1/orders", "", `{"destination":1,"food":[{"name":"Cola","qty":2}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d %s", rr.Code, rr.Body)
	}
	var o model.Order
	if err := json.Unmarshal(rr.Body.Bytes(), &o); err != nil {
		t.Fatal(err)
	}
	if o.Status != model.StatusWaitingForCooking || o.Destination != 1 {
		t.Fatalf("created order %+v", o)
	}

	rr = do(t, s.OrderByIDHandler, http.MethodGet, "/v1/orders/1", "", "")
	if rr.Code != 200 {
		t.Fatalf("get: got %d", rr.Code)
	}
	rr = do(t, s.OrdersHandler, http.MethodGet, "/v1/orders?stage=cooking", "", "")
	var list struct{ Items []model.Order }
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if rr.Code != 200 || len(list.Items) != 1 {
		t.Fatalf("cooking list: %d %s", rr.Code, rr.Body)
	}
	if rr := do(t, s.OrdersHandler, http.MethodPost, "/v1/orders", "", `{"random":true}`); rr.Code != http.StatusCreated {
		t.Fatalf("random: got %d", rr.Code)
	}
}

func TestOrdersRejected(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		name, role, body string
		want             int
	}{
		{"viewer", "viewer", `{"destination":1,"food":[{"name":"Cola","qty":1}]}`, 403},
		{"depot", "", `{"destination":0,"food":[{"name":"Cola","qty":1}]}`, 400},
		{"unknown dish", "", `{"destination":1,"food":[{"name":"Sushi","qty":1}]}`, 400},
		{"no destination", "", `{"food":[{"name":"Cola","qty":1}]}`, 400},
		{"unknown field", "", `{"destination":1,"tip":5}`, 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, s.OrdersHandler, http.MethodPost, "/v1/orders", tc.role, tc.body)
			if rr.Code != tc.want {
				t.Fatalf("got %d, want %d: %s", rr.Code, tc.want, rr.Body)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("content type %q", ct)
			}
		})
	}
	if rr := do(t, s.OrderByIDHandler, http.MethodGet, "/v1/orders/42", "", ""); rr.Code != 404 {
		t.Fatalf("missing order: got %d", rr.Code)
	}
}

func TestCompletedOrdersFromArchive(t *testing.T) {
	s := newTestServer(t)
	if rr := do(t, s.OrdersHandler, http.MethodPost, "/v1/orders", "", `{"destination":1,"food":[{"name":"Water","qty":1}]}`); rr.Code != 201 {
		t.Fatalf("create: %d", rr.Code)
	}
	if rr := do(t, s.ClockHandler, http.MethodPost, "/v1/clock/tick", "", `{"seconds":1}`); rr.Code != 200 {
		t.Fatalf("tick: %d %s", rr.Code, rr.Body)
	}
	for i := 0; i < 3*360 && len(s.Sim.History()) == 0; i++ {
		s.Sim.Tick(10 * time.Second)
	}
	if len(s.Sim.History()) != 1 {
		t.Fatalf("order never completed")
	}

	rr := do(t, s.OrderByIDHandler, http.MethodGet, "/v1/orders/completed?source=archive&limit=5", "", "")
	var body struct {
		Items  []model.Order
		Total  int
		Source string
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if rr.Code != 200 || body.Total != 1 || body.Source != "archive" || body.Items[0].Status != model.StatusCompleted {
		t.Fatalf("archive: %d %+v", rr.Code, body)
	}
	rr = do(t, s.OrderByIDHandler, http.MethodGet, "/v1/orders/completed", "", "")
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Source != "history" || len(body.Items) != 1 {
		t.Fatalf("history: %+v", body)
	}
}

func TestCouriersAndKitcheners(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s.CouriersHandler, http.MethodPost, "/v1/couriers", "", "")
	if rr.Code != 201 || !strings.Contains(rr.Body.String(), `"id":2`) {
		t.Fatalf("activate: %d %s", rr.Code, rr.Body)
	}
	if rr := do(t, s.CouriersHandler, http.MethodPost, "/v1/couriers", "", `{"id":2}`); rr.Code != 409 {
		t.Fatalf("duplicate: %d", rr.Code)
	}
	if rr := do(t, s.CouriersHandler, http.MethodDelete, "/v1/couriers/9", "", ""); rr.Code != 404 {
		t.Fatalf("unknown: %d", rr.Code)
	}
	if rr := do(t, s.CouriersHandler, http.MethodDelete, "/v1/couriers/2", "", ""); rr.Code != 204 {
		t.Fatalf("remove: %d", rr.Code)
	}
	if rr := do(t, s.CouriersHandler, http.MethodGet, "/v1/couriers/abc", "", ""); rr.Code != 400 {
		t.Fatalf("bad id: %d", rr.Code)
	}

	if rr := do(t, s.KitchenersHandler, http.MethodPost, "/v1/kitcheners", "", `{}`); rr.Code != 400 {
		t.Fatalf("missing stage: %d", rr.Code)
	}
	if rr := do(t, s.KitchenersHandler, http.MethodPost, "/v1/kitcheners", "", `{"stage":"oven"}`); rr.Code != 400 {
		t.Fatalf("unknown stage: %d", rr.Code)
	}
	rr = do(t, s.KitchenersHandler, http.MethodPost, "/v1/kitcheners", "", `{"stage":"picker"}`)
	if rr.Code != 201 || !strings.Contains(rr.Body.String(), `"stage":"picker"`) {
		t.Fatalf("activate kitchener: %d %s", rr.Code, rr.Body)
	}
	if rr := do(t, s.KitchenersHandler, http.MethodGet, "/v1/kitcheners/4", "", ""); rr.Code != 200 {
		t.Fatalf("get kitchener: %d", rr.Code)
	}
}

func TestMapEditsRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	if rr := do(t, s.VerticesHandler, http.MethodPost, "/v1/map/vertices", "operator", `{"x":0,"y":150}`); rr.Code != 403 {
		t.Fatalf("operator: %d", rr.Code)
	}
	rr := do(t, s.VerticesHandler, http.MethodPost, "/v1/map/vertices", "admin", `{"x":0,"y":150}`)
	var v graph.Vertex
	_ = json.Unmarshal(rr.Body.Bytes(), &v)
	if rr.Code != 201 || v.ID != 3 {
		t.Fatalf("add vertex: %d %s", rr.Code, rr.Body)
	}
	if rr := do(t, s.PathHandler, http.MethodGet, "/v1/path?from=0&to=3", "", ""); rr.Code != 422 {
		t.Fatalf("unreachable: %d", rr.Code)
	}
	if rr := do(t, s.EdgesHandler, http.MethodPost, "/v1/map/edges", "admin", `{"from":0,"to":3}`); rr.Code != 201 {
		t.Fatalf("add edge: %d %s", rr.Code, rr.Body)
	}
	if rr := do(t, s.EdgesHandler, http.MethodPost, "/v1/map/edges", "admin", `{"from":0,"to":3,"distance":90}`); rr.Code != 409 {
		t.Fatalf("duplicate edge: %d %s", rr.Code, rr.Body)
	}
	rr = do(t, s.PathHandler, http.MethodGet, "/v1/path?from=0&to=3", "", "")
	if rr.Code != 200 || !strings.Contains(rr.Body.String(), `"distance":150`) {
		t.Fatalf("path: %d %s", rr.Code, rr.Body)
	}
	if rr := do(t, s.EdgesHandler, http.MethodDelete, "/v1/map/edges?from=0&to=3", "admin", ""); rr.Code != 204 {
		t.Fatalf("remove edge: %d", rr.Code)
	}
	if rr := do(t, s.EdgesHandler, http.MethodDelete, "/v1/map/edges?from=0&to=3", "admin", ""); rr.Code != 404 {
		t.Fatalf("remove missing edge: %d", rr.Code)
	}
	if rr := do(t, s.VerticesHandler, http.MethodDelete, "/v1/map/vertices/0", "admin", ""); rr.Code != 400 {
		t.Fatalf("remove depot: %d", rr.Code)
	}
	if rr := do(t, s.MapHandler, http.MethodGet, "/v1/map", "", ""); rr.Code != 200 {
		t.Fatalf("map: %d", rr.Code)
	}
}

func TestClock(t *testing.T) {
	s := newTestServer(t)
	if rr := do(t, s.ClockHandler, http.MethodPut, "/v1/clock", "", `{"speed":4}`); rr.Code != 409 {
		t.Fatalf("no runner: %d", rr.Code)
	}
	s.Runner = runner.New(s.Sim, time.Second, 1)
	rr := do(t, s.ClockHandler, http.MethodPut, "/v1/clock", "", `{"speed":4,"paused":true}`)
	if rr.Code != 200 {
		t.Fatalf("set: %d %s", rr.Code, rr.Body)
	}
	if st := s.Runner.State(); st.Speed != 4 || !st.Paused {
		t.Fatalf("runner state %+v", st)
	}
	if rr := do(t, s.ClockHandler, http.MethodPut, "/v1/clock", "", `{"speed":0}`); rr.Code != 400 {
		t.Fatalf("zero speed: %d", rr.Code)
	}
	if rr := do(t, s.ClockHandler, http.MethodPut, "/v1/clock", "", `{"speed":1000000000000}`); rr.Code != 400 {
		t.Fatalf("huge speed: %d", rr.Code)
	}
	if st := s.Runner.State(); st.Speed != 4 {
		t.Fatalf("speed changed to %d", st.Speed)
	}
	if rr := do(t, s.ClockHandler, http.MethodPost, "/v1/clock/tick", "", `{"seconds":-1}`); rr.Code != 400 {
		t.Fatalf("negative tick: %d", rr.Code)
	}
	before := s.Sim.Now()
	do(t, s.ClockHandler, http.MethodPost, "/v1/clock/tick", "", `{"seconds":90}`)
	if got := s.Sim.Now().Sub(before); got != 90*time.Second {
		t.Fatalf("tick advanced %s", got)
	}
}

func TestEventsStream(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(s.EventsStreamHandler))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/events/stream?topic=order", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	if !sc.Scan() || sc.Text() != "event: heartbeat" {
		t.Fatalf("first line %q", sc.Text())
	}
	// The subscription exists once the heartbeat is out.
	if _, err := s.Sim.CreateOrder(1, []model.Food{{Name: "Cola", Qty: 1}}); err != nil {
		t.Fatal(err)
	}
	for sc.Scan() {
		if sc.Text() == "event: "+event.OrderCreated {
			return
		}
	}
	t.Fatalf("stream ended without %s: %v", event.OrderCreated, sc.Err())
}

func TestEventsWebSocket(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(http.HandlerFunc(s.EventsWSHandler))
	defer ts.Close()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = c.Close() }()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := c.WriteJSON(wsMessage{Type: "subscribe", Topic: "order"}); err != nil {
		t.Fatal(err)
	}
	var m wsMessage
	if err := c.ReadJSON(&m); err != nil || m.Type != "ack" || m.Topic != "order" {
		t.Fatalf("ack: %+v %v", m, err)
	}
	if _, err := s.Sim.CreateOrder(2, []model.Food{{Name: "Water", Qty: 1}}); err != nil {
		t.Fatal(err)
	}
	for {
		var m wsMessage
		if err := c.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		if m.Type == "event" && m.Event != nil && m.Event.Type == event.OrderCreated {
			return
		}
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(204) }))
	codes := make([]int, 0, 3)
	for _, p := range []string{"/v1/stats", "/v1/stats", "/healthz"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		codes = append(codes, rr.Code)
	}
	if codes[0] != 204 || codes[1] != 429 || codes[2] != 204 {
		t.Fatalf("codes = %v", codes)
	}
	if NewRateLimiter(0, 5) != nil {
		t.Fatalf("zero rps should disable limiting")
	}
}

func TestOpenAPIAsJSON(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s.OpenAPIHandler, http.MethodGet, "/openapi.yaml?format=json", "", "")
	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := doc.Paths["/v1/orders"]; !ok {
		t.Fatalf("paths = %v", doc.Paths)
	}
}
