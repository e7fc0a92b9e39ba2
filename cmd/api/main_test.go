package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouteLabel(t *testing.T) {
	cases := map[string]string{
		"/v1/orders":           "/v1/orders",
		"/v1/orders/12":        "/v1/orders/{id}",
		"/v1/orders/completed": "/v1/orders/completed",
		"/v1/couriers/3":       "/v1/couriers/{id}",
		"/v1/map/vertices/7":   "/v1/map/vertices/{id}",
		"/v1/map/edges":        "/v1/map/edges",
	}
	for in, want := range cases {
		if got := routeLabel(in); got != want {
			t.Fatalf("routeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLogMiddlewareKeepsStatus(t *testing.T) {
	h := logMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stats", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("status %d", rec.Code)
	}
}
