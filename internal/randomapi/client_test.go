package randomapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robalobadob/bullseye/internal/game"
)

// fakeAPI serves the given bodies/statuses in order, repeating the last one.
func fakeAPI(t *testing.T, responses ...func(w http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1))
		q := r.URL.Query()
		if q.Get("min") != "0" || q.Get("max") != "100" || q.Get("count") != "1" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if n > len(responses) {
			n = len(responses)
		}
		responses[n-1](w)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func body(s string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(s))
	}
}

func status(code int) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) { w.WriteHeader(code) }
}

func newTestClient(url string, attempts uint) *Client {
	return New(
		WithBaseURL(url),
		WithHTTPClient(&http.Client{}),
		WithAttempts(attempts),
		WithBackoff(time.Millisecond),
		WithTimeout(time.Second),
	)
}

func TestFetchDecodesFirstValue(t *testing.T) {
	srv, _ := fakeAPI(t, body(`[37]`))
	n, err := newTestClient(srv.URL, 1).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n != 37 {
		t.Errorf("expected 37, got %d", n)
	}
}

func TestFetchErrors(t *testing.T) {
	cases := []struct {
		name     string
		resp     func(http.ResponseWriter)
		want     error
		wantHits int32
	}{
		{"empty array", body(`[]`), ErrEmptyResult, 1},
		{"not an array", body(`{"value":3}`), ErrDecode, 1},
		{"null", body(`null`), ErrDecode, 1},
		{"trailing data", body(`[37]<html>oops`), ErrDecode, 1},
		{"two arrays", body(`[37][38]`), ErrDecode, 1},
		{"float", body(`[3.5]`), ErrDecode, 1},
		{"out of range", body(`[250]`), ErrOutOfRange, 1},
		{"client error", status(http.StatusNotFound), ErrTransport, 1},
		{"server error", status(http.StatusBadGateway), ErrTransport, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, hits := fakeAPI(t, tc.resp)
			_, err := newTestClient(srv.URL, 3).Fetch(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := hits.Load(); got != tc.wantHits {
				t.Errorf("expected %d requests, got %d", tc.wantHits, got)
			}
		})
	}
}

func TestFetchAcceptsTrailingWhitespace(t *testing.T) {
	srv, _ := fakeAPI(t, body("[12]\n"))
	n, err := newTestClient(srv.URL, 1).Fetch(context.Background())
	if err != nil || n != 12 {
		t.Fatalf("expected 12, got %d (%v)", n, err)
	}
}

func TestNullBodyDoesNotFallBack(t *testing.T) {
	srv, _ := fakeAPI(t, body(`null`))
	s := game.New(newTestClient(srv.URL, 1))
	res, err := s.NextRound(context.Background())
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
	if res.Fallback {
		t.Errorf("a null body must not fall back, got %+v", res)
	}
}

func TestFetchUsesConfiguredRange(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("min") != "1" || q.Get("max") != "6" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		if hits.Add(1) == 1 {
			_, _ = w.Write([]byte(`[4]`))
			return
		}
		_, _ = w.Write([]byte(`[7]`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRange(1, 6), WithAttempts(1))
	if n, err := c.Fetch(context.Background()); err != nil || n != 4 {
		t.Fatalf("expected 4, got %d (%v)", n, err)
	}
	if _, err := c.Fetch(context.Background()); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("expected ErrOutOfRange for 7 in [1,6], got %v", err)
	}
}

func TestEmptyResultMapsToGameSentinel(t *testing.T) {
	if !errors.Is(ErrEmptyResult, game.ErrEmptyTarget) {
		t.Fatal("ErrEmptyResult must wrap game.ErrEmptyTarget")
	}
	if !errors.Is(ErrOutOfRange, ErrDecode) {
		t.Fatal("ErrOutOfRange must wrap ErrDecode")
	}
}

func TestFetchRetriesTransientFailures(t *testing.T) {
	srv, hits := fakeAPI(t, status(http.StatusServiceUnavailable), status(http.StatusInternalServerError), body(`[8]`))
	n, err := newTestClient(srv.URL, 3).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if n != 8 || hits.Load() != 3 {
		t.Errorf("expected 8 after 3 requests, got %d after %d", n, hits.Load())
	}
}

func TestFetchTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, 2).Fetch(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestFetchRespectsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL, 3).Fetch(ctx)
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the deadline to be preserved, got %v", err)
	}
}

func TestClientDrivesGameSession(t *testing.T) {
	srv, _ := fakeAPI(t, body(`[]`))
	s := game.New(newTestClient(srv.URL, 1))
	res, err := s.NextRound(context.Background())
	if err != nil {
		t.Fatalf("next round: %v", err)
	}
	if !res.Fallback || res.Target != game.StartValue {
		t.Errorf("expected fallback to %d, got %+v", game.StartValue, res)
	}
}
