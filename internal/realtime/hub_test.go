package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type msg struct {
	N int `json:"n"`
}

func newTestServer(t *testing.T, h *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeWS(w, r, r.URL.Query().Get("key"), msg{N: 0})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, key string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?key=" + key
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn) msg {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var m msg
	if err := conn.ReadJSON(&m); err != nil {
		t.Fatalf("read: %v", err)
	}
	return m
}

func TestPublishReachesOnlySessionSubscribers(t *testing.T) {
	h := NewHub(nil)
	srv := newTestServer(t, h)

	a := dial(t, srv, "a")
	b := dial(t, srv, "b")
	waitFor(t, func() bool { return h.Subscribers("a") == 1 && h.Subscribers("b") == 1 })

	if m := readMsg(t, a); m.N != 0 {
		t.Fatalf("initial message = %+v", m)
	}
	if m := readMsg(t, b); m.N != 0 {
		t.Fatalf("initial message = %+v", m)
	}

	h.Publish("a", msg{N: 1})
	h.Publish("b", msg{N: 2})

	if m := readMsg(t, a); m.N != 1 {
		t.Errorf("a got %+v", m)
	}
	if m := readMsg(t, b); m.N != 2 {
		t.Errorf("b got %+v", m)
	}
}

func TestClientRemovedOnClose(t *testing.T) {
	h := NewHub(nil)
	srv := newTestServer(t, h)

	conn := dial(t, srv, "k")
	waitFor(t, func() bool { return h.Subscribers("k") == 1 })

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitFor(t, func() bool { return h.Subscribers("k") == 0 })

	// Publishing to a session without subscribers is harmless.
	h.Publish("k", msg{N: 3})
}

func TestOriginCheck(t *testing.T) {
	h := NewHub(func(origin string) bool { return origin == "http://ok.example" })
	srv := newTestServer(t, h)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?key=x"

	hdr := http.Header{"Origin": {"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, hdr); err == nil {
		t.Fatal("expected handshake to fail for disallowed origin")
	}

	hdr.Set("Origin", "http://ok.example")
	conn, _, err := websocket.DefaultDialer.Dial(url, hdr)
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	_ = conn.Close()
}
