package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	done := make(chan struct{})

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, err := Accept(w, r, AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer a.Close(websocket.StatusNormalClosure, "onCompleted")

		ctx := r.Context()
		msg, ok := a.ReceiveString(ctx)
		if !ok {
			t.Errorf("server receive failed")
			return
		}
		if msg != "nleft.3" {
			t.Errorf("server got %q", msg)
		}
		if err := a.Send(ctx, "n7"); err != nil {
			t.Errorf("server send: %v", err)
		}
		close(done)
	})

	srv := httptest.NewServer(handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer clientConn.Close(websocket.StatusNormalClosure, "")

	if err := clientConn.Write(ctx, websocket.MessageText, []byte("nleft.3")); err != nil {
		t.Fatalf("client write: %v", err)
	}

	_, data, err := clientConn.Read(ctx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	if string(data) != "n7" {
		t.Fatalf("got %q, want n7", data)
	}

	<-done
}

func TestIsClosedIdempotent(t *testing.T) {
	a := &Adapter{}
	if a.IsClosed() {
		t.Fatal("fresh adapter should not report closed")
	}
	a.closed.Store(true)
	if !a.IsClosed() {
		t.Fatal("should report closed")
	}
	// Close on an adapter already marked closed must still be a no-op.
	if err := a.Close(websocket.StatusNormalClosure, "bye"); err != nil {
		t.Fatalf("second close should be no-op, got %v", err)
	}
}
