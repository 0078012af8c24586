package deliver

import (
	"bufio"
	"encoding/json"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := Listen("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	go s.Serve()
	return s
}

func dialServer(t *testing.T, s *Server) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, bufio.NewReader(conn)
}

func readMessage(t *testing.T, r *bufio.Reader) Message {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("Read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		t.Fatalf("Decode %q: %v", line, err)
	}
	return msg
}

func TestConnectReceivesDefaultSnapshot(t *testing.T) {
	s := newTestServer(t)
	_, r := dialServer(t, s)

	if msg := readMessage(t, r); msg.Status != StatusCardRemoved {
		t.Errorf("Snapshot status = %q, want %q", msg.Status, StatusCardRemoved)
	}
}

func TestConnectReceivesCurrentState(t *testing.T) {
	s := newTestServer(t)

	s.Push(Message{Status: StatusNewCard, Passcode: "89631139", CardData: `{"name":"Blue-Eyes White Dragon"}`})

	_, r := dialServer(t, s)
	msg := readMessage(t, r)
	if msg.Status != StatusNewCard || msg.Passcode != "89631139" {
		t.Errorf("Snapshot = %+v, want current NewCard state", msg)
	}

	s.Push(Message{Status: StatusCardRemoved})
	if msg := readMessage(t, r); msg.Status != StatusCardRemoved {
		t.Errorf("Update status = %q, want %q", msg.Status, StatusCardRemoved)
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	s := newTestServer(t)

	_, r1 := dialServer(t, s)
	_, r2 := dialServer(t, s)
	readMessage(t, r1) // snapshots
	readMessage(t, r2)

	s.Push(Message{Status: StatusReaderUnavailable})

	for i, r := range []*bufio.Reader{r1, r2} {
		if msg := readMessage(t, r); msg.Status != StatusReaderUnavailable {
			t.Errorf("Client %d got status %q, want %q", i, msg.Status, StatusReaderUnavailable)
		}
	}
}

func TestClientInputIsDiscarded(t *testing.T) {
	s := newTestServer(t)

	conn, r := dialServer(t, s)
	readMessage(t, r)

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n\r\nnonsense\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	s.Push(Message{Status: StatusCardNotFound, Passcode: "11111111"})
	if msg := readMessage(t, r); msg.Status != StatusCardNotFound {
		t.Errorf("Status after garbage input = %q, want %q", msg.Status, StatusCardNotFound)
	}
}

func TestClientDisconnectIsNotFatal(t *testing.T) {
	s := newTestServer(t)

	conn, r := dialServer(t, s)
	readMessage(t, r)
	conn.Close()

	_, r2 := dialServer(t, s)
	readMessage(t, r2)

	s.Push(Message{Status: StatusCardRemoved})
	if msg := readMessage(t, r2); msg.Status != StatusCardRemoved {
		t.Errorf("Status = %q, want %q", msg.Status, StatusCardRemoved)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := s.ClientCount(); got != 1 {
		t.Errorf("ClientCount = %d, want 1", got)
	}
}

func TestSlowClientIsIsolated(t *testing.T) {
	s := newTestServer(t)

	// Slow client connects and never reads.
	slow, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer slow.Close()

	// Fast client drains everything as it arrives.
	_, fastR := dialServer(t, s)
	var received int64
	go func() {
		for {
			if _, err := fastR.ReadString('\n'); err != nil {
				return
			}
			atomic.AddInt64(&received, 1)
		}
	}()

	// Large payloads fill the slow client's socket buffer, then its
	// queue, which gets it disconnected.
	image := strings.Repeat("x", 512*1024)
	pushed := 0
	deadline := time.Now().Add(15 * time.Second)
	for s.ClientCount() > 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Slow client never disconnected after %d pushes", pushed)
		}
		s.Push(Message{Status: StatusNewCard, CardImage: image})
		pushed++
		time.Sleep(2 * time.Millisecond)
	}

	// The fast client must have every broadcast plus its snapshot.
	want := int64(pushed + 1)
	deadline = time.Now().Add(10 * time.Second)
	for atomic.LoadInt64(&received) < want && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := atomic.LoadInt64(&received); got != want {
		t.Errorf("Fast client received %d messages, want %d", got, want)
	}
}

func TestListenBindError(t *testing.T) {
	s := newTestServer(t)

	addr := s.Addr().(*net.TCPAddr)
	if _, err := Listen("127.0.0.1", addr.Port); err == nil {
		t.Error("Listen succeeded on an already-bound port")
	}
}
