// Package deliver pushes session state to connected viewer clients over
// TCP. The protocol is server-push only: newline-delimited JSON messages
// with a status discriminator, one on connect and one per state change.
package deliver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
)

// Status values understood by the Card Viewer client.
const (
	StatusNewCard           = "NewCard"
	StatusCardRemoved       = "CardRemoved"
	StatusCardNotFound      = "CardNotFound"
	StatusReaderUnavailable = "ReaderUnavailable"
)

// Message is one pushed protocol message.
type Message struct {
	Status    string `json:"status"`
	CardData  string `json:"card_data,omitempty"`
	Passcode  string `json:"passcode,omitempty"`
	Edition   string `json:"edition,omitempty"`
	SetString string `json:"set_string,omitempty"`
	CardImage string `json:"card_image,omitempty"`
	Error     bool   `json:"error,omitempty"`
}

// queueSize bounds each client's outbound queue. A client that falls
// this far behind is disconnected rather than allowed to stall the
// broadcaster.
const queueSize = 32

// Server accepts viewer connections and fans out state messages. Every
// client gets the current state snapshot on connect, then every
// subsequent push, each on its own writer goroutine.
type Server struct {
	ln net.Listener

	mu      sync.Mutex
	clients map[*client]struct{}
	current []byte // last pushed line; the snapshot for new clients
	closed  bool
}

// Listen binds the delivery listener. A bind failure (port in use, bad
// address) is fatal to the process and handled by the caller.
func Listen(address string, port int) (*Server, error) {
	addr := net.JoinHostPort(address, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	s := &Server{
		ln:      ln,
		clients: make(map[*client]struct{}),
	}
	// Until the session reports anything, new clients see "no card".
	s.current = encode(Message{Status: StatusCardRemoved})

	log.Printf("Delivery server listening on %s", ln.Addr())
	return s, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts connections until Close. Normally run as a goroutine.
func (s *Server) Serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept: %v", err)
			continue
		}

		c := &client{conn: conn, send: make(chan []byte, queueSize)}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.clients[c] = struct{}{}
		c.send <- s.current // snapshot first, queue is empty here
		s.mu.Unlock()

		log.Printf("Viewer connected: %s", conn.RemoteAddr())
		go c.writeLoop(s)
		go c.readLoop(s)
	}
}

// Push broadcasts a message to every connected client and records it as
// the snapshot for future connections. A client whose queue is full is
// disconnected; the others are unaffected.
func (s *Server) Push(msg Message) {
	line := encode(msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = line
	for c := range s.clients {
		select {
		case c.send <- line:
		default:
			log.Printf("Viewer %s not draining, disconnecting", c.conn.RemoteAddr())
			delete(s.clients, c)
			c.close()
		}
	}
}

// ClientCount reports the number of connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close stops accepting and disconnects every client.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()

	return s.ln.Close()
}

// drop removes a client after a connection-level failure. Safe to call
// more than once.
func (s *Server) drop(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.close()
	}
}

func encode(msg Message) []byte {
	line, err := json.Marshal(msg)
	if err != nil {
		// Message is a plain struct of strings; this cannot happen.
		log.Printf("Encode %s message: %v", msg.Status, err)
		return []byte(`{"status":"` + msg.Status + `"}` + "\n")
	}
	return append(line, '\n')
}

// client is one accepted viewer connection. It owns nothing but its
// send queue; card state always comes from the server's snapshot.
type client struct {
	conn net.Conn
	send chan []byte
	once sync.Once
}

// close is only called with the client already removed from the server's
// set, so nothing can send on the queue afterwards.
func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (c *client) writeLoop(s *Server) {
	for line := range c.send {
		if _, err := c.conn.Write(line); err != nil {
			s.drop(c)
			return
		}
	}
}

// readLoop discards anything the client sends; its only real job is
// noticing the disconnect.
func (c *client) readLoop(s *Server) {
	buf := make([]byte, 256)
	for {
		if _, err := c.conn.Read(buf); err != nil {
			log.Printf("Viewer disconnected: %s", c.conn.RemoteAddr())
			s.drop(c)
			return
		}
	}
}
