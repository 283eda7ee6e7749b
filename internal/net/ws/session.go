package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// session serialises writes to one connection. The reader goroutine writes
// acks while the stream goroutine writes events.
type session struct {
	conn           *websocket.Conn
	mu             sync.Mutex
	lastCommandSeq atomic.Uint64
}

func newSession(conn *websocket.Conn) *session {
	return &session{conn: conn}
}

func (s *session) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(messageType, data)
}

func (s *session) Close(code int, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(time.Second))
	s.conn.Close()
}

func (s *session) LastCommandSeq() uint64 {
	return s.lastCommandSeq.Load()
}

func (s *session) StoreLastCommandSeq(seq uint64) {
	s.lastCommandSeq.Store(seq)
}
