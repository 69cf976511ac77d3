package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// session 一次连接的生命周期；读错误、心跳失败、主动断开都只记录第一个错误
type session struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex

	once sync.Once
	done chan struct{}
	err  error
}

func newSession(conn *websocket.Conn, writeTimeout time.Duration) *session {
	return &session{conn: conn, writeTimeout: writeTimeout, done: make(chan struct{})}
}

func (s *session) fail(err error) {
	s.once.Do(func() {
		s.err = err
		close(s.done)
		_ = s.conn.Close()
	})
}

func (s *session) write(b []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *session) ping() error {
	return s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.writeTimeout))
}
