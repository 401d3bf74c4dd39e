package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsLines struct {
	conn        *websocket.Conn
	wmu         sync.Mutex
	readTimeout time.Duration
}

// WebSocket carries one transcript line per text message. A zero readTimeout waits forever.
func WebSocket(conn *websocket.Conn, readTimeout time.Duration) Lines {
	conn.SetReadLimit(MaxLineBytes)
	return &wsLines{conn: conn, readTimeout: readTimeout}
}

// Dial connects to an engine websocket endpoint.
func Dial(ctx context.Context, url string, readTimeout time.Duration) (Lines, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return WebSocket(conn, readTimeout), nil
}

func (w *wsLines) WriteLine(line string) error {
	w.wmu.Lock()
	defer w.wmu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (w *wsLines) ReadLine() (string, error) {
	for {
		if w.readTimeout > 0 {
			_ = w.conn.SetReadDeadline(time.Now().Add(w.readTimeout))
		}
		kind, msg, err := w.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return strings.TrimRight(string(msg), "\r\n"), nil
	}
}

func (w *wsLines) Close() error {
	w.wmu.Lock()
	_ = w.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	w.wmu.Unlock()
	return w.conn.Close()
}
