package transport

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	var out bytes.Buffer
	s := Stream(strings.NewReader("5 7\r\nTILE EMPTY\n"), &out)

	require.NoError(t, s.WriteLine("REQUEST MY_POS"))
	require.Equal(t, "REQUEST MY_POS\n", out.String())

	line, err := s.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "5 7", line, "Carriage returns should be trimmed")

	line, err = s.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "TILE EMPTY", line)

	_, err = s.ReadLine()
	require.ErrorIs(t, err, io.EOF)

	require.Error(t, s.WriteLine("two\nlines"))
}

func TestStreamLineTooLong(t *testing.T) {
	s := Stream(strings.NewReader(strings.Repeat("x", MaxLineBytes+10)+"\n"), io.Discard)
	_, err := s.ReadLine()
	require.ErrorIs(t, err, ErrLineTooLong)
}

func TestPipe(t *testing.T) {
	a, b := Pipe()
	go func() {
		_ = a.WriteLine("BLACK")
	}()
	line, err := b.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "BLACK", line)

	require.NoError(t, a.Close())
	_, err = b.ReadLine()
	require.Error(t, err)
}

func TestWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		// Echo every request with a fixed reply.
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			reply := "ECHO " + string(msg)
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	lines, err := Dial(context.Background(), url, time.Second)
	require.NoError(t, err)
	defer lines.Close()

	require.NoError(t, lines.WriteLine("REQUEST MY_POS"))
	line, err := lines.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "ECHO REQUEST MY_POS", line)
}
