package gelfingress

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"gotest.tools/v3/assert"

	"rlog/internal/queue"
	"rlog/internal/wire"
)

func TestDecodeNormalizesReservedAndUnderscoreFields(t *testing.T) {
	frame, err := json.Marshal(map[string]any{
		"version":       "1.1",
		"host":          "web-01",
		"short_message": "boom",
		"full_message":  "boom with trace",
		"timestamp":     1700000000.5,
		"level":         3,
		"_service":      "api",
		"_request_id":   "abc-123",
	})
	assert.NilError(t, err)

	ll, err := decode(frame)
	assert.NilError(t, err)
	assert.Equal(t, ll.Host, "web-01")
	assert.Equal(t, ll.Timestamp.Seconds, int64(1700000000))

	gl, ok := ll.Line.(*wire.GelfLine)
	assert.Check(t, ok)
	assert.Equal(t, gl.ShortMessage, "boom")
	assert.Equal(t, *gl.FullMessage, "boom with trace")
	assert.Equal(t, gl.Severity, int32(3))

	var extra map[string]any
	assert.NilError(t, json.Unmarshal([]byte(gl.Extra), &extra))
	assert.Equal(t, extra["service"], "api")
	assert.Equal(t, extra["request_id"], "abc-123")
	_, hasHost := extra["host"]
	assert.Check(t, !hasHost)
}

func TestDecodeMissingShortMessageErrors(t *testing.T) {
	frame, err := json.Marshal(map[string]any{
		"host":      "web-01",
		"timestamp": 1700000000.0,
	})
	assert.NilError(t, err)

	_, err = decode(frame)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestIngressEndToEndOverTCP(t *testing.T) {
	out := queue.New[*wire.LogLine](4)
	in := New("127.0.0.1:0", out, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	assert.NilError(t, err)
	in.addr = ln.Addr().String()
	ln.Close()

	go in.Run(ctx)

	var conn net.Conn
	for i := 0; i < 50; i++ {
		conn, err = net.Dial("tcp", in.addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.NilError(t, err)
	defer conn.Close()

	frame, err := json.Marshal(map[string]any{
		"host":          "web-02",
		"short_message": "hello",
		"timestamp":     1700000000.0,
	})
	assert.NilError(t, err)

	w := bufio.NewWriter(conn)
	_, err = w.Write(append(frame, 0x00))
	assert.NilError(t, err)
	assert.NilError(t, w.Flush())

	select {
	case ll := <-out.Receiver():
		assert.Equal(t, ll.Host, "web-02")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for decoded record")
	}
}
