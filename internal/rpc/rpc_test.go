package rpc

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadRequest_ParsesFrame(t *testing.T) {
	conn := NewConn(strings.NewReader(`{"id":1,"method":"cortex_remember","params":{"content":"x"}}`+"\n"), &bytes.Buffer{})

	req, err := conn.ReadRequest()
	require.NoError(t, err)
	require.Equal(t, "cortex_remember", req.Method)

	var id int
	require.NoError(t, json.Unmarshal(req.ID, &id))
	require.Equal(t, 1, id)
}

func TestReadRequest_ReturnsEOFOnGracefulClose(t *testing.T) {
	conn := NewConn(strings.NewReader(""), &bytes.Buffer{})
	_, err := conn.ReadRequest()
	require.ErrorIs(t, err, io.EOF)
}

func TestReadRequest_MalformedFrameIsAnError(t *testing.T) {
	conn := NewConn(strings.NewReader("not json\n"), &bytes.Buffer{})
	_, err := conn.ReadRequest()
	require.Error(t, err)
}

func TestWriteResponse_NewlineTerminated(t *testing.T) {
	var buf bytes.Buffer
	conn := NewConn(strings.NewReader(""), &buf)

	require.NoError(t, conn.WriteResponse(Response{ID: json.RawMessage("1"), Result: map[string]string{"ok": "true"}}))
	require.True(t, strings.HasSuffix(buf.String(), "\n"))

	var resp Response
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &resp))
}
