package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/omnicortex/omnicortex/internal/broadcast"
	"github.com/omnicortex/omnicortex/internal/catalog"
	"github.com/omnicortex/omnicortex/internal/dispatch"
	"github.com/omnicortex/omnicortex/internal/embedding"
	"github.com/omnicortex/omnicortex/internal/retrieval"
	"github.com/omnicortex/omnicortex/internal/rpc"
	"github.com/omnicortex/omnicortex/internal/session"
	"github.com/omnicortex/omnicortex/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()
	emb := embedding.NewLocal(16)
	cat, err := catalog.Open(ctx, catalog.Options{Path: ":memory:", Dimension: emb.Dimension()})
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	bus := broadcast.New(16, nil)
	store := storage.New(cat, emb, bus, nil)
	retrieve := retrieval.New(cat, emb, nil)
	sessions := session.New(store, t.TempDir(), "/tmp/project")

	return New(dispatch.New(store, retrieve, sessions, nil), nil)
}

// pipeHarness wires Server.Serve to an in-process client over io.Pipe,
// returning helpers to send a line and read the next response line.
type pipeHarness struct {
	clientOut io.WriteCloser
	clientIn  *bufio.Reader
	done      chan error
}

func newPipeHarness(t *testing.T, srv *Server) *pipeHarness {
	t.Helper()
	serverIn, clientOut := io.Pipe()
	clientIn, serverOut := io.Pipe()

	h := &pipeHarness{clientOut: clientOut, clientIn: bufio.NewReader(clientIn), done: make(chan error, 1)}

	conn := rpc.NewConn(serverIn, serverOut)
	go func() { h.done <- srv.Serve(context.Background(), conn) }()
	t.Cleanup(func() { clientOut.Close() })
	return h
}

func (h *pipeHarness) send(t *testing.T, req rpc.Request) {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)
	data = append(data, '\n')
	_, err = h.clientOut.Write(data)
	require.NoError(t, err)
}

func (h *pipeHarness) recv(t *testing.T) rpc.Response {
	t.Helper()
	line, err := h.clientIn.ReadString('\n')
	require.NoError(t, err)
	var resp rpc.Response
	require.NoError(t, json.Unmarshal([]byte(line), &resp))
	return resp
}

func TestServer_RejectsToolCallBeforeInitialize(t *testing.T) {
	h := newPipeHarness(t, newTestServer(t))

	h.send(t, rpc.Request{ID: json.RawMessage(`1`), Method: "cortex_list_tags"})
	resp := h.recv(t)
	require.NotNil(t, resp.Error)
}

func TestServer_InitializeThenToolCallSucceeds(t *testing.T) {
	h := newPipeHarness(t, newTestServer(t))

	h.send(t, rpc.Request{ID: json.RawMessage(`1`), Method: "initialize"})
	initResp := h.recv(t)
	require.Nil(t, initResp.Error)

	h.send(t, rpc.Request{ID: json.RawMessage(`2`), Method: "cortex_list_tags"})
	resp := h.recv(t)
	require.Nil(t, resp.Error)
}

func TestServer_RequestsAnsweredInOrder(t *testing.T) {
	h := newPipeHarness(t, newTestServer(t))

	h.send(t, rpc.Request{ID: json.RawMessage(`0`), Method: "initialize"})
	h.recv(t)

	h.send(t, rpc.Request{ID: json.RawMessage(`"a"`), Method: "cortex_list_tags"})
	h.send(t, rpc.Request{ID: json.RawMessage(`"b"`), Method: "cortex_list_tags"})

	first := h.recv(t)
	second := h.recv(t)
	require.Equal(t, `"a"`, string(first.ID))
	require.Equal(t, `"b"`, string(second.ID))
}

func TestServer_ClosesCleanlyOnEOF(t *testing.T) {
	srv := newTestServer(t)
	h := newPipeHarness(t, srv)

	h.send(t, rpc.Request{ID: json.RawMessage(`1`), Method: "initialize"})
	h.recv(t)
	require.NoError(t, h.clientOut.Close())

	err := <-h.done
	require.NoError(t, err)
}
