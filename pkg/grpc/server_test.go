package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoParams struct {
	Text string `json:"text"`
}

func startServer(t *testing.T, timeout time.Duration) (*Server, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := NewServer(timeout)
	s.Register("Echo.Say", func(ctx context.Context, req json.RawMessage) (any, error) {
		var p echoParams
		if err := json.Unmarshal(req, &p); err != nil {
			return nil, apperrors.New(apperrors.ErrInvalidInput, err.Error())
		}
		return echoParams{Text: p.Text}, nil
	})
	s.Register("Echo.Missing", func(ctx context.Context, req json.RawMessage) (any, error) {
		return nil, apperrors.Newf(apperrors.ErrSessionNotFound, "session %q", "abc")
	})
	s.Register("Echo.Clarify", func(ctx context.Context, req json.RawMessage) (any, error) {
		return echoParams{Text: "unchanged"}, apperrors.New(apperrors.ErrUnrecognizedCommand, "which item?")
	})
	s.Register("Echo.Deadline", func(ctx context.Context, req json.RawMessage) (any, error) {
		if _, ok := ctx.Deadline(); !ok {
			return nil, errors.New("no deadline")
		}
		return "ok", nil
	})
	go s.ServeListener(ln)
	t.Cleanup(s.Stop)
	return s, ln.Addr().String()
}

func TestCall_RoundTrip(t *testing.T) {
	_, addr := startServer(t, time.Second)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	var out echoParams
	require.NoError(t, c.Call(context.Background(), "Echo.Say", echoParams{Text: "olá"}, &out))
	assert.Equal(t, "olá", out.Text)
}

func TestCall_RemoteErrorCarriesCode(t *testing.T) {
	_, addr := startServer(t, time.Second)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	err = c.Call(context.Background(), "Echo.Missing", struct{}{}, nil)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, apperrors.CodeNotFound, remote.Code)

	err = c.Call(context.Background(), "Echo.Nope", struct{}{}, nil)
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, apperrors.CodeInvalidInput, remote.Code)
}

func TestServer_AppliesRequestTimeout(t *testing.T) {
	s, addr := startServer(t, time.Second)
	observed := make(chan string, 1)
	s.Observe(func(method, code string) { observed <- method + ":" + code })

	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	var out string
	require.NoError(t, c.Call(context.Background(), "Echo.Deadline", struct{}{}, &out))
	assert.Equal(t, "ok", out)
	assert.Equal(t, "Echo.Deadline:ok", <-observed)
	assert.Equal(t, 4, s.MethodCount())
}

func TestCall_DataAlongsideError(t *testing.T) {
	_, addr := startServer(t, time.Second)
	c, err := Dial(addr)
	require.NoError(t, err)
	defer c.Close()

	var out echoParams
	err = c.Call(context.Background(), "Echo.Clarify", struct{}{}, &out)
	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, apperrors.CodeClarification, remote.Code)
	assert.Equal(t, "unchanged", out.Text)
}
