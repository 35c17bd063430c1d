package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Call(t *testing.T) {
	t.Run("success returns decoded result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/call", r.URL.Path)

			var req rpcRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "getTicketPrice", req.Method)

			json.NewEncoder(w).Encode(rpcResponse{Result: "5000000000000000000"})
		}))
		defer srv.Close()

		tr := NewHTTPTransport(time.Second)
		result, err := tr.Call(context.Background(), srv.URL, "getTicketPrice")
		require.NoError(t, err)
		assert.Equal(t, "5000000000000000000", result)
	})

	t.Run("numbers decode without float rounding", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Larger than 2^53; a float64 round-trip would corrupt it.
			w.Write([]byte(`{"result": 90071992547409921}`))
		}))
		defer srv.Close()

		tr := NewHTTPTransport(time.Second)
		result, err := tr.Call(context.Background(), srv.URL, "getCurrentPool")
		require.NoError(t, err)

		num, ok := result.(json.Number)
		require.True(t, ok)

		n, err := ParseBigInt("getCurrentPool", num)
		require.NoError(t, err)
		assert.Equal(t, "90071992547409921", n.String())
	})

	t.Run("contract revert is an invalid response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(rpcResponse{Error: "draw not finished"})
		}))
		defer srv.Close()

		tr := NewHTTPTransport(time.Second)
		_, err := tr.Call(context.Background(), srv.URL, "getWinners", 3, 1)
		require.Error(t, err)
		assert.Equal(t, KindInvalidResponse, Classify(err))
		assert.False(t, Recoverable(err), "a revert must not be retried")
		assert.Contains(t, err.Error(), "draw not finished")
	})

	t.Run("5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		tr := NewHTTPTransport(time.Second)
		_, err := tr.Call(context.Background(), srv.URL, "getCurrentPool")
		require.Error(t, err)
		assert.Equal(t, KindTransient, Classify(err))
		assert.True(t, Recoverable(err))
	})

	t.Run("4xx is invalid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		tr := NewHTTPTransport(time.Second)
		_, err := tr.Call(context.Background(), srv.URL, "noSuchMethod")
		require.Error(t, err)
		assert.Equal(t, KindInvalidResponse, Classify(err))
	})

	t.Run("malformed body is invalid", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		tr := NewHTTPTransport(time.Second)
		_, err := tr.Call(context.Background(), srv.URL, "getCurrentPool")
		require.Error(t, err)
		assert.Equal(t, KindInvalidResponse, Classify(err))
	})

	t.Run("unreachable endpoint is recoverable", func(t *testing.T) {
		tr := NewHTTPTransport(200 * time.Millisecond)
		_, err := tr.Call(context.Background(), "http://127.0.0.1:1", "getCurrentPool")
		require.Error(t, err)
		assert.True(t, Recoverable(err))
	})

	t.Run("context cancellation stops the call", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		tr := NewHTTPTransport(time.Minute)
		_, err := tr.Call(ctx, srv.URL, "getCurrentPool")
		require.Error(t, err)
		assert.Equal(t, KindTimeout, Classify(err))
	})
}
