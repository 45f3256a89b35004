package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperationKind(t *testing.T) {
	cases := []struct {
		name  string
		query string
		want  Kind
	}{
		{name: "shorthand", query: "{ matches { id } }", want: KindQuery},
		{name: "named query", query: "query all { players { id } }", want: KindQuery},
		{name: "mutation", query: "\n  mutation createPlayer($name: String!) { createPlayer(input: {name: $name}) { result { id } } }", want: KindMutation},
		{name: "subscription", query: "subscription side($id: ID!) { side(id: $id) { id points } }", want: KindSubscription},
		{name: "comment first", query: "# live scores\nsubscription match { match { id name } }", want: KindSubscription},
		{name: "fragment first", query: "fragment S on Side { id points }\nsubscription side($id: ID!) { side(id: $id) { ...S } }", want: KindSubscription},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OperationKind(tc.query))
		})
	}
}

func newHTTPServer(t *testing.T, handler func(req Request) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		status, body := handler(req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDo_DecodesData(t *testing.T) {
	var got Request
	srv := newHTTPServer(t, func(req Request) (int, string) {
		got = req
		return http.StatusOK, `{"data":{"players":[{"id":"1","name":"Ann"}]}}`
	})
	c := NewClient(srv.URL, "ws://unused")

	var out struct {
		Players []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"players"`
	}
	err := c.Do(context.Background(), Request{Query: "{ players { id name } }", Variables: map[string]any{"x": 1}}, &out)

	require.NoError(t, err)
	require.Len(t, out.Players, 1)
	assert.Equal(t, "Ann", out.Players[0].Name)
	assert.Equal(t, "{ players { id name } }", got.Query)
	assert.EqualValues(t, 1, got.Variables["x"])
}

func TestDo_GraphQLErrors(t *testing.T) {
	srv := newHTTPServer(t, func(Request) (int, string) {
		return http.StatusOK, `{"data":null,"errors":[{"message":"boom"},{"message":"bang"}]}`
	})
	c := NewClient(srv.URL, "ws://unused")

	err := c.Do(context.Background(), Request{Query: "{ players { id } }"}, nil)

	var gqlErrs Errors
	require.True(t, errors.As(err, &gqlErrs))
	assert.Len(t, gqlErrs, 2)
	assert.Equal(t, "graphql: boom; bang", err.Error())
}

func TestDo_BadStatus(t *testing.T) {
	srv := newHTTPServer(t, func(Request) (int, string) {
		return http.StatusBadGateway, `upstream down`
	})
	c := NewClient(srv.URL, "ws://unused")

	err := c.Do(context.Background(), Request{Query: "{ players { id } }"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestTransportSplit(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/graphql", "ws://127.0.0.1:1/graphql")

	err := c.Do(context.Background(), Request{Query: "subscription match { match { id } }"}, nil)
	assert.ErrorIs(t, err, ErrWrongTransport)

	_, err = c.Subscribe(context.Background(), Request{Query: "mutation m { x }"}, func(json.RawMessage, error) {})
	assert.ErrorIs(t, err, ErrWrongTransport)
}
