package notion

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-agent/internal/core"
	"research-agent/internal/govern"
)

func TestUpsertTopic_UnconfiguredReturnsSkipped(t *testing.T) {
	c := NewClient("", "", govern.New())
	action, err := c.UpsertTopic(context.Background(), core.Topic{ID: "t1", Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, ActionSkipped, action)
}

func TestUpsertTopic_CreatesWhenNoExistingPageFound(t *testing.T) {
	var sawCreate bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/databases/db-1/query":
			w.Write([]byte(`{"results":[]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/pages":
			sawCreate = true
			w.Write([]byte(`{"id":"new-page"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", "db-1", govern.New())
	c.baseURL = srv.URL

	action, err := c.UpsertTopic(context.Background(), core.Topic{ID: "t1", Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, action)
	assert.True(t, sawCreate)
}

func TestUpsertTopic_UpdatesWhenExistingPageFound(t *testing.T) {
	var sawPatch bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/databases/db-1/query":
			w.Write([]byte(`{"results":[{"id":"existing-page"}]}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/pages/existing-page":
			sawPatch = true
			w.Write([]byte(`{"id":"existing-page"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", "db-1", govern.New())
	c.baseURL = srv.URL

	action, err := c.UpsertTopic(context.Background(), core.Topic{ID: "t1", Title: "A"})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, action)
	assert.True(t, sawPatch)
}

func TestUpsertBatch_SkipErrorsContinuesPastFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/databases/db-1/query":
			w.Write([]byte(`{"results":[]}`))
		case r.URL.Path == "/pages":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", "db-1", govern.New())
	c.baseURL = srv.URL

	topics := []core.Topic{{ID: "t1", Title: "A"}, {ID: "t2", Title: "B"}}
	result := c.UpsertBatch(context.Background(), topics, true)
	assert.Len(t, result.Errors, 2)
	assert.Equal(t, 0, result.Created)
}

func TestUpsertBatch_StopsOnFirstErrorWhenNotSkipping(t *testing.T) {
	var createCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/databases/db-1/query":
			w.Write([]byte(`{"results":[]}`))
		case r.URL.Path == "/pages":
			createCalls++
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("secret", "db-1", govern.New())
	c.baseURL = srv.URL

	topics := []core.Topic{{ID: "t1", Title: "A"}, {ID: "t2", Title: "B"}}
	result := c.UpsertBatch(context.Background(), topics, false)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, 1, createCalls)
}
