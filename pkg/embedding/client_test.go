package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedia-assist-go/internal/config"
)

func TestClient_CreateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding", req.Model)
		assert.Equal(t, []string{"asthma"}, req.Input)
		assert.Equal(t, 3, req.Dimensions)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{APIKey: "key", BaseURL: srv.URL, Model: "text-embedding", Dimensions: 3})
	vec, err := c.CreateEmbedding(context.Background(), "asthma")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClient_CreateEmbeddingErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}},
		{"empty data", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"data":`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := NewClient(config.EmbeddingConfig{BaseURL: srv.URL})
			_, err := c.CreateEmbedding(context.Background(), "asthma")
			assert.Error(t, err)
		})
	}
}

func TestClient_RejectsWrongDimensions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2]}]}`))
	}))
	defer srv.Close()

	c := NewClient(config.EmbeddingConfig{BaseURL: srv.URL + "/", Model: "text-embedding", Dimensions: 3})
	_, err := c.CreateEmbedding(context.Background(), "asthma")
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCacheKey(t *testing.T) {
	a := CacheKey("m1", "asthma")
	assert.Equal(t, a, CacheKey("m1", "asthma"))
	assert.NotEqual(t, a, CacheKey("m2", "asthma"))
	assert.NotEqual(t, a, CacheKey("m1", "croup"))
	assert.Contains(t, a, "embedding:m1:")
}
