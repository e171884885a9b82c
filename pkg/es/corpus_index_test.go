package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedia-assist-go/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestBuildCandidateQuery(t *testing.T) {
	q := BuildCandidateQuery(model.EntryKindChunk, []string{"Asthma", "5*"}, 20)
	assert.Equal(t, 20, q["size"])

	b, err := json.Marshal(q)
	require.NoError(t, err)
	body := string(b)
	assert.Contains(t, body, `"kind":"chunk"`)
	assert.Contains(t, body, `"section_title"`)
	assert.NotContains(t, body, `"category"`)
	assert.Contains(t, body, `"value":"*asthma*"`)
	assert.Contains(t, body, `"value":"*5\\*"`)
	assert.Contains(t, body, `"case_insensitive":true`)
	assert.Contains(t, body, `"minimum_should_match":1`)
}

func TestCorpusIndex_ListCandidatesByTerms(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		if strings.Contains(string(b), `"kind":"resource"`) {
			_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"entry_id":"res-fever-1","kind":"resource","title":"Fever Protocol","category":"Emergency","content":"fever in children","resource_kind":"protocol","chunk_index":0}}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_source":{"entry_id":"chunk-resp-1","kind":"chunk","title":"Respiratory Disorders","section_title":"Pediatric Asthma","content":"asthma in children","page_number":245,"chunk_index":0,"vector":[1,0]}}]}}`))
	})

	idx := NewCorpusIndex(client, "pedia_corpus")
	entries, err := idx.ListCandidatesByTerms(context.Background(), []string{"children"}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, model.EntryKindChunk, entries[0].Kind)
	assert.Equal(t, "chunk-resp-1", entries[0].ID())
	assert.Equal(t, 245, entries[0].Chunk.PageNumber)
	require.NotNil(t, entries[0].Chunk.SectionTitle)
	assert.Equal(t, "Pediatric Asthma", *entries[0].Chunk.SectionTitle)
	assert.Equal(t, []float32{1, 0}, []float32(entries[0].Chunk.Embedding))

	assert.Equal(t, model.EntryKindResource, entries[1].Kind)
	assert.Equal(t, "Fever Protocol", entries[1].Resource.Title)
	assert.Equal(t, model.ResourceKindProtocol, entries[1].Resource.ResourceKind)

	for _, p := range paths {
		assert.Equal(t, "/pedia_corpus/_search", p)
	}
}

func TestCorpusIndex_SearchError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"boom"}`))
	})

	idx := NewCorpusIndex(client, "pedia_corpus")
	_, err := idx.ListCandidatesByTerms(context.Background(), []string{"asthma"}, 5)
	assert.Error(t, err)

	entries, err := idx.ListCandidatesByTerms(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCorpusIndex_IndexEntry(t *testing.T) {
	var gotPath string
	var gotDoc model.EsCorpusDocument
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotDoc)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	idx := NewCorpusIndex(client, "pedia_corpus")
	entry := model.ResourceEntry(&model.ReferenceResource{
		ID: "res-fever-1", Title: "Fever Protocol", Content: "fever", ResourceKind: model.ResourceKindProtocol,
		Category: "Emergency", Tags: []string{"fever"},
	})
	require.NoError(t, idx.IndexEntry(context.Background(), entry))
	assert.Equal(t, "/pedia_corpus/_doc/res-fever-1", gotPath)
	assert.Equal(t, model.EntryKindResource, gotDoc.Kind)
	assert.Equal(t, "Emergency", gotDoc.Category)
	assert.Equal(t, []string{"fever"}, gotDoc.Tags)
}
