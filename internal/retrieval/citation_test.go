package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedia-assist-go/internal/model"
)

func TestBuildCitations(t *testing.T) {
	results := []model.SearchResult{
		{Entry: asthmaChunk(), Score: 0.9},
		{Entry: feverResource(), Score: 0.7},
		{Entry: asthmaChunk(), Score: 0.6},
	}

	cited := BuildCitations(results)
	require.Len(t, cited, 2)

	chunk := cited[0].Citation
	assert.Equal(t, "Respiratory Disorders", chunk.Source)
	assert.Equal(t, "chunk-resp-1", chunk.EntryID)
	require.NotNil(t, chunk.PageNumber)
	assert.Equal(t, 245, *chunk.PageNumber)

	res := cited[1].Citation
	assert.Equal(t, "Fever Protocol", res.Source)
	assert.Equal(t, "res-fever-1", res.EntryID)
	assert.Nil(t, res.PageNumber)

	assert.Equal(t, []model.Citation{chunk, res}, Citations(cited))
}

func TestBuildCitations_Empty(t *testing.T) {
	assert.Nil(t, BuildCitations(nil))
	assert.Nil(t, BuildCitations([]model.SearchResult{}))
	assert.Nil(t, Citations(nil))
}
