package service

import (
	"context"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/retrieval"
	"pedia-assist-go/pkg/llm"
)

func strPtr(s string) *string { return &s }

func citedFixture() []retrieval.CitedSource {
	return retrieval.BuildCitations([]model.SearchResult{
		{Entry: model.ChunkEntry(&model.TextbookChunk{
			ID:           "chunk-resp-1",
			ChapterTitle: "Respiratory Disorders",
			SectionTitle: strPtr("Pediatric Asthma"),
			Content:      "Asthma is a chronic respiratory condition affecting many children.",
			PageNumber:   245,
		}), Score: 1},
		{Entry: model.ResourceEntry(&model.ReferenceResource{
			ID:           "res-fever-1",
			Title:        "Fever Protocol",
			Content:      "Guidelines for managing fever in infants and children.",
			ResourceKind: model.ResourceKindProtocol,
			Category:     "Emergency",
		}), Score: 0.7},
	})
}

func TestTemplateComposer(t *testing.T) {
	c := NewTemplateComposer(config.ComposerConfig{})

	text, err := c.Compose(context.Background(), "asthma management in children", citedFixture())
	require.NoError(t, err)

	want := defaultPreamble + "\n\n" +
		`1. From "Respiratory Disorders" - Pediatric Asthma (Page 245): Asthma is a chronic respiratory condition affecting many children.` + "\n" +
		`2. PROTOCOL: "Fever Protocol" - Emergency: Guidelines for managing fever in infants and children.` + "\n" +
		"\n" + defaultDisclaimer
	assert.Equal(t, want, text)
	assert.True(t, strings.HasSuffix(text, defaultDisclaimer))
}

func TestTemplateComposer_Fallback(t *testing.T) {
	c := NewTemplateComposer(config.ComposerConfig{})

	text, err := c.Compose(context.Background(), "quantum mechanics in pediatrics", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultNoResultText, text)

	custom := NewTemplateComposer(config.ComposerConfig{NoResultText: "Nothing found."})
	text, err = custom.Compose(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, "Nothing found.", text)
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "a b c", excerpt("a\n\n b \t c", 10))
	assert.Equal(t, "alpha beta…", excerpt("alpha beta gamma", 12))
	assert.Equal(t, "alphabetag…", excerpt("alphabetagamma", 10))
}

// mockLLM implements llm.Client for testing.
type mockLLM struct {
	chunks   []string
	err      error
	messages []llm.Message
	calls    int
}

func (m *mockLLM) StreamChatMessages(_ context.Context, messages []llm.Message, _ *llm.GenerationParams, w llm.MessageWriter) error {
	m.calls++
	m.messages = messages
	if m.err != nil {
		return m.err
	}
	for _, c := range m.chunks {
		if err := w.WriteMessage(websocket.TextMessage, []byte(c)); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockLLM) StreamChat(ctx context.Context, prompt string, w llm.MessageWriter) error {
	return m.StreamChatMessages(ctx, []llm.Message{{Role: "user", Content: prompt}}, nil, w)
}

func TestLLMComposer(t *testing.T) {
	client := &mockLLM{chunks: []string{"Asthma is managed with ", "bronchodilators [1]."}}
	c := NewLLMComposer(client, config.LLMConfig{}, config.ComposerConfig{})

	text, err := c.Compose(context.Background(), "asthma management in children", citedFixture())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "Asthma is managed with bronchodilators [1]."))
	assert.Contains(t, text, "[1] Respiratory Disorders, p. 245\n[2] Fever Protocol\n")
	assert.True(t, strings.HasSuffix(text, defaultDisclaimer))

	require.Len(t, client.messages, 2)
	assert.Equal(t, "system", client.messages[0].Role)
	assert.Contains(t, client.messages[0].Content, "<<REF>>\n[1] (Respiratory Disorders, p. 245) Asthma is a chronic")
	assert.Contains(t, client.messages[0].Content, "[2] (Fever Protocol) Guidelines")
	assert.Equal(t, llm.Message{Role: "user", Content: "asthma management in children"}, client.messages[1])
}

func TestLLMComposer_NoSourcesSkipsModel(t *testing.T) {
	client := &mockLLM{}
	c := NewLLMComposer(client, config.LLMConfig{}, config.ComposerConfig{})

	text, err := c.Compose(context.Background(), "quantum", nil)
	require.NoError(t, err)
	assert.Equal(t, defaultNoResultText, text)
	assert.Equal(t, 0, client.calls)
}

func TestLLMComposer_Errors(t *testing.T) {
	c := NewLLMComposer(&mockLLM{err: assert.AnError}, config.LLMConfig{}, config.ComposerConfig{})
	_, err := c.Compose(context.Background(), "asthma", citedFixture())
	assert.ErrorIs(t, err, assert.AnError)

	c = NewLLMComposer(&mockLLM{chunks: []string{"  "}}, config.LLMConfig{}, config.ComposerConfig{})
	_, err = c.Compose(context.Background(), "asthma", citedFixture())
	assert.ErrorIs(t, err, errEmptyCompletion)
}

func TestNewComposer(t *testing.T) {
	_, ok := NewComposer(config.ComposerConfig{Mode: "llm"}, config.LLMConfig{}, &mockLLM{}).(*llmComposer)
	assert.True(t, ok)
	_, ok = NewComposer(config.ComposerConfig{Mode: "llm"}, config.LLMConfig{}, nil).(*templateComposer)
	assert.True(t, ok)
	_, ok = NewComposer(config.ComposerConfig{}, config.LLMConfig{}, &mockLLM{}).(*templateComposer)
	assert.True(t, ok)
}
