package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/internal/model"
	"pedia-assist-go/internal/retrieval"
	"pedia-assist-go/pkg/llm"
	"pedia-assist-go/pkg/log"
)

const (
	defaultPreamble     = "Based on the available pediatric literature, I found relevant information from the following sources:"
	defaultDisclaimer   = "Please consult with healthcare professionals for specific medical advice."
	defaultNoResultText = "Based on the available pediatric literature, I couldn't find specific information related to your query in the current knowledge base. Please consult with healthcare professionals for medical advice."

	templateExcerptLen = 300
	// 与 Processor 的 chunkSize 对齐，尽量不截断分块内容
	llmSnippetLen = 1000
)

var errEmptyCompletion = errors.New("llm returned an empty answer")

// Composer 根据已引用的来源生成助手回答。
// 回答中的编号 1..n 与 sources 的顺序一一对应，非空回答总以免责声明结尾。
type Composer interface {
	Compose(ctx context.Context, query string, sources []retrieval.CitedSource) (string, error)
}

// NewComposer 根据配置选择回答生成方式，llm 模式缺少客户端时退回模板模式。
func NewComposer(cfg config.ComposerConfig, llmCfg config.LLMConfig, client llm.Client) Composer {
	if cfg.Mode == "llm" && client != nil {
		return NewLLMComposer(client, llmCfg, cfg)
	}
	return NewTemplateComposer(cfg)
}

type composerTexts struct {
	preamble     string
	disclaimer   string
	noResultText string
}

func textsFrom(cfg config.ComposerConfig) composerTexts {
	t := composerTexts{
		preamble:     cfg.Preamble,
		disclaimer:   cfg.Disclaimer,
		noResultText: cfg.NoResultText,
	}
	if t.preamble == "" {
		t.preamble = defaultPreamble
	}
	if t.disclaimer == "" {
		t.disclaimer = defaultDisclaimer
	}
	if t.noResultText == "" {
		t.noResultText = defaultNoResultText
	}
	return t
}

type templateComposer struct {
	texts composerTexts
}

// NewTemplateComposer 创建确定性的模板回答生成器。
func NewTemplateComposer(cfg config.ComposerConfig) Composer {
	return &templateComposer{texts: textsFrom(cfg)}
}

func (c *templateComposer) Compose(_ context.Context, _ string, sources []retrieval.CitedSource) (string, error) {
	if len(sources) == 0 {
		return c.texts.noResultText, nil
	}
	var b strings.Builder
	b.WriteString(c.texts.preamble)
	b.WriteString("\n\n")
	for i, src := range sources {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, templateLine(src.Result.Entry)))
	}
	b.WriteString("\n")
	b.WriteString(c.texts.disclaimer)
	return b.String(), nil
}

func templateLine(e model.CorpusEntry) string {
	body := excerpt(e.Body(), templateExcerptLen)
	switch e.Kind {
	case model.EntryKindChunk:
		heading := fmt.Sprintf("From %q", e.Chunk.ChapterTitle)
		if e.Chunk.SectionTitle != nil && *e.Chunk.SectionTitle != "" {
			heading += " - " + *e.Chunk.SectionTitle
		}
		return fmt.Sprintf("%s (Page %d): %s", heading, e.Chunk.PageNumber, body)
	default:
		kind := strings.ToUpper(string(e.Resource.ResourceKind))
		return fmt.Sprintf("%s: %q - %s: %s", kind, e.Resource.Title, e.Resource.Category, body)
	}
}

// excerpt 折叠空白并按字符数截断，截断时尽量停在词边界。
func excerpt(text string, max int) string {
	s := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)[:max]
	cut := string(r)
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "…"
}

type llmComposer struct {
	client llm.Client
	llmCfg config.LLMConfig
	texts  composerTexts
}

// NewLLMComposer 创建基于大模型的回答生成器。
// 模型只看到检索到的上下文；回答末尾追加编号来源列表与免责声明。
func NewLLMComposer(client llm.Client, llmCfg config.LLMConfig, cfg config.ComposerConfig) Composer {
	return &llmComposer{client: client, llmCfg: llmCfg, texts: textsFrom(cfg)}
}

func (c *llmComposer) Compose(ctx context.Context, query string, sources []retrieval.CitedSource) (string, error) {
	if len(sources) == 0 {
		return c.texts.noResultText, nil
	}

	messages := []llm.Message{
		{Role: "system", Content: c.buildSystemMessage(sources)},
		{Role: "user", Content: query},
	}
	collector := &llm.TextCollector{}
	log.Infof("[Composer] 调用 LLM 生成回答, 来源数: %d", len(sources))
	if err := c.client.StreamChatMessages(ctx, messages, c.buildGenerationParams(), collector); err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	answer := strings.TrimSpace(collector.String())
	if answer == "" {
		return "", errEmptyCompletion
	}

	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n\nSources:\n")
	for i, src := range sources {
		b.WriteString(fmt.Sprintf("[%d] %s\n", i+1, sourceLabel(src.Citation)))
	}
	b.WriteString("\n")
	b.WriteString(c.texts.disclaimer)
	return b.String(), nil
}

func (c *llmComposer) buildSystemMessage(sources []retrieval.CitedSource) string {
	rules := c.llmCfg.Prompt.Rules
	if rules == "" {
		rules = "You are a pediatric knowledge assistant. Answer only from the reference material below and cite it as [n]. If the material does not answer the question, say so."
	}
	refStart := c.llmCfg.Prompt.RefStart
	if refStart == "" {
		refStart = "<<REF>>"
	}
	refEnd := c.llmCfg.Prompt.RefEnd
	if refEnd == "" {
		refEnd = "<<END>>"
	}

	var sys strings.Builder
	sys.WriteString(rules)
	sys.WriteString("\n\n")
	sys.WriteString(refStart)
	sys.WriteString("\n")
	for i, src := range sources {
		snippet := src.Result.Entry.Body()
		if utf8.RuneCountInString(snippet) > llmSnippetLen {
			snippet = string([]rune(snippet)[:llmSnippetLen]) + "…"
		}
		sys.WriteString(fmt.Sprintf("[%d] (%s) %s\n", i+1, sourceLabel(src.Citation), snippet))
	}
	sys.WriteString(refEnd)
	return sys.String()
}

func (c *llmComposer) buildGenerationParams() *llm.GenerationParams {
	var gp llm.GenerationParams
	if c.llmCfg.Generation.Temperature != 0 {
		t := c.llmCfg.Generation.Temperature
		gp.Temperature = &t
	}
	if c.llmCfg.Generation.TopP != 0 {
		p := c.llmCfg.Generation.TopP
		gp.TopP = &p
	}
	if c.llmCfg.Generation.MaxTokens != 0 {
		m := c.llmCfg.Generation.MaxTokens
		gp.MaxTokens = &m
	}
	if gp.Temperature == nil && gp.TopP == nil && gp.MaxTokens == nil {
		return nil
	}
	return &gp
}

func sourceLabel(c model.Citation) string {
	if c.PageNumber != nil {
		return fmt.Sprintf("%s, p. %d", c.Source, *c.PageNumber)
	}
	return c.Source
}
