// Package embedding 提供 OpenAI 兼容的向量服务客户端及其 Redis 缓存。
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pedia-assist-go/internal/config"
	"pedia-assist-go/pkg/log"
)

// ErrDimensionMismatch 表示向量服务返回的维度与配置不一致。
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Client 将一段文本转换为向量。
type Client interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	model   string
	dims    int
	http    *http.Client
}

// NewClient 创建向量服务客户端。cfg.Dimensions > 0 时，返回的向量必须恰好是该维度。
func NewClient(cfg config.EmbeddingConfig) Client {
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// CreateEmbedding calls the OpenAI-compatible /embeddings endpoint for a single input.
func (c *httpClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	log.Infof("[EmbeddingClient] 调用 Embedding API, model: %s, input_len: %d", c.model, len(text))

	body, err := json.Marshal(embeddingRequest{Model: c.model, Input: []string{text}, Dimensions: c.dims})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, fmt.Errorf("failed to call embedding api: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		return nil, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from api")
	}
	vec := out.Data[0].Embedding
	if c.dims > 0 && len(vec) != c.dims {
		log.Errorf("[EmbeddingClient] 向量维度 %d 与配置 %d 不一致", len(vec), c.dims)
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), c.dims)
	}
	return vec, nil
}
