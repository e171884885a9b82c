package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"golang.org/x/sync/errgroup"

	"pedia-assist-go/internal/model"
	"pedia-assist-go/pkg/log"
)

// maxResultWindow 是 limitPerKind <= 0 时单次查询的返回上限（ES 默认 index.max_result_window）。
const maxResultWindow = 10000

// CorpusIndex 是基于 Elasticsearch 的语料存储检索后端。
type CorpusIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewCorpusIndex 创建一个 CorpusIndex。
func NewCorpusIndex(client *elasticsearch.Client, index string) *CorpusIndex {
	return &CorpusIndex{client: client, index: index}
}

// IndexEntry 将单个语料条目写入索引，文档 ID 即条目 ID。
func (i *CorpusIndex) IndexEntry(ctx context.Context, entry model.CorpusEntry) error {
	docBytes, err := json.Marshal(model.NewEsCorpusDocument(entry))
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: entry.ID(),
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index corpus entry")
	}
	return nil
}

// ListCandidatesByTerms 与关系型存储语义一致：正文或标题类字段包含任一词项的条目，
// 先教材分块后参考资源，各自按 ID 升序。
func (i *CorpusIndex) ListCandidatesByTerms(ctx context.Context, terms []string, limitPerKind int) ([]model.CorpusEntry, error) {
	if len(terms) == 0 {
		return []model.CorpusEntry{}, nil
	}
	size := limitPerKind
	if size <= 0 {
		size = maxResultWindow
	}

	var chunks, resources []model.CorpusEntry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		chunks, err = i.search(gctx, BuildCandidateQuery(model.EntryKindChunk, terms, size))
		return err
	})
	g.Go(func() error {
		var err error
		resources, err = i.search(gctx, BuildCandidateQuery(model.EntryKindResource, terms, size))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return append(chunks, resources...), nil
}

// BuildCandidateQuery 构建某一类条目的子串匹配查询。
func BuildCandidateQuery(kind model.EntryKind, terms []string, size int) map[string]interface{} {
	fields := []string{"content", "title", "category"}
	if kind == model.EntryKindChunk {
		fields = []string{"content", "title", "section_title"}
	}
	should := make([]map[string]interface{}, 0, len(terms)*len(fields))
	for _, term := range terms {
		pattern := "*" + escapeWildcard(strings.ToLower(term)) + "*"
		for _, f := range fields {
			should = append(should, map[string]interface{}{
				"wildcard": map[string]interface{}{
					f: map[string]interface{}{
						"value":            pattern,
						"case_insensitive": true,
					},
				},
			})
		}
	}
	return map[string]interface{}{
		"size": size,
		"sort": []map[string]interface{}{{"entry_id": "asc"}},
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter":               []map[string]interface{}{{"term": map[string]interface{}{"kind": string(kind)}}},
				"should":               should,
				"minimum_should_match": 1,
			},
		},
	}
}

func (i *CorpusIndex) search(ctx context.Context, query map[string]interface{}) ([]model.CorpusEntry, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.index),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		log.Errorf("[CorpusIndex] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(bodyBytes))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsCorpusDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	entries := make([]model.CorpusEntry, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		entries = append(entries, hit.Source.ToEntry())
	}
	return entries, nil
}

// escapeWildcard 转义 wildcard 查询中的特殊字符。
func escapeWildcard(s string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`).Replace(s)
}
