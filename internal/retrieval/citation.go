package retrieval

import "pedia-assist-go/internal/model"

// CitedSource 将一条排序结果与其引用配对，回答中的编号与引用列表的位置一一对应。
type CitedSource struct {
	Result   model.SearchResult
	Citation model.Citation
}

// BuildCitations 为排序结果逐条生成引用，保持输入顺序。
// 同一条目重复出现时只保留第一次。输入为空时返回 nil。
func BuildCitations(results []model.SearchResult) []CitedSource {
	if len(results) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(results))
	out := make([]CitedSource, 0, len(results))
	for _, res := range results {
		id := res.Entry.ID()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, CitedSource{Result: res, Citation: citationFor(res.Entry)})
	}
	return out
}

// Citations 取出引用列表，空列表返回 nil。
func Citations(cited []CitedSource) []model.Citation {
	if len(cited) == 0 {
		return nil
	}
	out := make([]model.Citation, len(cited))
	for i, c := range cited {
		out[i] = c.Citation
	}
	return out
}

func citationFor(e model.CorpusEntry) model.Citation {
	c := model.Citation{Source: e.SourceLabel(), EntryID: e.ID()}
	if e.Kind == model.EntryKindChunk {
		page := e.Chunk.PageNumber
		c.PageNumber = &page
	}
	return c
}
