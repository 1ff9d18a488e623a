package search

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/aipush/directory/internal/apperr"
	"github.com/aipush/directory/internal/models"
)

// Tools runs a fuzzy full-text query over the tools index. Name matches
// weigh double; description and tags fill out the rest.
func Tools(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Tool, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "tags"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, apperr.Wrap(apperr.Collaborator, "搜索失败", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, apperr.Wrap(apperr.Collaborator, "搜索失败", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, apperr.New(apperr.Collaborator, "搜索失败")
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Tool `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, apperr.Wrap(apperr.Collaborator, "搜索失败", err)
	}

	tools := make([]models.Tool, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		tools[i] = hit.Source
	}
	return r.Hits.Total.Value, tools, nil
}
