package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"
)

type PartDoc struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Car         string `json:"car"`
	PartNumber  string `json:"part_number"`
	Description string `json:"description"`
	PriceOut    int64  `json:"price_out"`
	Quantity    int    `json:"quantity"`
}

func Search(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []PartDoc, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"name^2", "part_number^2", "car", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search error: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search error: %w", err)
	}

	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search error: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source PartDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	parts := make([]PartDoc, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		parts[i] = hit.Source
	}
	return r.Hits.Total.Value, parts, nil
}
