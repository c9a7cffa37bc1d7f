package es

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/vkuznec/parts_shop/internal/models"
)

// Indexer mirrors catalog parts into the search index. All writes are
// best-effort: callers log the error and continue.
type Indexer struct {
	ES    *elasticsearch.Client
	Index string
}

func (ix *Indexer) IndexPart(ctx context.Context, part *models.Part) error {
	doc := map[string]interface{}{
		"id":          part.ID,
		"name":        part.Name,
		"car":         part.Car,
		"part_number": part.PartNumber,
		"description": part.Description,
		"price_out":   part.PriceOut,
		"quantity":    part.Quantity,
	}
	if img := part.MainImage(); img != nil {
		doc["main_image"] = img.Filename
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(doc); err != nil {
		return err
	}

	res, err := ix.ES.Index(
		ix.Index,
		&buf,
		ix.ES.Index.WithDocumentID(fmt.Sprint(part.ID)),
		ix.ES.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index part %d: %s", part.ID, res.Status())
	}
	return nil
}

func (ix *Indexer) DeletePart(ctx context.Context, partID uint) error {
	res, err := ix.ES.Delete(
		ix.Index,
		fmt.Sprint(partID),
		ix.ES.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	// 404 is fine, the part was never indexed
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete part %d from index: %s", partID, res.Status())
	}
	return nil
}
