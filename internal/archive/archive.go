// Package archive indexes per-review batch outcomes into Elasticsearch
// for operational search. Indexing is best effort and happens after the
// batch summary is already final.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reviewdesk/internal/common/database"
	apperrors "reviewdesk/internal/common/errors"
	"reviewdesk/internal/common/logger"
	"reviewdesk/internal/models"
)

// Archiver records batch outcomes. NopArchiver is used when archiving is
// disabled.
type Archiver interface {
	IndexBatch(ctx context.Context, batchID string, results []models.ProcessingResult) error
}

type archivedResult struct {
	BatchID          string    `json:"batchId"`
	Platform         string    `json:"platform"`
	PlatformReviewID string    `json:"platformReviewId"`
	Outcome          string    `json:"outcome"`
	Reason           string    `json:"reason,omitempty"`
	Error            string    `json:"error,omitempty"`
	State            string    `json:"state,omitempty"`
	RiskLevel        string    `json:"riskLevel,omitempty"`
	RequiresApproval bool      `json:"requiresApproval"`
	AutoApproved     bool      `json:"autoApproved"`
	DurationMs       int64     `json:"durationMs"`
	IndexedAt        time.Time `json:"indexedAt"`
}

type ElasticArchive struct {
	es    *database.ElasticsearchClient
	index string
	log   logger.Logger
}

func NewElasticArchive(es *database.ElasticsearchClient, index string, log logger.Logger) *ElasticArchive {
	return &ElasticArchive{
		es:    es,
		index: index,
		log: log.With(map[string]interface{}{
			"component": "archive",
		}),
	}
}

// IndexBatch writes one document per processed review. The first
// indexing error aborts the batch; the caller only logs it.
func (a *ElasticArchive) IndexBatch(ctx context.Context, batchID string, results []models.ProcessingResult) error {
	for _, r := range results {
		doc := archivedResult{
			BatchID:          batchID,
			Platform:         string(r.Platform),
			PlatformReviewID: r.PlatformReviewID,
			Outcome:          string(r.Outcome),
			Reason:           r.Reason,
			Error:            r.Error,
			State:            string(r.State),
			RiskLevel:        string(r.RiskLevel),
			RequiresApproval: r.RequiresApproval,
			AutoApproved:     r.AutoApproved,
			DurationMs:       r.Duration.Milliseconds(),
			IndexedAt:        time.Now().UTC(),
		}

		body, err := json.Marshal(doc)
		if err != nil {
			return apperrors.NewArchiveIndexFailedError(err)
		}

		res, err := a.es.Client.Index(
			a.index,
			bytes.NewReader(body),
			a.es.Client.Index.WithContext(ctx),
			a.es.Client.Index.WithDocumentID(uuid.New().String()),
		)
		if err != nil {
			return apperrors.NewArchiveIndexFailedError(err)
		}
		res.Body.Close()
		if res.IsError() {
			return apperrors.NewArchiveIndexFailedError(fmt.Errorf("index response: %s", res.Status()))
		}
	}

	a.log.Debug("batch results indexed", map[string]interface{}{
		"batchId": batchID,
		"count":   len(results),
	})
	return nil
}

// NopArchiver discards batch results.
type NopArchiver struct{}

func (NopArchiver) IndexBatch(context.Context, string, []models.ProcessingResult) error {
	return nil
}
