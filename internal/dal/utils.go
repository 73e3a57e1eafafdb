package dal

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/dataset"
	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// NewAnalysisRecord builds a history record with result encoded as JSON
func NewAnalysisRecord(kind models.AnalysisKind, summary string, result any) (*models.AnalysisRecord, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis result: %w", err)
	}
	return &models.AnalysisRecord{
		ID:      uuid.NewString(),
		Kind:    kind,
		TS:      time.Now().UnixMilli(),
		Summary: summary,
		Result:  string(data),
	}, nil
}

// fillRecord assigns an id and timestamp when the caller left them empty
func fillRecord(rec *models.AnalysisRecord) error {
	if rec == nil {
		return fmt.Errorf("analysis record is nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.TS == 0 {
		rec.TS = time.Now().UnixMilli()
	}
	if rec.Result == "" {
		rec.Result = "{}"
	}
	return nil
}

func getDefaultPlayers() []models.PlayerRecord {
	return dataset.DefaultRecords()
}
