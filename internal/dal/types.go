package dal

import (
	"context"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

// PlayerDAL defines the interface for the data access layer.
// Players are read once at startup; analyses accumulate as history.
type PlayerDAL interface {
	ListPlayers(ctx context.Context) ([]models.PlayerRecord, error)
	RecordAnalysis(ctx context.Context, rec *models.AnalysisRecord) error
	// ListAnalyses returns newest first; limit <= 0 means no limit
	ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
	ClearAnalyses(ctx context.Context) error
	Close() error
}
