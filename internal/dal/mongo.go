package dal

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Billy-Davies-2/cricket-league-analysis/internal/models"
)

const (
	playersCollection  = "players"
	analysesCollection = "analyses"
)

// MongoDAL implements PlayerDAL using MongoDB
type MongoDAL struct {
	client   *mongo.Client
	players  *mongo.Collection
	analyses *mongo.Collection
}

// NewMongoDAL connects to uri and uses the named database
func NewMongoDAL(ctx context.Context, uri, database string) (*MongoDAL, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	dal := &MongoDAL{
		client:   client,
		players:  db.Collection(playersCollection),
		analyses: db.Collection(analysesCollection),
	}

	if err := dal.seedData(ctx); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return dal, nil
}

func (m *MongoDAL) seedData(ctx context.Context) error {
	count, err := m.players.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	players := getDefaultPlayers()
	docs := make([]interface{}, len(players))
	for i := range players {
		docs[i] = players[i]
	}
	if _, err := m.players.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to seed players: %w", err)
	}
	return nil
}

func (m *MongoDAL) ListPlayers(ctx context.Context) ([]models.PlayerRecord, error) {
	cur, err := m.players.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "rank", Value: 1}}))
	if err != nil {
		return nil, err
	}
	players := []models.PlayerRecord{}
	if err := cur.All(ctx, &players); err != nil {
		return nil, err
	}
	return players, nil
}

func (m *MongoDAL) RecordAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	if err := fillRecord(rec); err != nil {
		return err
	}
	_, err := m.analyses.InsertOne(ctx, rec)
	return err
}

func (m *MongoDAL) ListAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "ts", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.analyses.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	records := []models.AnalysisRecord{}
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (m *MongoDAL) ClearAnalyses(ctx context.Context) error {
	_, err := m.analyses.DeleteMany(ctx, bson.M{})
	return err
}

func (m *MongoDAL) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
