package database

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/transitgeo/transitgeo/pkg/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoInstance struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func ConnectMongoDB(cfg config.SinkConfig) (*MongoInstance, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoConnection))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	log.Info().Str("database", cfg.MongoDatabase).Msg("MongoDB client setup")

	return &MongoInstance{
		Client:   client,
		Database: client.Database(cfg.MongoDatabase),
	}, nil
}

func (m *MongoInstance) GetCollection(collectionName string) *mongo.Collection {
	return m.Database.Collection(collectionName)
}

// CreateIndexes indexes the record key of each collection.
func (m *MongoInstance) CreateIndexes(ctx context.Context, collections ...string) {
	for _, name := range collections {
		_, err := m.GetCollection(name).Indexes().CreateMany(ctx, []mongo.IndexModel{
			{
				Keys: bson.D{{Key: "route", Value: 1}},
			},
		}, options.CreateIndexes())
		if err != nil {
			log.Error().Err(err).Str("collection", name).Msg("Creating Index")
		}
	}
}

func (m *MongoInstance) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}
