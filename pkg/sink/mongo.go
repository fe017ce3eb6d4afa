package sink

import (
	"context"
	"sync"

	"github.com/transitgeo/transitgeo/pkg/database"
	"github.com/transitgeo/transitgeo/pkg/transit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoSink struct {
	Instance *database.MongoInstance

	mutex   sync.Mutex
	indexed map[string]bool
}

func NewMongoSink(instance *database.MongoInstance) *MongoSink {
	return &MongoSink{Instance: instance, indexed: map[string]bool{}}
}

func (m *MongoSink) collection(ctx context.Context, table string) *mongo.Collection {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.indexed[table] {
		m.Instance.CreateIndexes(ctx, table)
		m.indexed[table] = true
	}
	return m.Instance.GetCollection(table)
}

func (m *MongoSink) Name() string {
	return "mongo"
}

func (m *MongoSink) AppendRoutes(ctx context.Context, table string, records []transit.GeometryRecord) error {
	if len(records) == 0 {
		return nil
	}

	_, err := m.collection(ctx, table).InsertMany(ctx, documents(records))
	return err
}

// ReplacePositions clears and refills the collection in one ordered bulk write. The
// write is not atomic, so readers may briefly see a partly filled collection.
func (m *MongoSink) ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error {
	_, err := m.collection(ctx, table).BulkWrite(ctx, replaceModels(records), options.BulkWrite().SetOrdered(true))
	return err
}

func (m *MongoSink) Close(ctx context.Context) error {
	return m.Instance.Disconnect(ctx)
}

func documents(records []transit.GeometryRecord) []interface{} {
	docs := make([]interface{}, len(records))
	for i, record := range records {
		docs[i] = record
	}
	return docs
}

func replaceModels(records []transit.GeometryRecord) []mongo.WriteModel {
	models := make([]mongo.WriteModel, 0, len(records)+1)
	models = append(models, mongo.NewDeleteManyModel().SetFilter(bson.M{}))

	for _, record := range records {
		models = append(models, mongo.NewInsertOneModel().SetDocument(record))
	}

	return models
}
