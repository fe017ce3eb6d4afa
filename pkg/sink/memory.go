package sink

import (
	"context"
	"sync"

	"github.com/transitgeo/transitgeo/pkg/transit"
	"golang.org/x/exp/slices"
)

// MemorySink keeps tables in process. Used for dry runs and tests.
type MemorySink struct {
	mutex  sync.RWMutex
	tables map[string][]transit.GeometryRecord
	writes map[string]int
}

func NewMemorySink() *MemorySink {
	return &MemorySink{
		tables: map[string][]transit.GeometryRecord{},
		writes: map[string]int{},
	}
}

func (m *MemorySink) Name() string {
	return "memory"
}

func (m *MemorySink) AppendRoutes(ctx context.Context, table string, records []transit.GeometryRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tables[table] = append(m.tables[table], records...)
	m.writes[table]++
	return nil
}

func (m *MemorySink) ReplacePositions(ctx context.Context, table string, records []transit.GeometryRecord) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tables[table] = slices.Clone(records)
	m.writes[table]++
	return nil
}

func (m *MemorySink) Close(ctx context.Context) error {
	return nil
}

func (m *MemorySink) Records(table string) []transit.GeometryRecord {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return slices.Clone(m.tables[table])
}

// Writes is the number of batches written to the table.
func (m *MemorySink) Writes(table string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.writes[table]
}

func (m *MemorySink) Tables() []string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	tables := make([]string, 0, len(m.tables))
	for table := range m.tables {
		tables = append(tables, table)
	}
	slices.Sort(tables)
	return tables
}
