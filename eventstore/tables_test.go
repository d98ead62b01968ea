package eventstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"counter-pipeline/domain"
)

type fakeTable struct {
	entities [][]byte
	filter   string
	batches  [][]string
	failAt   int
}

func (f *fakeTable) createTable(ctx context.Context) error { return nil }

func (f *fakeTable) addEntity(ctx context.Context, entity []byte) error {
	f.entities = append(f.entities, entity)
	return nil
}

func (f *fakeTable) listEntities(ctx context.Context, filter string) ([][]byte, error) {
	f.filter = filter
	return f.entities, nil
}

func (f *fakeTable) deleteEntities(ctx context.Context, pk string, rowKeys []string) error {
	if f.failAt > 0 && len(f.batches)+1 == f.failAt {
		return errors.New("transaction failed")
	}
	f.batches = append(f.batches, rowKeys)
	return nil
}

func TestTableInsertWritesTypedEntity(t *testing.T) {
	ft := &fakeTable{}
	s := &TableStore{table: ft}
	ts := time.Date(2024, 5, 1, 10, 4, 59, 0, time.UTC)
	created := ts.Add(time.Second)

	id, err := s.Insert(context.Background(), record(ts, created))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	var ent map[string]any
	if err := sonic.ConfigStd.Unmarshal(ft.entities[0], &ent); err != nil {
		t.Fatalf("entity json: %v", err)
	}
	if ent["PartitionKey"] != domain.CounterIncrement || ent["RowKey"] != id {
		t.Fatalf("unexpected keys %v", ent)
	}
	if ent["CreatedAt"] != "2024-05-01T10:05:00.0000000Z" || ent["CreatedAt@odata.type"] != "Edm.DateTime" {
		t.Fatalf("unexpected CreatedAt %v", ent["CreatedAt"])
	}
	if ent["Metadata"] != `{"source":"counter-api"}` {
		t.Fatalf("unexpected metadata %v", ent["Metadata"])
	}
}

func TestTableRowKeysSortByIngestionTime(t *testing.T) {
	early := rowKey(time.Date(2024, 5, 1, 10, 5, 0, 0, time.UTC))
	late := rowKey(time.Date(2024, 5, 1, 10, 40, 0, 0, time.UTC))
	if early >= late {
		t.Fatalf("row keys out of order: %s >= %s", early, late)
	}
}

func TestTableListRangeDecodesAndSorts(t *testing.T) {
	ft := &fakeTable{}
	s := &TableStore{table: ft}
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, m := range []int{40, 5, 20} {
		at := base.Add(time.Duration(m) * time.Minute)
		if _, err := s.Insert(ctx, record(at, at)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	recs, err := s.ListRange(ctx, base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := "PartitionKey eq 'COUNTER_INCREMENT' and CreatedAt ge datetime'2024-05-01T10:00:00.0000000Z' and CreatedAt lt datetime'2024-05-01T11:00:00.0000000Z'"
	if ft.filter != want {
		t.Fatalf("unexpected filter %s", ft.filter)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, m := range []int{5, 20, 40} {
		if !recs[i].CreatedAt.Equal(base.Add(time.Duration(m) * time.Minute)) {
			t.Fatalf("record %d out of order: %s", i, recs[i].CreatedAt)
		}
		if recs[i].Metadata["source"] != "counter-api" {
			t.Fatalf("metadata lost: %v", recs[i].Metadata)
		}
	}
}

func TestTableDeleteChunksTransactions(t *testing.T) {
	ft := &fakeTable{}
	s := &TableStore{table: ft}
	ids := make([]string, 250)
	for i := range ids {
		ids[i] = strings.Repeat("k", i+1)
	}
	n, err := s.Delete(context.Background(), ids)
	if err != nil || n != 250 {
		t.Fatalf("delete: %d %v", n, err)
	}
	if len(ft.batches) != 3 || len(ft.batches[0]) != 100 || len(ft.batches[2]) != 50 {
		t.Fatalf("unexpected batches %d", len(ft.batches))
	}
}

func TestTableDeleteReportsPartialProgress(t *testing.T) {
	ft := &fakeTable{failAt: 2}
	s := &TableStore{table: ft}
	n, err := s.Delete(context.Background(), make([]string, 150))
	if err == nil {
		t.Fatalf("expected error")
	}
	if n != 100 {
		t.Fatalf("expected 100 deleted before failure, got %d", n)
	}
}
