package eventstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"counter-pipeline/domain"
)

const (
	// partitionKey groups every event in one partition so purges can be
	// submitted as entity group transactions.
	partitionKey = domain.CounterIncrement

	// maxBatch is the entity limit of a table transaction.
	maxBatch = 100

	edmDateTime   = "Edm.DateTime"
	tableTimeFmt  = "2006-01-02T15:04:05.0000000Z"
	rowKeyTimeLen = 19
)

// entityTable is the slice of the table API the store needs.
type entityTable interface {
	createTable(ctx context.Context) error
	addEntity(ctx context.Context, entity []byte) error
	listEntities(ctx context.Context, filter string) ([][]byte, error)
	deleteEntities(ctx context.Context, pk string, rowKeys []string) error
}

type eventEntity struct {
	PartitionKey       string `json:"PartitionKey"`
	RowKey             string `json:"RowKey"`
	EventType          string `json:"EventType"`
	EventTimestamp     string `json:"EventTimestamp"`
	EventTimestampType string `json:"EventTimestamp@odata.type,omitempty"`
	CreatedAt          string `json:"CreatedAt"`
	CreatedAtType      string `json:"CreatedAt@odata.type,omitempty"`
	Metadata           string `json:"Metadata"`
}

// TableStore keeps events in an Azure Storage table.
type TableStore struct {
	table entityTable
}

// NewTableStore opens the events table from a storage connection string.
func NewTableStore(connStr, table string) (*TableStore, error) {
	if connStr == "" {
		return nil, errors.New("missing STORAGE_CONNECTION_STRING")
	}
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableStore{table: azureTable{client: svc.NewClient(table)}}, nil
}

// EnsureTable creates the events table, tolerating an existing one.
func (s *TableStore) EnsureTable(ctx context.Context) error {
	return s.table.createTable(ctx)
}

// rowKey sorts lexically by ingestion time; the suffix keeps duplicates apart.
func rowKey(createdAt time.Time) string {
	return fmt.Sprintf("%0*d-%s", rowKeyTimeLen, createdAt.UnixNano(), uuid.NewString())
}

func (s *TableStore) Insert(ctx context.Context, rec domain.EventRecord) (string, error) {
	md := rec.Metadata
	if md == nil {
		md = map[string]any{}
	}
	mdJSON, err := sonic.ConfigStd.MarshalToString(md)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	id := rowKey(rec.CreatedAt)
	payload, err := sonic.ConfigStd.Marshal(eventEntity{
		PartitionKey:       partitionKey,
		RowKey:             id,
		EventType:          rec.EventType,
		EventTimestamp:     rec.Timestamp.UTC().Format(tableTimeFmt),
		EventTimestampType: edmDateTime,
		CreatedAt:          rec.CreatedAt.UTC().Format(tableTimeFmt),
		CreatedAtType:      edmDateTime,
		Metadata:           mdJSON,
	})
	if err != nil {
		return "", err
	}
	if err := s.table.addEntity(ctx, payload); err != nil {
		return "", fmt.Errorf("add entity: %w", err)
	}
	return id, nil
}

func rangeFilter(from, to time.Time) string {
	return fmt.Sprintf("PartitionKey eq '%s' and CreatedAt ge datetime'%s' and CreatedAt lt datetime'%s'",
		partitionKey, from.UTC().Format(tableTimeFmt), to.UTC().Format(tableTimeFmt))
}

func (s *TableStore) ListRange(ctx context.Context, from, to time.Time) ([]domain.EventRecord, error) {
	entities, err := s.table.listEntities(ctx, rangeFilter(from, to))
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	recs := make([]domain.EventRecord, 0, len(entities))
	for _, raw := range entities {
		rec, err := decodeEntity(raw)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	sortByCreatedAt(recs)
	return recs, nil
}

func decodeEntity(raw []byte) (domain.EventRecord, error) {
	var ent eventEntity
	if err := sonic.ConfigStd.Unmarshal(raw, &ent); err != nil {
		return domain.EventRecord{}, fmt.Errorf("decode entity: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, ent.EventTimestamp)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("entity %s timestamp: %w", ent.RowKey, err)
	}
	created, err := time.Parse(time.RFC3339Nano, ent.CreatedAt)
	if err != nil {
		return domain.EventRecord{}, fmt.Errorf("entity %s createdAt: %w", ent.RowKey, err)
	}
	md := map[string]any{}
	if ent.Metadata != "" {
		if err := sonic.ConfigStd.UnmarshalFromString(ent.Metadata, &md); err != nil {
			return domain.EventRecord{}, fmt.Errorf("entity %s metadata: %w", ent.RowKey, err)
		}
	}
	return domain.EventRecord{
		ID:        ent.RowKey,
		EventType: ent.EventType,
		Timestamp: ts.UTC(),
		CreatedAt: created.UTC(),
		Metadata:  md,
	}, nil
}

// Delete submits the removals as transactions of at most maxBatch entities.
// A failed chunk stops the purge; earlier chunks stay deleted.
func (s *TableStore) Delete(ctx context.Context, ids []string) (int, error) {
	deleted := 0
	for start := 0; start < len(ids); start += maxBatch {
		end := min(start+maxBatch, len(ids))
		if err := s.table.deleteEntities(ctx, partitionKey, ids[start:end]); err != nil {
			return deleted, fmt.Errorf("delete entities: %w", err)
		}
		deleted += end - start
	}
	return deleted, nil
}

type azureTable struct {
	client *aztables.Client
}

func (t azureTable) createTable(ctx context.Context) error {
	_, err := t.client.CreateTable(ctx, nil)
	var respErr *azcore.ResponseError
	if err != nil && !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
		return err
	}
	return nil
}

func (t azureTable) addEntity(ctx context.Context, entity []byte) error {
	_, err := t.client.AddEntity(ctx, entity, nil)
	return err
}

func (t azureTable) listEntities(ctx context.Context, filter string) ([][]byte, error) {
	pager := t.client.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	var out [][]byte
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, resp.Entities...)
	}
	return out, nil
}

func (t azureTable) deleteEntities(ctx context.Context, pk string, rowKeys []string) error {
	actions := make([]aztables.TransactionAction, 0, len(rowKeys))
	for _, rk := range rowKeys {
		key, err := sonic.ConfigStd.Marshal(map[string]string{"PartitionKey": pk, "RowKey": rk})
		if err != nil {
			return err
		}
		actions = append(actions, aztables.TransactionAction{
			ActionType: aztables.TransactionTypeDelete,
			Entity:     key,
		})
	}
	_, err := t.client.SubmitTransaction(ctx, actions, nil)
	return err
}
