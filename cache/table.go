package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

const (
	snapshotPartition = "snapshots"
	// A string property holds at most 32K UTF-16 code units; a UTF-8 byte
	// never encodes more than one of them.
	chunkSize = 30000
	// Keeps the entity under the 1 MiB limit.
	maxChunks = 15
)

// ErrTooLarge is returned when a value does not fit in one table entity.
var ErrTooLarge = errors.New("cache: value exceeds table entity limit")

type tableAPI interface {
	GetEntity(ctx context.Context, partitionKey string, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
}

// Table stores one entity per key in an Azure Storage table. Values are split
// over numbered string properties.
type Table struct {
	client tableAPI
}

// NewTable connects to the named table.
func NewTable(connStr, table string) (*Table, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    30 * time.Second,
				RetryDelay:    time.Second,
				MaxRetryDelay: 10 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Table{client: svc.NewClient(table)}, nil
}

// EnsureTable creates the table unless it already exists.
func (t *Table) EnsureTable(ctx context.Context) error {
	_, err := t.client.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

func (t *Table) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := t.client.GetEntity(ctx, snapshotPartition, rowKey(key), nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	value, err := joinChunks(resp.Value)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (t *Table) Set(ctx context.Context, key string, value []byte) error {
	chunks := splitChunks(string(value), chunkSize)
	if len(chunks) > maxChunks {
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(value))
	}
	ent := map[string]any{
		"PartitionKey": snapshotPartition,
		"RowKey":       rowKey(key),
		"Chunks":       len(chunks),
	}
	for i, c := range chunks {
		ent[chunkProperty(i)] = c
	}
	payload, err := sonic.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = t.client.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

var rowKeyReplacer = strings.NewReplacer("/", "_", `\`, "_", "#", "_", "?", "_")

// rowKey strips characters that table keys may not contain.
func rowKey(key string) string {
	return rowKeyReplacer.Replace(key)
}

func chunkProperty(i int) string {
	return "Snapshot" + strconv.Itoa(i)
}

// splitChunks cuts s into pieces of at most size bytes without splitting a
// rune.
func splitChunks(s string, size int) []string {
	var out []string
	for len(s) > size {
		cut := size
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			_, cut = utf8.DecodeRuneInString(s)
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	if s != "" || len(out) == 0 {
		out = append(out, s)
	}
	return out
}

func joinChunks(entity []byte) ([]byte, error) {
	var props map[string]any
	if err := sonic.Unmarshal(entity, &props); err != nil {
		return nil, fmt.Errorf("decode table entity: %w", err)
	}
	n, ok := props["Chunks"].(float64)
	if !ok || n < 1 {
		return nil, errors.New("table entity has no chunk count")
	}
	var b strings.Builder
	for i := 0; i < int(n); i++ {
		part, ok := props[chunkProperty(i)].(string)
		if !ok {
			return nil, fmt.Errorf("table entity misses %s", chunkProperty(i))
		}
		b.WriteString(part)
	}
	return []byte(b.String()), nil
}
