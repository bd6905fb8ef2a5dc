// Command storage-init creates the Azure table and queue used by the gateway.
// It is safe to run repeatedly.
package main

import (
	"context"
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"

	"kanban-sync/cache"
	"kanban-sync/notify"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	if connStr == "" {
		log.Fatal("missing STORAGE_CONNECTION_STRING")
	}
	ctx := context.Background()

	table := os.Getenv("CACHE_TABLE")
	if table == "" {
		table = "BoardSnapshots"
	}
	t, err := cache.NewTable(connStr, table)
	if err != nil {
		log.Fatalf("table client: %v", err)
	}
	if err := t.EnsureTable(ctx); err != nil {
		log.Fatalf("create table %s: %v", table, err)
	}

	if queue := os.Getenv("NOTIFY_QUEUE"); queue != "" {
		q, err := notify.NewQueueSink(connStr, queue)
		if err != nil {
			log.Fatalf("queue client: %v", err)
		}
		if err := q.EnsureQueue(ctx); err != nil {
			log.Fatalf("create queue %s: %v", queue, err)
		}
	}

	log.Info("storage init complete")
}
