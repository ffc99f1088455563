package main

import (
	"context"
	"flag"
	"time"

	"ai-book-tutor/config"
	"ai-book-tutor/internal/services/ingest"
	"ai-book-tutor/pkg/logger"

	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
)

// Offline ingestion runner: chunks, embeds and indexes one uploaded document
// without going through the HTTP API.
func main() {
	docID := flag.Int64("doc", 0, "document id to ingest")
	force := flag.Bool("force", false, "re-ingest even if chunks already exist")
	flag.Parse()

	if *docID <= 0 {
		logger.Fatalf("%v: -doc is required", config.ModuleIngest)
	}

	if config.Cfg.Retriever.Backend != "memory" {
		waitForMilvus()
	}

	ingest.RunIngestion(*docID, *force)
}

// waitForMilvus blocks until Milvus accepts a connection, retrying with a
// fixed backoff so the runner can start before the container is ready.
func waitForMilvus() {
	const attempts = 5
	for i := 1; i <= attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		cli, err := milvus.NewClient(ctx, milvus.Config{Address: config.Cfg.Milvus.Address})
		cancel()
		if err == nil {
			cli.Close()
			return
		}
		logger.Error(err, "%v: milvus not ready (attempt %d/%d)", config.ModuleMilvus, i, attempts)
		time.Sleep(3 * time.Second)
	}
	logger.Fatalf("%v: milvus unreachable at %s", config.ModuleMilvus, config.Cfg.Milvus.Address)
}
