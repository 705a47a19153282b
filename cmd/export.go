package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/terrascenik/server/cmd/models"
	"github.com/terrascenik/server/config"
	"github.com/terrascenik/server/db"
)

const fullDumpFile = "full-dump.json"

func runExport(cfg *config.Config, log *zap.Logger, dir string) {
	store := openStore(cfg, log)
	defer closeStore(store, log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	summary, err := exportDatabase(ctx, store, dir, time.Now().UTC())
	if err != nil {
		log.Fatal("export failed", zap.Error(err))
	}
	for _, name := range models.Collections {
		log.Info("exported collection", zap.String("collection", name), zap.Int("documents", summary[name]))
	}
	log.Info("export complete", zap.String("dir", dir))
}

// exportDatabase writes one JSON file per collection plus a combined dump to
// dir and returns the number of documents per collection. Passwords are never
// written.
func exportDatabase(ctx context.Context, store *db.Store, dir string, exportedAt time.Time) (map[string]int, error) {
	dump, err := store.Dump(ctx)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	summary := make(map[string]int, len(dump))
	for _, name := range models.Collections {
		docs := dump[name]
		summary[name] = reflect.ValueOf(docs).Len()
		if err := writeJSON(filepath.Join(dir, name+".json"), docs); err != nil {
			return nil, fmt.Errorf("export %s: %w", name, err)
		}
	}

	full := map[string]interface{}{
		"exportedAt":  exportedAt,
		"driver":      store.Driver(),
		"summary":     summary,
		"collections": dump,
	}
	if err := writeJSON(filepath.Join(dir, fullDumpFile), full); err != nil {
		return nil, err
	}
	return summary, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
