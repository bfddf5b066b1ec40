package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/bank"
	"github.com/sells-group/compliance-cli/internal/engine"
	"github.com/sells-group/compliance-cli/internal/registry"
)

// fileBank loads the bank at path, or the embedded default when path is empty.
func fileBank(path string) (*bank.Bank, error) {
	if path == "" {
		return bank.Default()
	}
	return bank.LoadFile(path)
}

// notionVersion labels a bank pulled from Notion at the given time.
func notionVersion(t time.Time) string {
	return "notion-" + t.UTC().Format("20060102T150405")
}

// loadBank resolves the configured question bank source. Notion banks reuse
// the categories of the file bank.
func loadBank(ctx context.Context) (*bank.Bank, error) {
	base, err := fileBank(cfg.Bank.Path)
	if err != nil {
		return nil, err
	}

	switch cfg.Bank.Source {
	case "", "file":
		return base, nil
	case "notion":
		client, err := initNotion()
		if err != nil {
			return nil, err
		}
		return registry.LoadQuestionBank(ctx, client, cfg.Notion.QuestionDB,
			notionVersion(time.Now()), base.Categories(), bank.WithFullScale(base.FullScale()))
	default:
		return nil, eris.Errorf("unsupported bank source: %s", cfg.Bank.Source)
	}
}

// initEngine builds the engine from config and checks it against b.
func initEngine(b *bank.Bank) (*engine.Engine, error) {
	var catalog *engine.Catalog
	var err error
	if cfg.Engine.CatalogPath != "" {
		catalog, err = engine.LoadCatalog(cfg.Engine.CatalogPath)
	} else {
		catalog, err = engine.DefaultCatalog()
	}
	if err != nil {
		return nil, eris.Wrap(err, "load recommendation catalog")
	}

	e, err := engine.New(cfg.Engine, catalog)
	if err != nil {
		return nil, err
	}
	if err := e.Validate(b); err != nil {
		return nil, err
	}
	if missing := catalog.Missing(b); len(missing) > 0 {
		zap.L().Warn("recommendation catalog has no entries for some categories",
			zap.Strings("categories", missing),
		)
	}
	return e, nil
}

// initRegistry loads the configured bank and makes it active.
func initRegistry(ctx context.Context) (*bank.Registry, *bank.Bank, error) {
	b, err := loadBank(ctx)
	if err != nil {
		return nil, nil, err
	}
	reg := bank.NewRegistry()
	if err := reg.PutActive(b); err != nil {
		return nil, nil, err
	}
	zap.L().Info("question bank loaded",
		zap.String("bank_version", b.Version()),
		zap.String("hash", b.Hash()),
		zap.Int("questions", b.Len()),
	)
	return reg, b, nil
}
