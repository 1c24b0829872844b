package pipeline

import (
	"fmt"
	"log/slog"

	"rankledger/internal/config"
	"rankledger/internal/crawl"
	"rankledger/internal/normalize"
	"rankledger/internal/sources"
	"rankledger/internal/storage"
)

// FromConfig builds a Runner over store. cfg.SourceUse picks one of the configured
// sources by alias or kind; empty means the first.
func FromConfig(cfg config.Config, store storage.Store, logger *slog.Logger, mutate ...func(*Deps)) (*Runner, error) {
	tie, ok := normalize.ParseTiePolicy(cfg.TiePolicy)
	if !ok {
		return nil, fmt.Errorf("unknown tie policy %q", cfg.TiePolicy)
	}
	mgr, err := sources.NewManager(cfg)
	if err != nil {
		return nil, err
	}
	src, err := mgr.Select(cfg.SourceUse)
	if err != nil {
		return nil, err
	}
	opts := crawl.OptionsFromConfig(cfg)
	opts.Logger = logger
	deps := Deps{
		Store:     store,
		Source:    src,
		Paginator: crawl.New(opts),
		Tie:       tie,
		Logger:    logger,
	}
	for _, m := range mutate {
		m(&deps)
	}
	return NewRunner(deps), nil
}
