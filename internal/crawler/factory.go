package crawler

import (
	"fmt"

	"sjsage522/tcasworker/config"
	"sjsage522/tcasworker/pkg/errors"
	"sjsage522/tcasworker/services/cache"
)

// CreateStages creates every stage from the configuration, keyed by name
func CreateStages(cfg *config.Config, cacheSvc cache.CacheService) (map[string]Stage, error) {
	stages := make(map[string]Stage, len(config.StageOrder))
	for _, name := range config.StageOrder {
		sc, err := cfg.Stage(name)
		if err != nil {
			return nil, err
		}
		stage, err := NewStage(cfg, sc, cacheSvc)
		if err != nil {
			return nil, err
		}
		stages[name] = stage
	}
	return stages, nil
}

// NewStage creates the stage named by sc. Keywords and timeouts come from sc
// so callers can override them per run; cacheSvc may be nil.
func NewStage(cfg *config.Config, sc config.StageConfig, cacheSvc cache.CacheService) (Stage, error) {
	base := BaseCrawler{
		Site:              DefaultSite(cfg.BaseURL, cfg.UniversitiesPath),
		StageName:         sc.Name,
		Keywords:          sc.Keywords,
		NavigationTimeout: sc.NavigationTimeout,
		ContentTimeout:    sc.ContentTimeout,
		ReadyTimeout:      cfg.ReadyTimeout,
		PollInterval:      cfg.PollInterval,
	}

	switch sc.Name {
	case config.StageUniversities:
		return &DiscoveryStage{BaseCrawler: base}, nil
	case config.StageFaculties:
		return &FacultyStage{BaseCrawler: base}, nil
	case config.StageFields:
		resolver := &Resolver{BaseCrawler: base, Cache: cacheSvc, CacheTTL: cfg.CacheTTL}
		return &FieldStage{BaseCrawler: base, Resolver: resolver}, nil
	case config.StagePrograms:
		return &ProgramStage{BaseCrawler: base}, nil
	case config.StageRounds:
		return &RoundsStage{BaseCrawler: base}, nil
	case config.StageFees:
		return &FeeStage{BaseCrawler: base}, nil
	default:
		return nil, errors.NewConfiguration(fmt.Sprintf("unknown stage %q", sc.Name), nil)
	}
}
