package handlers

import (
	"log/slog"

	"coverdex/internal/config"
	"coverdex/internal/pipeline"
	"coverdex/internal/workflow"
)

// NewSet wires the reference handlers for every stage from config.
func NewSet(cfg *config.Config, logger *slog.Logger) (workflow.Handlers, error) {
	extraction, err := NewExtraction(cfg.Vision, logger)
	if err != nil {
		return nil, err
	}
	imdb, err := NewIMDbSearch(cfg.IMDb, logger)
	if err != nil {
		return nil, err
	}
	omdb, err := NewOMDb(cfg.OMDb, logger)
	if err != nil {
		return nil, err
	}
	translation, err := NewTranslation(cfg.Translation, logger)
	if err != nil {
		return nil, err
	}
	return workflow.Handlers{
		pipeline.StageExtraction:  extraction,
		pipeline.StageIMDb:        imdb,
		pipeline.StageTitleES:     NewTitleES(cfg.IMDb, logger),
		pipeline.StageOMDb:        omdb,
		pipeline.StageTranslation: translation,
	}, nil
}
