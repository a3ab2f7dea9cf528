package config

const (
	defaultDataDir   = "~/.local/share/coverdex"
	defaultCoversDir = "~/.local/share/coverdex/covers"
	defaultLogDir    = "~/.local/share/coverdex/logs"

	defaultVisionBaseURL       = "http://127.0.0.1:11434"
	defaultVisionTitleModel    = "gemma3:27b-it-qat"
	defaultVisionTeamModel     = "qwen3-vl:32b"
	defaultTranslationModel    = "phi4:latest"
	defaultClientTimeout       = 120
	defaultIMDbSearchBaseURL   = "https://v2.sg.media-imdb.com"
	defaultIMDbMaxResults      = 10
	defaultIMDbTimeout         = 20
	defaultOMDbBaseURL         = "https://www.omdbapi.com"
	defaultOMDbPlotMode        = "full"
	defaultOMDbTimeout         = 20
	defaultWorkflowMaxAttempts = 2
	defaultWorkflowBatchLimit  = 20
	defaultReviewLimit         = 200
	defaultSnapshotLimit       = 5000
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			CoversDir: defaultCoversDir,
			LogDir:    defaultLogDir,
		},
		Vision: Vision{
			BaseURL:        defaultVisionBaseURL,
			TitleModel:     defaultVisionTitleModel,
			TeamModel:      defaultVisionTeamModel,
			TimeoutSeconds: defaultClientTimeout,
		},
		Translation: Translation{
			BaseURL:        defaultVisionBaseURL,
			Model:          defaultTranslationModel,
			TimeoutSeconds: defaultClientTimeout,
		},
		IMDb: IMDb{
			SearchBaseURL:  defaultIMDbSearchBaseURL,
			MaxResults:     defaultIMDbMaxResults,
			TimeoutSeconds: defaultIMDbTimeout,
		},
		OMDb: OMDb{
			BaseURL:        defaultOMDbBaseURL,
			PlotMode:       defaultOMDbPlotMode,
			TimeoutSeconds: defaultOMDbTimeout,
		},
		Workflow: Workflow{
			MaxAttempts:   defaultWorkflowMaxAttempts,
			BatchLimit:    defaultWorkflowBatchLimit,
			ReviewLimit:   defaultReviewLimit,
			SnapshotLimit: defaultSnapshotLimit,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
