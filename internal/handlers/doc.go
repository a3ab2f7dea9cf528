// Package handlers ships the reference stage implementations: vision
// extraction and plot translation against a local Ollama server, IMDb
// suggestion search, the Spanish title scrape, and the OMDb metadata
// fetch. Each handler only writes its own stage-output fields; the
// workflow controller persists items and owns routing.
package handlers
