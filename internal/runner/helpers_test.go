package runner

import "github.com/spigell/scholarship-hunter/internal/ingest"

func ingestConfig() ingest.Config {
	return ingest.Config{
		FuzzyThreshold: ingest.DefaultFuzzyThreshold,
		MinMatchScore:  50,
		Similarity:     ingest.IndelRatio,
	}
}
