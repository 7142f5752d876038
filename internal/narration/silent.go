package narration

import (
	"context"
	"strings"
)

const (
	silentName     = "silent"
	wordsPerSecond = 2.5
	minSeconds     = 1.0
)

type silentNarrator struct{}

func Silent() Narrator {
	return silentNarrator{}
}

func (silentNarrator) Name() string { return silentName }

func (silentNarrator) Synthesize(ctx context.Context, text, outPath string) (Clip, error) {
	return Clip{Seconds: EstimateSeconds(text)}, nil
}

// EstimateSeconds is how long text takes to read aloud at a steady pace.
func EstimateSeconds(text string) float64 {
	words := len(strings.Fields(text))
	return max(float64(words)/wordsPerSecond, minSeconds)
}

func init() {
	Register(silentName, func(args interface{}) (Narrator, error) { return Silent(), nil })
}
