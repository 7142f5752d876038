package storyboard

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	appErr "github.com/xxxsen/papercast/internal/pkg/errors"
)

var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

// Clean pulls the storyboard out of raw model output. Backslashes are doubled
// so LaTeX survives decoding, and raw newlines and tabs become spaces.
func Clean(raw string) (*Storyboard, error) {
	span := jsonSpan.FindString(raw)
	if span == "" {
		return nil, fmt.Errorf("%w: no json object in model output", appErr.ErrStoryboardParse)
	}
	span = strings.ReplaceAll(span, `\`, `\\`)
	span = strings.NewReplacer("\n", " ", "\t", " ").Replace(span)
	span = strings.TrimSpace(span)
	sb := &Storyboard{}
	if err := json.Unmarshal([]byte(span), sb); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoryboardParse, err)
	}
	return sb, nil
}
