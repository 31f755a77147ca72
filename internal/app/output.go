package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/specialistvlad/graphcraft/internal/ctxlog"
	"github.com/specialistvlad/graphcraft/internal/types"
	"github.com/specialistvlad/graphcraft/modules/raster"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ErrImageOutput is returned when image results cannot be written to the
// chosen output.
var ErrImageOutput = errors.New("image results need a .png, .bmp or .tif output file")

type resultJSON struct {
	Type  json.RawMessage `json:"type"`
	Value json.RawMessage `json:"value"`
}

type resultsJSON struct {
	Outputs []resultJSON `json:"outputs"`
}

// writeResults sends the results where the configuration asks for them.
func (a *App) writeResults(ctx context.Context, results []cty.Value) error {
	logger := ctxlog.FromContext(ctx)
	switch path := a.config.OutputPath; path {
	case "":
		for i, v := range results {
			logger.Info("Result", "output", i, "type", types.TypeString(v.Type()), "value", types.Display(v))
		}
		return nil
	case "-":
		return EncodeResultsJSON(a.outW, results)
	default:
		if err := WriteResultsFile(path, results); err != nil {
			return err
		}
		logger.Info("Results written.", "path", path)
		return nil
	}
}

// WriteResultsFile writes one image result with the encoder chosen by the
// extension of path, or every result as JSON.
func WriteResultsFile(path string, results []cty.Value) error {
	var buf bytes.Buffer
	if format, ok := raster.FormatFromPath(path); ok {
		if len(results) != 1 {
			return fmt.Errorf("%w: got %d results, want one image", ErrImageOutput, len(results))
		}
		img, err := types.AsImage(results[0])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrImageOutput, err)
		}
		if err := raster.Encode(&buf, img, format); err != nil {
			return err
		}
	} else if err := EncodeResultsJSON(&buf, results); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}

// EncodeResultsJSON writes {"outputs": [{"type": ..., "value": ...}]}.
func EncodeResultsJSON(w io.Writer, results []cty.Value) error {
	out := resultsJSON{Outputs: make([]resultJSON, 0, len(results))}
	for i, v := range results {
		if v.Type().Equals(types.Image) {
			return fmt.Errorf("output %d: %w", i, ErrImageOutput)
		}
		ty, err := ctyjson.MarshalType(v.Type())
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		val, err := ctyjson.Marshal(v, v.Type())
		if err != nil {
			return fmt.Errorf("output %d: %w", i, err)
		}
		out.Outputs = append(out.Outputs, resultJSON{Type: ty, Value: val})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
