package market

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"sab/internal/pkg/convert"
)

// Source delivers daily candle history plus metadata for a ticker. The live
// broker client and the offline file source both satisfy it, so the
// evaluators never know where bars come from.
type Source interface {
	DailyCandles(ctx context.Context, ticker string, count int) (Candles, Metadata, error)
}

// FileSource reads pre-exported candle history from a directory of
// candles_<ticker>.json files. Each file holds either a bare JSON array of
// candle objects or an object with "candles" plus optional "name",
// "currency" and "provider" fields.
type FileSource struct {
	dir string
}

func NewFileSource(dir string) *FileSource {
	return &FileSource{dir: dir}
}

func (s *FileSource) DailyCandles(ctx context.Context, ticker string, count int) (Candles, Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, Metadata{}, err
	}
	path := filepath.Join(s.dir, candleFileName(ticker))
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("read candle file for %s: %w", ticker, err)
	}
	if !gjson.ValidBytes(raw) {
		return nil, Metadata{}, fmt.Errorf("candle file for %s is not valid json", ticker)
	}

	doc := gjson.ParseBytes(raw)
	meta := Metadata{Ticker: ticker, Currency: InferCurrency(ticker)}
	series := doc
	if doc.IsObject() {
		if name := doc.Get("name"); name.Exists() {
			meta.Name = name.String()
		}
		if cur := doc.Get("currency"); cur.Exists() && strings.TrimSpace(cur.String()) != "" {
			meta.Currency = strings.ToUpper(strings.TrimSpace(cur.String()))
		}
		meta.Provider = ResolveProvider(doc.Get("provider").String())
		series = doc.Get("candles")
	}
	if !series.IsArray() {
		return nil, Metadata{}, fmt.Errorf("candle file for %s has no candle array", ticker)
	}

	candles := make(Candles, 0, len(series.Array()))
	series.ForEach(func(_, row gjson.Result) bool {
		candles = append(candles, Candle{
			Date:   row.Get("date").String(),
			Open:   convert.ToFloat64(row.Get("open").Value()),
			High:   convert.ToFloat64(row.Get("high").Value()),
			Low:    convert.ToFloat64(row.Get("low").Value()),
			Close:  convert.ToFloat64(row.Get("close").Value()),
			Volume: convert.ToFloat64(row.Get("volume").Value()),
		})
		return true
	})
	if count > 0 && len(candles) > count {
		candles = candles[len(candles)-count:]
	}
	return candles, meta, nil
}

// candleFileName sanitizes the ticker so "BRK.B" and friends map onto a
// filesystem-safe name.
func candleFileName(ticker string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(strings.TrimSpace(ticker))
	return "candles_" + safe + ".json"
}
