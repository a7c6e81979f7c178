package holdings

import (
	"bufio"
	"os"
	"strings"
)

// LoadWatchlist reads a plain-text ticker list, one per line. Blank lines and
// #-comments are skipped; a missing file is an empty watchlist.
func LoadWatchlist(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var tickers []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tickers = append(tickers, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tickers, nil
}
