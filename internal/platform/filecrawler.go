// internal/platform/filecrawler.go
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"reviewdesk/internal/models"
)

// FileCrawler reads raw review payloads exported by the external browser
// automation. One JSON file per store and platform:
// <dir>/<platform>/<storeID>.json holding an array of raw records.
type FileCrawler struct {
	dir      string
	platform models.Platform
}

func NewFileCrawler(dir string, p models.Platform) *FileCrawler {
	return &FileCrawler{dir: dir, platform: p}
}

func (c *FileCrawler) FetchReviews(ctx context.Context, storeID string, limit int) ([]map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(c.dir, string(c.platform), storeID+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read review export %s: %w", path, err)
	}

	var raws []map[string]interface{}
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode review export %s: %w", path, err)
	}

	if limit > 0 && len(raws) > limit {
		raws = raws[:limit]
	}
	return raws, nil
}
