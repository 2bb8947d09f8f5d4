package archive

import (
	"fmt"

	"github.com/yanqian/meteo-forecast/internal/domain/forecast"
)

// ObjectKey lays reports out as <region>/<yyyy-mm-dd>/<id>.json.
func ObjectKey(resp forecast.Response) string {
	return fmt.Sprintf("%s/%s/%s.json", resp.Region.Code, resp.GeneratedAt.UTC().Format("2006-01-02"), resp.ID)
}
