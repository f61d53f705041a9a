package history

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/i2-open/goSsfTransmitter/internal/model"
)

func Export(w io.Writer, records []model.TransmissionRecord) error {
	if records == nil {
		records = []model.TransmissionRecord{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(records)
}

func ExportFileName(now time.Time) string {
	return fmt.Sprintf("ssf-history-%d.json", now.UnixMilli())
}
