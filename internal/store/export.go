package store

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/armctl/internal/drive"
)

type ExportData struct {
	Metadata RunMetadata         `json:"metadata"`
	Cycles   []drive.CycleRecord `json:"cycles"`
}

// ExportJSON writes one stored run, metadata plus full cycle log, as
// indented JSON.
func ExportJSON(w io.Writer, meta *RunMetadata, cycles []drive.CycleRecord) error {
	data := ExportData{
		Metadata: *meta,
		Cycles:   cycles,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func ExportJSONFile(path string, meta *RunMetadata, cycles []drive.CycleRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return ExportJSON(file, meta, cycles)
}
