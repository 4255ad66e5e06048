// Package store persists finished runs: one directory per run holding
// metadata.json and the cycle log as cycles.csv.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/san-kum/armctl/internal/drive"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"` // "coppelia" or "demo"
	Timestamp time.Time `json:"timestamp"`

	Eps       float64 `json:"eps"`
	Lambda    float64 `json:"lambda"`
	Period    float64 `json:"period"`
	Duration  float64 `json:"duration"`
	MaxStep   float64 `json:"max_step"`
	Tolerance float64 `json:"tolerance"`

	Status        string  `json:"status"`
	Cycles        int     `json:"cycles"`
	MeanAbsError  float64 `json:"mean_abs_error"`
	MaxError      float64 `json:"max_error"`
	FinalError    float64 `json:"final_error"`
	MeanStepNorm  float64 `json:"mean_step_norm"`
	ClampedCycles int     `json:"clamped_cycles"`
	Passed        bool    `json:"passed"`
	Error         string  `json:"error,omitempty"`
}

func (s *Store) Save(source string, cfg drive.Config, result *drive.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", source, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Source:    source,
		Timestamp: time.Now(),

		Eps:       cfg.Eps,
		Lambda:    cfg.Lambda,
		Period:    cfg.Period,
		Duration:  cfg.Duration,
		MaxStep:   cfg.Limits.MaxStep,
		Tolerance: cfg.Tolerance,

		Status:        result.Status.String(),
		Cycles:        result.Cycles,
		MeanAbsError:  result.MeanAbsError,
		MaxError:      result.MaxError,
		FinalError:    result.FinalError,
		MeanStepNorm:  result.MeanStepNorm,
		ClampedCycles: result.ClampedCycles,
		Passed:        result.Passed,
	}
	if result.Err != nil {
		meta.Error = result.Err.Error()
	}

	metaPath := filepath.Join(runDir, "metadata.json")
	metaFile, err := os.Create(metaPath)
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvPath := filepath.Join(runDir, "cycles.csv")
	csvFile, err := os.Create(csvPath)
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if err := w.Write(cycleHeader); err != nil {
		return "", err
	}
	for _, rec := range result.Records {
		if err := w.Write(cycleRow(rec)); err != nil {
			return "", err
		}
	}

	return runID, nil
}

var cycleHeader = []string{
	"time", "desired_x", "desired_y", "actual_x", "actual_y",
	"error", "step_norm", "clamped",
}

func cycleRow(rec drive.CycleRecord) []string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return []string{
		f(rec.Time),
		f(rec.Desired[0]), f(rec.Desired[1]),
		f(rec.Actual[0]), f(rec.Actual[1]),
		f(rec.Error), f(rec.StepNorm),
		strconv.FormatBool(rec.Clamped),
	}
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metaPath := filepath.Join(s.baseDir, entry.Name(), "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}

		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}

		runs = append(runs, meta)
	}

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	metaPath := filepath.Join(s.baseDir, runID, "metadata.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadCycles reads the cycle log back. Rows that do not parse are skipped
// rather than failing the whole read.
func (s *Store) LoadCycles(runID string) ([]drive.CycleRecord, error) {
	csvPath := filepath.Join(s.baseDir, runID, "cycles.csv")
	file, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return []drive.CycleRecord{}, nil
	}

	records := make([]drive.CycleRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(cycleHeader) {
			continue
		}
		vals := make([]float64, 7)
		ok := true
		for i := range vals {
			v, err := strconv.ParseFloat(row[i], 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			continue
		}
		clamped, _ := strconv.ParseBool(row[7])
		records = append(records, drive.CycleRecord{
			Time:     vals[0],
			Desired:  []float64{vals[1], vals[2]},
			Actual:   []float64{vals[3], vals[4]},
			Error:    vals[5],
			StepNorm: vals[6],
			Clamped:  clamped,
		})
	}

	return records, nil
}
