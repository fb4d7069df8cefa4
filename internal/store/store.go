// Package store persists optimization runs so they can be inspected and
// resumed: one directory per run with a metadata record, the objective
// history, and the final density and permittivity maps.
package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
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

// RunMetadata is the scalar configuration record saved with every run,
// enough to rebuild the transform chain and update rule when resuming.
type RunMetadata struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Nx        int       `json:"nx"`
	Ny        int       `json:"ny"`
	EpsM      float64   `json:"eps_m"`
	Radius    float64   `json:"radius"`
	Eta       float64   `json:"eta"`
	Beta      float64   `json:"beta"`
	Method    string    `json:"method"`
	Steps     int       `json:"steps"`
	StepSize  float64   `json:"step_size"`
	Beta1     float64   `json:"beta1"`
	Beta2     float64   `json:"beta2"`
	Final     float64   `json:"final_objective"`
	Iters     int       `json:"iterations"`
}

func (s *Store) Save(meta RunMetadata, rho []float64, eps []complex128, history []float64) (string, error) {
	runID := fmt.Sprintf("opt_%d", time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Timestamp = time.Now()
	meta.Iters = len(history)
	if len(history) > 0 {
		meta.Final = history[len(history)-1]
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := writeGridCSV(filepath.Join(runDir, "density.csv"), rho, meta.Ny); err != nil {
		return "", err
	}
	epsRe := make([]float64, len(eps))
	for i, e := range eps {
		epsRe[i] = real(e)
	}
	if err := writeGridCSV(filepath.Join(runDir, "permittivity.csv"), epsRe, meta.Ny); err != nil {
		return "", err
	}

	histFile, err := os.Create(filepath.Join(runDir, "history.csv"))
	if err != nil {
		return "", err
	}
	defer histFile.Close()
	w := csv.NewWriter(histFile)
	defer w.Flush()
	if err := w.Write([]string{"iteration", "objective"}); err != nil {
		return "", err
	}
	for i, j := range history {
		row := []string{strconv.Itoa(i), strconv.FormatFloat(j, 'e', 9, 64)}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	return runID, nil
}

func writeGridCSV(path string, data []float64, ny int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	for off := 0; off < len(data); off += ny {
		row := make([]string, ny)
		for i := 0; i < ny; i++ {
			row[i] = strconv.FormatFloat(data[off+i], 'e', 9, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
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
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadDensity reads back the flattened density map of a run.
func (s *Store) LoadDensity(runID string) ([]float64, error) {
	return readGridCSV(filepath.Join(s.baseDir, runID, "density.csv"))
}

// LoadHistory reads back the objective trace of a run.
func (s *Store) LoadHistory(runID string) ([]float64, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, "history.csv"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	history := make([]float64, 0, len(records))
	for i := 1; i < len(records); i++ {
		if len(records[i]) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(records[i][1], 64)
		if err != nil {
			continue
		}
		history = append(history, v)
	}
	return history, nil
}

func readGridCSV(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	var data []float64
	for _, record := range records {
		for _, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, err
			}
			data = append(data, v)
		}
	}
	return data, nil
}

// ExportJSON writes a run's metadata and history to stdout-friendly JSON.
func (s *Store) ExportJSON(runID string, out *os.File) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	history, err := s.LoadHistory(runID)
	if err != nil {
		return err
	}
	payload := struct {
		Meta    *RunMetadata `json:"meta"`
		History []float64    `json:"history"`
	}{meta, history}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
