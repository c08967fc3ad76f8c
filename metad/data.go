package metad

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// LoadCounts reads one observer's count table from a JSON file with the
// fields nR_S1 and nR_S2.
func LoadCounts(path string) (Counts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Counts{}, err
	}
	var c Counts
	if err := json.Unmarshal(b, &c); err != nil {
		return Counts{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := c.Validate(); err != nil {
		return Counts{}, err
	}
	return c, nil
}

// SaveCounts writes a count table to path as indented JSON.
func SaveCounts(c Counts, path string) error {
	b, err := json.MarshalIndent(c, "", " ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// LoadGroupCounts reads several subjects' count tables from a JSON
// array of {nR_S1, nR_S2} objects.
func LoadGroupCounts(path string) ([]Counts, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cs []Counts
	if err := json.Unmarshal(b, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	for s, c := range cs {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("subject %d: %w", s+1, err)
		}
	}
	return cs, nil
}

// LoadTrialsCSV reads per-trial rows of "stimID,response,rating" and
// builds a count table with nRatings confidence levels. A header row is
// skipped when its first field is not numeric.
func LoadTrialsCSV(path string, nRatings int, padCells bool) (Counts, error) {
	f, err := os.Open(path)
	if err != nil {
		return Counts{}, err
	}
	defer f.Close()

	rd := csv.NewReader(f)
	rd.FieldsPerRecord = 3
	records, err := rd.ReadAll()
	if err != nil {
		return Counts{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(records) > 0 {
		if _, err := strconv.Atoi(records[0][0]); err != nil {
			records = records[1:]
		}
	}

	stimID := make([]int, len(records))
	response := make([]int, len(records))
	rating := make([]int, len(records))
	for i, rec := range records {
		s, err := strconv.Atoi(rec[0])
		if err != nil {
			return Counts{}, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, i+1, err)
		}
		rsp, err := strconv.Atoi(rec[1])
		if err != nil {
			return Counts{}, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, i+1, err)
		}
		rt, err := strconv.Atoi(rec[2])
		if err != nil {
			return Counts{}, fmt.Errorf("%w: row %d: %v", ErrInvalidInput, i+1, err)
		}
		stimID[i], response[i], rating[i] = s, rsp, rt
	}
	return CountsFromTrials(stimID, response, rating, nRatings, padCells)
}
