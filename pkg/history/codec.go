package history

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aicluster-lab/gpuboard/pkg/utils"
)

// The snapshot payload is CSV: stable column order, one row per
// (run, calendar day), nullable metrics encoded as empty fields.
var csvHeader = []string{
	"date", "team", "project", "run_id", "tags",
	"created_at", "updated_at", "state", "duration_hour", "gpu_count",
	"average_gpu_utilization", "average_gpu_memory",
	"max_gpu_utilization", "max_gpu_memory", "host_name", "logged_at",
}

const timestampLayout = time.RFC3339Nano

func EncodeCSV(rows []DailyUsageRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for i := range rows {
		r := &rows[i]
		tags, err := json.Marshal(r.Tags)
		if err != nil {
			return nil, err
		}
		record := []string{
			utils.FormatDate(r.Date),
			r.Team,
			r.Project,
			r.RunID,
			string(tags),
			r.CreatedAt.Format(timestampLayout),
			r.UpdatedAt.Format(timestampLayout),
			r.State,
			strconv.FormatFloat(r.DurationHour, 'f', -1, 64),
			strconv.Itoa(r.GPUCount),
			formatNullable(r.AvgGPUUtilization),
			formatNullable(r.AvgGPUMemory),
			formatNullable(r.MaxGPUUtilization),
			formatNullable(r.MaxGPUMemory),
			r.HostName,
			r.LoggedAt.Format(timestampLayout),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// DecodeCSV parses a persisted snapshot. Any malformed field is a
// DataIntegrityError: a half-read history must never feed a merge.
func DecodeCSV(data []byte) ([]DailyUsageRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, &DataIntegrityError{Reason: fmt.Sprintf("read header: %v", err)}
	}
	if len(header) != len(csvHeader) {
		return nil, &DataIntegrityError{Reason: fmt.Sprintf("unexpected column count %d", len(header))}
	}

	var rows []DailyUsageRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, &DataIntegrityError{Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		row, err := decodeRecord(record)
		if err != nil {
			return nil, &DataIntegrityError{Reason: fmt.Sprintf("line %d: %v", line, err)}
		}
		rows = append(rows, row)
	}
}

func decodeRecord(record []string) (DailyUsageRow, error) {
	var row DailyUsageRow
	date, err := utils.ParseDate(record[0])
	if err != nil {
		return row, fmt.Errorf("date: %w", err)
	}
	row.Date = utils.DateOf(date)
	row.Team = record[1]
	row.Project = record[2]
	row.RunID = record[3]
	if record[4] != "" {
		if err := json.Unmarshal([]byte(record[4]), &row.Tags); err != nil {
			return row, fmt.Errorf("tags: %w", err)
		}
	}
	if row.CreatedAt, err = time.Parse(timestampLayout, record[5]); err != nil {
		return row, fmt.Errorf("created_at: %w", err)
	}
	if row.UpdatedAt, err = time.Parse(timestampLayout, record[6]); err != nil {
		return row, fmt.Errorf("updated_at: %w", err)
	}
	row.State = record[7]
	if row.DurationHour, err = strconv.ParseFloat(record[8], 64); err != nil {
		return row, fmt.Errorf("duration_hour: %w", err)
	}
	if row.GPUCount, err = strconv.Atoi(record[9]); err != nil {
		return row, fmt.Errorf("gpu_count: %w", err)
	}
	if row.AvgGPUUtilization, err = parseNullable(record[10]); err != nil {
		return row, fmt.Errorf("average_gpu_utilization: %w", err)
	}
	if row.AvgGPUMemory, err = parseNullable(record[11]); err != nil {
		return row, fmt.Errorf("average_gpu_memory: %w", err)
	}
	if row.MaxGPUUtilization, err = parseNullable(record[12]); err != nil {
		return row, fmt.Errorf("max_gpu_utilization: %w", err)
	}
	if row.MaxGPUMemory, err = parseNullable(record[13]); err != nil {
		return row, fmt.Errorf("max_gpu_memory: %w", err)
	}
	row.HostName = record[14]
	if row.LoggedAt, err = time.Parse(timestampLayout, record[15]); err != nil {
		return row, fmt.Errorf("logged_at: %w", err)
	}
	return row, nil
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func parseNullable(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
