package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecRoundTrip(t *testing.T) {
	util := 57.25
	mem := 80.0
	rows := []DailyUsageRow{
		{
			Date:              time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
			Team:              "acme-nlp",
			Project:           "pretrain",
			RunID:             "abc123",
			Tags:              []string{"baseline", "fp8"},
			CreatedAt:         time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC),
			UpdatedAt:         time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC),
			State:             "finished",
			DurationHour:      11.5,
			GPUCount:          16,
			AvgGPUUtilization: &util,
			MaxGPUUtilization: &util,
			AvgGPUMemory:      &mem,
			MaxGPUMemory:      &mem,
			HostName:          "node-07",
			LoggedAt:          time.Date(2026, 1, 6, 1, 0, 0, 123456789, time.UTC),
		},
		{
			// no metric samples: nullable fields stay empty on the wire
			Date:         time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC),
			Team:         "acme-nlp",
			Project:      "pretrain",
			RunID:        "abc123",
			CreatedAt:    time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC),
			UpdatedAt:    time.Date(2026, 1, 6, 4, 0, 0, 0, time.UTC),
			State:        "running",
			DurationHour: 4,
			GPUCount:     16,
			HostName:     "node-07",
			LoggedAt:     time.Date(2026, 1, 6, 1, 0, 0, 0, time.UTC),
		},
	}

	data, err := EncodeCSV(rows)
	require.NoError(t, err)

	decoded, err := DecodeCSV(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, rows[0], decoded[0])
	assert.Nil(t, decoded[1].AvgGPUUtilization)
	assert.Equal(t, rows[1].DurationHour, decoded[1].DurationHour)
	assert.Equal(t, rows[1].Key(), decoded[1].Key())
}

func TestDecodeEmptyPayload(t *testing.T) {
	rows, err := DecodeCSV(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDecodeRejectsMalformedRows(t *testing.T) {
	corrupted := []byte(
		"date,team,project,run_id,tags,created_at,updated_at,state,duration_hour,gpu_count," +
			"average_gpu_utilization,average_gpu_memory,max_gpu_utilization,max_gpu_memory,host_name,logged_at\n" +
			"2026-01-05,acme-nlp,p,r,,2026-01-05T00:00:00Z,2026-01-05T01:00:00Z,finished,not-a-number,1,,,,,host," +
			"2026-01-06T00:00:00Z\n")

	_, err := DecodeCSV(corrupted)
	var integrityErr *DataIntegrityError
	require.ErrorAs(t, err, &integrityErr)
}
