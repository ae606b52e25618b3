package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBank_UnmarshalFromFixture(t *testing.T) {
	raw := `{
		"records": [{
			"id": "rec_001",
			"organization": "Acme",
			"role": "Senior Engineer",
			"start_date": "2020-01",
			"end_date": "2023-06",
			"skills": ["Go", "Kubernetes"],
			"achievements": [{"text": "Cut p99 latency by 40%", "skills": ["Go"], "metrics": ["40%"]}],
			"context": ["Owned the billing platform"]
		}]
	}`

	var bank RecordBank
	require.NoError(t, json.Unmarshal([]byte(raw), &bank))
	require.Len(t, bank.Records, 1)

	rec := bank.Records[0]
	assert.Equal(t, "rec_001", rec.ID)
	assert.Equal(t, "Acme", rec.Organization)
	assert.Equal(t, []string{"Go", "Kubernetes"}, rec.Skills)
	require.Len(t, rec.Achievements, 1)
	assert.Equal(t, []string{"40%"}, rec.Achievements[0].Metrics)
	assert.Empty(t, rec.Description)
}

func TestRecord_OptionalFieldsOmitted(t *testing.T) {
	rec := Record{ID: "rec_002", Role: "Engineer"}
	data, err := json.Marshal(rec)
	require.NoError(t, err)

	s := string(data)
	assert.NotContains(t, s, "achievements")
	assert.NotContains(t, s, "description")
	assert.Contains(t, s, `"role":"Engineer"`)
}
