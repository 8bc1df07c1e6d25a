package activity

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []*Entry {
	return []*Entry{
		{
			ID: 2, UserID: 7, Username: "alice", Type: TypeExpenseCreate,
			Description: "lunch, with \"quotes\"", IPAddress: "10.0.0.1",
			Metadata: map[string]interface{}{"amount": 12.5}, CreatedAt: testTime,
		},
		{ID: 1, UserID: 7, Username: "alice", Type: TypeLogin, CreatedAt: testTime},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSV(&buf, sampleEntries()))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, utf8BOM), "CSV must start with a BOM")

	records, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(out, utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "2024-05-10T08:30:00Z", records[1][0])
	assert.Equal(t, "lunch, with \"quotes\"", records[1][3])
	assert.JSONEq(t, `{"amount":12.5}`, records[1][6])
	assert.Equal(t, "", records[2][6])
}

func TestWriteNDJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeNDJSON(&buf, sampleEntries()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, int64(2), first.ID)
	assert.Equal(t, TypeExpenseCreate, first.Type)
}

func TestArchiver(t *testing.T) {
	objects := &memoryObjects{}
	a := NewArchiver(objects, "backups/activity")
	a.now = fixedClock

	key, err := a.Archive(context.Background(), nil, testTime)
	require.NoError(t, err)
	assert.Empty(t, key)
	assert.Empty(t, objects.objects)

	key, err = a.Archive(context.Background(), sampleEntries(), testTime.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, "backups/activity/2024/05/10/before-20240210-1715329800.ndjson", key)
	assert.Contains(t, string(objects.objects[key]), `"activity_type":"login"`)
}
