package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdo/internal/model"
	"pdo/internal/pipeline"
)

func table() pipeline.Table {
	return pipeline.Table{
		Columns: []string{"order_id", "carrier", "delayed", "risk_score"},
		Rows: [][]any{
			{1, "Carrier A", true, 0.85},
			{2, nil, nil, nil},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, table()))
	assert.Equal(t, "order_id,carrier,delayed,risk_score\n1,Carrier A,true,0.85\n2,,,\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, table()))

	var got []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Carrier A", got[0]["carrier"])
	assert.Equal(t, 0.85, got[0]["risk_score"])
	v, ok := got[1]["carrier"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestWrite_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, pipeline.Table{Columns: []string{"a"}}))
	assert.JSONEq(t, "[]", buf.String())
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", f.ContentType())
	assert.Equal(t, "delivery_data.csv", f.FileName())

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, model.ErrInvalidValue)
}

func TestSample(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, Sample()))
	assert.Equal(t, "order_id,priority,status,customer_rating,delivery_cost\n"+
		"1,Express,Delivered,5,200\n"+
		"2,Standard,Delayed,2,150\n"+
		"3,Economy,In Transit,4,100\n"+
		"4,Express,Delivered,5,220\n"+
		"5,Standard,Delayed,3,130\n", buf.String())
}
