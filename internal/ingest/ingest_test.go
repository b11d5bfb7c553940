package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "bmdscreen/internal/errors"
	"bmdscreen/pkg/contracts/domain"
)

const sampleCSV = `chemical_id,concentration,plate_id,well_id,endpoint,value
C1,0,P1,A01,MORT,0
C1,0,P1,A02,MORT,NA

C1,1.5,P1,B01,MORT,1
C1,1.5,P1,B02,MORT,
`

func TestReadCSV(t *testing.T) {
	obs, err := NewReader().ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, obs, 4)

	assert.Equal(t, domain.WellObservation{
		ChemicalID: "C1", Concentration: 1.5, PlateID: "P1", WellID: "B01", Endpoint: "MORT", Value: domain.Affected,
	}, obs[2])
	assert.Equal(t, domain.Missing, obs[1].Value)
	assert.Equal(t, domain.Missing, obs[3].Value)
}

func TestReadCSV_ColumnOrderAndCase(t *testing.T) {
	in := "\ufeffValue,Endpoint,Well_ID,Plate_ID,Concentration,Chemical_ID,notes\n1,ANY24,A01,P1,0,C9,ok\n"

	obs, err := NewReader().ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "C9", obs[0].ChemicalID)
	assert.Equal(t, "ANY24", obs[0].Endpoint)
}

func TestReadCSV_SchemaErrors(t *testing.T) {
	header := "chemical_id,concentration,plate_id,well_id,endpoint,value\n"

	tests := []struct {
		name    string
		in      string
		errText string
	}{
		{"empty input", "", "empty"},
		{"missing columns", "chemical_id,concentration\nC1,0\n", "plate_id, well_id, endpoint, value"},
		{"duplicate column", "chemical_id,chemical_id,concentration,plate_id,well_id,endpoint,value\n", "duplicate column"},
		{"bad value", header + "C1,0,P1,A01,MORT,2\n", "invalid well value"},
		{"bad concentration", header + "C1,abc,P1,A01,MORT,1\n", "invalid concentration"},
		{"negative concentration", header + "C1,-1,P1,A01,MORT,1\n", "concentration"},
		{"missing chemical", header + ",0,P1,A01,MORT,1\n", "chemical_id"},
		{"bad endpoint name", header + "C1,0,P1,A01,MO 24,1\n", "endpoint_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewReader().ReadCSV(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema), "got %v", err)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestReadCSV_ReportsLineNumber(t *testing.T) {
	in := "chemical_id,concentration,plate_id,well_id,endpoint,value\nC1,0,P1,A01,MORT,1\nC1,0,P1,A02,MORT,yes\n"

	_, err := NewReader().ReadCSV(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 3")
}

func writeWorkbook(t *testing.T, path, sheet string, rows [][]interface{}) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		_, err := f.NewSheet(sheet)
		require.NoError(t, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestReadXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	writeWorkbook(t, path, "Sheet1", [][]interface{}{
		{"chemical_id", "concentration", "plate_id", "well_id", "endpoint", "value"},
		{"C2", 0, "P1", "A01", "ANY24", 0},
		{"C2", 10, "P1", "A02", "ANY24", 1},
		{"C2", 10, "P1", "A03", "ANY24", "NA"},
	})

	obs, err := NewReader().ReadFile(path, FormatAuto, "")
	require.NoError(t, err)
	require.Len(t, obs, 3)
	assert.Equal(t, 10.0, obs[1].Concentration)
	assert.Equal(t, domain.Affected, obs[1].Value)
	assert.Equal(t, domain.Missing, obs[2].Value)
}

func TestReadXLSX_NamedSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.xlsx")
	writeWorkbook(t, path, "wells", [][]interface{}{
		{"chemical_id", "concentration", "plate_id", "well_id", "endpoint", "value"},
		{"C3", 0, "P1", "A01", "MORT", 1},
	})

	obs, err := NewReader().ReadXLSX(path, "wells")
	require.NoError(t, err)
	require.Len(t, obs, 1)

	_, err = NewReader().ReadXLSX(path, "absent")
	assert.Error(t, err)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	obs, err := NewReader().ReadFile(path, FormatAuto, "")
	require.NoError(t, err)
	assert.Len(t, obs, 4)

	_, err = NewReader().ReadFile(filepath.Join(dir, "absent.csv"), FormatCSV, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInput))

	_, err = NewReader().ReadFile(path, "parquet", "")
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
}

func TestReadMovementCSV(t *testing.T) {
	in := "well,t0,t1,t2\nA01,1,2.5,3\nA02,0,0,4\n"

	series, err := ReadMovementCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, MovementSeries{ID: "A01", Values: []float64{1, 2.5, 3}}, series[0])

	_, err = ReadMovementCSV(strings.NewReader("well,t0\nA01,x\n"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeSchema))

	_, err = ReadMovementCSV(strings.NewReader("well\n"))
	assert.Error(t, err)
}
