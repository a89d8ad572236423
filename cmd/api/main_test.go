package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSets(t *testing.T) {
	form, err := parseSets([]string{"area=North", " minFloors =4", "year="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"area": "North", "minFloors": "4", "year": ""}, form)

	_, err = parseSets([]string{"area"})
	assert.Error(t, err)
	_, err = parseSets([]string{"=North"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := newLogger("warn", false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))

	l, err = newLogger("warn", true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(-1), "verbose forces debug")

	_, err = newLogger("loud", false)
	assert.Error(t, err)
}

func TestSummaryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buildings.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"Area,Building_Type,Building_Status,Cluster,Number_of_Floors,Energy_Consumption_Per_SqM\n"+
			"North,Residential,Operational,0,3,100\n"+
			"South,Commercial,Closed,2,12,200\n"+
			"North,Commercial,Operational,2,7,300\n"+
			"bad\n",
	), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"--config", filepath.Join(t.TempDir(), "missing.yaml"),
		"summary", "--source", path, "--view", "overview",
		"--set", "area=North", "--set", "cluster=2",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.Execute())

	var got struct {
		View      string            `json:"view"`
		Criteria  map[string]string `json:"criteria"`
		Malformed int               `json:"malformed_rows"`
		Summary   struct {
			Count     int     `json:"count"`
			AvgEnergy float64 `json:"avg_energy"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))

	// overview does not expose cluster, so only the area applies
	assert.Equal(t, "overview", got.View)
	assert.Equal(t, map[string]string{"area": "North"}, got.Criteria)
	assert.Equal(t, 1, got.Malformed)
	assert.Equal(t, 2, got.Summary.Count)
	assert.InDelta(t, 200.0, got.Summary.AvgEnergy, 1e-9)
}
