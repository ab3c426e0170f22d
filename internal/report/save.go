package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

// SaveJSON writes the report data source to dir.
func (re *Report) SaveJSON(dir string) (string, error) {
	data, err := json.MarshalIndent(re, "", " ")
	if err != nil {
		return "", errors.Wrap(err, "unable to encode the report")
	}
	file := filepath.Join(dir, ReportFileNameJSON)
	if err := os.WriteFile(file, data, 0644); err != nil {
		return "", errors.Wrapf(err, "unable to write %s", file)
	}
	return file, nil
}

// ShowJSON returns the report encoded as indented JSON.
func (re *Report) ShowJSON() (string, error) {
	val, err := json.MarshalIndent(re, "", "    ")
	if err != nil {
		return "", err
	}
	return string(val), nil
}

type sheetTable struct {
	name   string
	header []interface{}
	rows   [][]interface{}
}

func (re *Report) sheetTables() []sheetTable {
	averages := func(name, value string, list []Average) sheetTable {
		t := sheetTable{name: name, header: []interface{}{"Rank", "Name", value, "Samples"}}
		for i, a := range list {
			t.rows = append(t.rows, []interface{}{i + 1, a.Name, a.Value, a.Samples})
		}
		return t
	}

	errs := sheetTable{name: "users-cache-errors", header: []interface{}{"Rank", "User", "Builds_Cache_Error", "Builds"}}
	for i, c := range re.UsersByCacheErrors {
		errs.rows = append(errs.rows, []interface{}{i + 1, c.Name, c.Count, c.Builds})
	}
	negative := sheetTable{name: "builds-negative-savings", header: []interface{}{"Build_ID", "Task_Type"}}
	for _, b := range re.BuildsWithNegativeSavings {
		for _, task := range b.TaskTypes {
			negative.rows = append(negative.rows, []interface{}{b.BuildID, task})
		}
	}
	tagged := sheetTable{name: "builds-tagged", header: []interface{}{"Build_ID"}}
	for _, id := range re.TaggedBuilds {
		tagged.rows = append(tagged.rows, []interface{}{id})
	}

	return []sheetTable{
		averages("projects-build-time", "Average_Build_Time_ms", re.ProjectsByBuildTime),
		averages("users-build-time", "Average_Build_Time_ms", re.UsersByBuildTime),
		averages("projects-avoidance-ratio", "Average_Avoidance_Ratio", re.ProjectsByAvoidanceRatio),
		errs,
		averages("tasks-negative-savings", "Average_Savings_ms", re.TasksByNegativeSavings),
		negative,
		tagged,
	}
}

// SaveSheet writes every table of the report to a spreadsheet in dir, one
// sheet per table.
func (re *Report) SaveSheet(dir string) (string, error) {
	sheet := excelize.NewFile()
	defer func() {
		if err := sheet.Close(); err != nil {
			log.Error(err)
		}
	}()

	if err := sheet.SetSheetName("Sheet1", "summary"); err != nil {
		return "", errors.Wrap(err, "unable to create the summary sheet")
	}
	if re.Summary != nil {
		rows := [][]interface{}{
			{"Builds", re.Summary.Builds},
			{"Projects", re.Summary.Projects},
			{"Users", re.Summary.Users},
			{"Failed_Builds", re.Summary.FailedBuilds},
			{"Duration_Mean_ms", re.Summary.DurationMean},
			{"Duration_P50_ms", re.Summary.DurationP50},
			{"Duration_P95_ms", re.Summary.DurationP95},
		}
		for i, row := range rows {
			if err := sheet.SetSheetRow("summary", fmt.Sprintf("A%d", i+1), &row); err != nil {
				return "", err
			}
		}
	}

	for _, t := range re.sheetTables() {
		if _, err := sheet.NewSheet(t.name); err != nil {
			return "", errors.Wrapf(err, "unable to create the sheet %s", t.name)
		}
		if err := sheet.SetSheetRow(t.name, "A1", &t.header); err != nil {
			return "", err
		}
		for i := range t.rows {
			if err := sheet.SetSheetRow(t.name, fmt.Sprintf("A%d", i+2), &t.rows[i]); err != nil {
				return "", err
			}
		}
	}

	file := filepath.Join(dir, ReportFileNameSheet)
	if err := sheet.SaveAs(file); err != nil {
		return "", errors.Wrapf(err, "unable to write %s", file)
	}
	return file, nil
}
