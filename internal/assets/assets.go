// Package assets gives access to the files embedded in the binary, set by
// the main package on startup.
package assets

import (
	"embed"
	"io/fs"
	"path"
	"text/template"

	"github.com/pkg/errors"
)

// ReportTextTemplate is the template of the report text output.
const ReportTextTemplate = "templates/report/report.txt.tmpl"

var efs *embed.FS

func GetData() *embed.FS {
	return efs
}

func UpdateData(d *embed.FS) {
	efs = d
}

// GetAllFilenames return all file names from an path in embeded EFS.
func GetAllFilenames(efs *embed.FS, path string) (files []string, err error) {
	if err := fs.WalkDir(efs, path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		files = append(files, path)

		return nil
	}); err != nil {
		return nil, err
	}

	return files, nil
}

// ParseTemplate reads the template file from the embedded data and parses
// it with funcs.
func ParseTemplate(file string, funcs template.FuncMap) (*template.Template, error) {
	if efs == nil {
		return nil, errors.New("embedded data is not loaded")
	}
	data, err := efs.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read template %s", file)
	}
	return template.New(path.Base(file)).Funcs(funcs).Parse(string(data))
}
