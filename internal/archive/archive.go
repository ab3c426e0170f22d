// Package archive dumps the enriched builds of a run to an xz compressed
// file, one JSON document per build, to be aggregated again later without
// querying the server.
package archive

import (
	"bufio"
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/gradle-enterprise-insights/build-report/internal/pipeline"
)

// Write encodes the builds to w.
func Write(w io.Writer, builds []pipeline.EnrichedBuild) error {
	xw, err := xz.NewWriter(w)
	if err != nil {
		return errors.Wrap(err, "unable to create the xz writer")
	}
	enc := json.NewEncoder(xw)
	for i := range builds {
		if err := enc.Encode(&builds[i]); err != nil {
			return errors.Wrapf(err, "unable to encode build %s", builds[i].ID())
		}
	}
	return xw.Close()
}

// Read decodes the builds from r.
func Read(r io.Reader) ([]pipeline.EnrichedBuild, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read the xz stream")
	}
	builds := []pipeline.EnrichedBuild{}
	dec := json.NewDecoder(xr)
	for dec.More() {
		eb := pipeline.EnrichedBuild{}
		if err := dec.Decode(&eb); err != nil {
			return nil, errors.Wrapf(err, "invalid build %d", len(builds)+1)
		}
		builds = append(builds, eb)
	}
	return builds, nil
}

// Save writes the builds to the file path.
func Save(path string, builds []pipeline.EnrichedBuild) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := save(f, builds); err != nil {
		return errors.Wrapf(err, "unable to save %s", path)
	}
	log.Debugf("Saved %d builds to %s", len(builds), path)
	return nil
}

// save writes the builds to f and closes it, the close error is returned
// when the write succeeded.
func save(f io.WriteCloser, builds []pipeline.EnrichedBuild) (err error) {
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	w := bufio.NewWriter(f)
	if err := Write(w, builds); err != nil {
		return err
	}
	return w.Flush()
}

// Load reads the builds from the file path.
func Load(path string) ([]pipeline.EnrichedBuild, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	builds, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "unable to load %s", path)
	}
	log.Debugf("Loaded %d builds from %s", len(builds), path)
	return builds, nil
}
