// Package publish uploads the files of a saved report to an S3 bucket.
package publish

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultPrefix = "reports"

type Publisher struct {
	uploader s3manageriface.UploaderAPI
	Bucket   string
	Prefix   string
	DryRun   bool
	Metadata map[string]string
}

// NewPublisher creates a publisher uploading with the given uploader.
func NewPublisher(uploader s3manageriface.UploaderAPI, bucket string) *Publisher {
	return &Publisher{
		uploader: uploader,
		Bucket:   bucket,
		Prefix:   DefaultPrefix,
		Metadata: map[string]string{},
	}
}

// NewS3Uploader creates an S3 upload manager in the region, the
// credentials are read from the default AWS chain.
func NewS3Uploader(region string) (s3manageriface.UploaderAPI, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(region),
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create the AWS session")
	}
	return s3manager.NewUploader(sess), nil
}

// ObjectKey returns the key of the file uploaded for the run.
func (p *Publisher) ObjectKey(runID, file string) string {
	return path.Join(p.Prefix, runID, filepath.Base(file))
}

// Publish uploads the regular files of dir under <prefix>/<runID>/ and
// returns the object URIs, sorted.
func (p *Publisher) Publish(ctx context.Context, dir, runID string) ([]string, error) {
	if p.Bucket == "" {
		return nil, errors.New("the bucket name must be set")
	}
	if runID == "" {
		return nil, errors.New("the run id must be set")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read the report directory %s", dir)
	}
	files := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no files found in %s", dir)
	}
	sort.Strings(files)

	uris := make([]string, 0, len(files))
	for _, file := range files {
		uri, err := p.upload(ctx, file, p.ObjectKey(runID, file))
		if err != nil {
			return uris, err
		}
		uris = append(uris, uri)
	}
	return uris, nil
}

func (p *Publisher) upload(ctx context.Context, file, key string) (string, error) {
	uri := "s3://" + p.Bucket + "/" + key
	if p.DryRun {
		log.Warnf("DRY-RUN mode: skipping upload to %s", uri)
		return uri, nil
	}

	log.Debugf("Uploading %s to %s", file, uri)
	fd, err := os.Open(file)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open file %s", file)
	}
	defer fd.Close()

	_, err = p.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:   aws.String(p.Bucket),
		Key:      aws.String(key),
		Metadata: aws.StringMap(p.Metadata),
		Body:     fd,
	})
	if err != nil {
		return "", errors.Wrapf(err, "failed to upload file %s to bucket %s", filepath.Base(file), p.Bucket)
	}
	log.Info("Published ", uri)
	return uri, nil
}
