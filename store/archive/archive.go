// Package archive uploads finished activities to S3 as gzipped GeoJSON.
// The AWS library uses environment variables to configure itself.
package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/aws/aws-sdk-go/service/s3/s3manager/s3manageriface"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/types/summary"
)

var ErrNoBucket = errors.New("archive: no bucket configured")

type Archiver struct {
	config   *params.ArchiveConfig
	uploader s3manageriface.UploaderAPI
	logger   *slog.Logger
}

// New creates an archiver with an S3 session from the environment.
func New(config *params.ArchiveConfig) (*Archiver, error) {
	if config == nil || config.Bucket == "" {
		return nil, ErrNoBucket
	}
	awsConfig := aws.NewConfig()
	if config.Region != "" {
		awsConfig = awsConfig.WithRegion(config.Region)
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, err
	}
	return NewWithUploader(config, s3manager.NewUploader(sess)), nil
}

func NewWithUploader(config *params.ArchiveConfig, uploader s3manageriface.UploaderAPI) *Archiver {
	return &Archiver{
		config:   config,
		uploader: uploader,
		logger:   slog.With("d", "archive", "bucket", config.Bucket),
	}
}

// Key is where an activity lands: prefix/athlete/yyyy/mm/dd/id.geojson.gz,
// dated by start time in UTC.
func (a *Archiver) Key(s *summary.Summary) string {
	return path.Join(a.config.Prefix, s.Athlete.String(),
		s.StartTime.UTC().Format("2006/01/02"), s.ID.String()+".geojson.gz")
}

func encode(s *summary.Summary) ([]byte, error) {
	buf := bytes.Buffer{}
	gzw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gzw).Encode(s.ToFeature()); err != nil {
		return nil, err
	}
	if err := gzw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Archive uploads the activity. It returns the object location.
func (a *Archiver) Archive(ctx context.Context, s *summary.Summary) (string, error) {
	body, err := encode(s)
	if err != nil {
		return "", err
	}
	key := a.Key(s)
	out, err := a.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:          aws.String(a.config.Bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(body),
		ContentType:     aws.String("application/geo+json"),
		ContentEncoding: aws.String("gzip"),
	})
	if err != nil {
		var aerr awserr.Error
		if errors.As(err, &aerr) && aerr.Code() == request.CanceledErrorCode {
			a.logger.Error("S3 upload canceled", "key", key, "error", err)
		} else {
			a.logger.Error("S3 upload failed", "key", key, "error", err)
		}
		return "", fmt.Errorf("archive %s: %w", s.ID, err)
	}
	a.logger.Info("Archived activity to S3", "key", key, "location", out.Location)
	return out.Location, nil
}
