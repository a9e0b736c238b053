package archive

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/testing/testdata"
	"github.com/fitzone/zoned/types/activity"
	"github.com/fitzone/zoned/types/summary"
	"github.com/tidwall/gjson"
)

type fakeUploader struct {
	inputs []*s3manager.UploadInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return f.UploadWithContext(context.Background(), in, opts...)
}

func (f *fakeUploader) UploadWithContext(_ aws.Context, in *s3manager.UploadInput, _ ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, body)
	return &s3manager.UploadOutput{Location: "s3://" + *in.Bucket + "/" + *in.Key}, nil
}

func testSummary() *summary.Summary {
	return summary.New(summary.Input{
		Athlete:        "rye",
		Kind:           activity.KindCycle,
		Path:           testdata.Line(testdata.NYC, 100, 5, time.Second),
		DistanceMeters: 400,
		StartTime:      testdata.T0,
	})
}

func TestArchiver_Archive(t *testing.T) {
	up := &fakeUploader{}
	a := NewWithUploader(&params.ArchiveConfig{Bucket: "zoned", Prefix: "activities"}, up)
	sum := testSummary()

	loc, err := a.Archive(context.Background(), sum)
	if err != nil {
		t.Fatal(err)
	}
	wantKey := "activities/rye/2024/06/01/" + sum.ID.String() + ".geojson.gz"
	if *up.inputs[0].Key != wantKey || loc != "s3://zoned/"+wantKey {
		t.Errorf("key %q loc %q", *up.inputs[0].Key, loc)
	}
	gzr, err := gzip.NewReader(bytes.NewReader(up.bodies[0]))
	if err != nil {
		t.Fatal(err)
	}
	raw, _ := io.ReadAll(gzr)
	if gjson.GetBytes(raw, "properties.Kind").String() != "cycle" ||
		gjson.GetBytes(raw, "geometry.type").String() != "LineString" {
		t.Errorf("body: %s", raw)
	}
}

func TestArchiver_Error(t *testing.T) {
	up := &fakeUploader{err: errors.New(request.CanceledErrorCode)}
	a := NewWithUploader(&params.ArchiveConfig{Bucket: "zoned"}, up)
	if _, err := a.Archive(context.Background(), testSummary()); err == nil {
		t.Fatal("want error")
	}
	if _, err := New(&params.ArchiveConfig{}); !errors.Is(err, ErrNoBucket) {
		t.Errorf("have %v", err)
	}
}
