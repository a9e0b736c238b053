// Package flat keeps per-athlete gzipped GeoJSON archives on disk.
// Each finished activity is appended as one line-delimited Feature.
package flat

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/fitzone/zoned/conceptual"
	"github.com/fitzone/zoned/params"
	"github.com/fitzone/zoned/types/summary"
	"github.com/paulmach/orb/geojson"
)

type Flat struct {
	// path is the directory for flat file storage.
	// It includes the root directory.
	path string
}

func NewFlatWithRoot(root string) *Flat {
	root = filepath.Clean(root)
	// If root is not absolute, make it absolute.
	if !filepath.IsAbs(root) {
		root, _ = filepath.Abs(root)
	}
	return &Flat{path: root}
}

// ForAthlete returns a new Flat rooted at the athlete's subdirectory.
func (f *Flat) ForAthlete(athlete conceptual.AthleteID) *Flat {
	return f.Joining(params.AthletesDir, athlete.String())
}

func (f *Flat) Joining(paths ...string) *Flat {
	return &Flat{path: filepath.Join(append([]string{f.path}, paths...)...)}
}

// Exists returns true if the directory exists.
func (f *Flat) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *Flat) MkdirAll() error {
	return os.MkdirAll(f.path, 0770)
}

func (f *Flat) Path() string {
	return f.path
}

func (f *Flat) NamedGZWriter(name string, config *GZFileWriterConfig) (*GZFileWriter, error) {
	if config == nil {
		config = DefaultGZFileWriterConfig()
	}
	return NewFlatGZWriter(filepath.Join(f.path, name), config)
}

func (f *Flat) NamedGZReader(name string) (*GZFileReader, error) {
	return NewFlatGZReader(filepath.Join(f.path, name))
}

// AppendActivity writes the summary as a GeoJSON feature line to the
// athlete's activities file.
func (f *Flat) AppendActivity(s *summary.Summary) error {
	gzw, err := f.ForAthlete(s.Athlete).NamedGZWriter(params.ActivitiesGZFileName, nil)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(gzw.Writer()).Encode(s.ToFeature()); err != nil {
		_ = gzw.Close()
		return err
	}
	if err := gzw.Close(); err != nil {
		return err
	}
	if fi, err := os.Stat(gzw.Path()); err == nil {
		slog.Debug("Archived activity", "athlete", s.Athlete, "id", s.ID,
			"file", gzw.Path(), "size", humanize.Bytes(uint64(fi.Size())))
	}
	return nil
}

// ReadActivities calls fn for every archived activity feature, oldest first.
// A missing archive is not an error.
func (f *Flat) ReadActivities(athlete conceptual.AthleteID, fn func(*geojson.Feature) error) error {
	gzr, err := f.ForAthlete(athlete).NamedGZReader(params.ActivitiesGZFileName)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer gzr.Close()
	dec := json.NewDecoder(bufio.NewReader(gzr.Reader()))
	for {
		ft := &geojson.Feature{}
		err := dec.Decode(ft)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(ft); err != nil {
			return err
		}
	}
}

type GZFileWriter struct {
	f      *os.File
	gzw    *gzip.Writer
	locked bool

	GZFileWriterConfig
}

type GZFileWriterConfig struct {
	CompressionLevel int
	Flag             int
	FilePerm         os.FileMode
	DirPerm          os.FileMode
}

func DefaultGZFileWriterConfig() *GZFileWriterConfig {
	return &GZFileWriterConfig{
		CompressionLevel: gzip.BestCompression,
		Flag:             os.O_WRONLY | os.O_APPEND | os.O_CREATE,
		FilePerm:         0660,
		DirPerm:          0770,
	}
}

func NewFlatGZWriter(path string, config *GZFileWriterConfig) (*GZFileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), config.DirPerm); err != nil {
		return nil, err
	}
	fi, err := os.OpenFile(path, config.Flag, config.FilePerm)
	if err != nil {
		return nil, err
	}
	gzw, err := gzip.NewWriterLevel(fi, config.CompressionLevel)
	if err != nil {
		_ = fi.Close()
		return nil, err
	}
	return &GZFileWriter{f: fi, gzw: gzw, GZFileWriterConfig: *config}, nil
}

// Writer returns a gzip writer for the file.
// While the writer is not closed, an exclusive lock is held on the file.
func (g *GZFileWriter) Writer() *gzip.Writer {
	if !g.locked && g.f != nil {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_EX); err != nil {
			panic(err)
		}
		g.locked = true
	}
	return g.gzw
}

func (g *GZFileWriter) Close() error {
	if err := g.gzw.Close(); err != nil {
		return err
	}
	if err := g.f.Sync(); err != nil {
		return err
	}
	if g.locked {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN); err != nil {
			return err
		}
		g.locked = false
	}
	return g.f.Close()
}

func (g *GZFileWriter) Path() string {
	return g.f.Name()
}

// GZFileReader reads concatenated gzip members, as appending writers leave them.
type GZFileReader struct {
	f      *os.File
	gzr    *gzip.Reader
	locked bool
	closed bool
}

func NewFlatGZReader(path string) (*GZFileReader, error) {
	fi, err := os.OpenFile(path, os.O_RDONLY, 0660)
	if err != nil {
		return nil, err
	}
	gzr, err := gzip.NewReader(fi)
	if err != nil {
		_ = fi.Close()
		return nil, err
	}
	return &GZFileReader{f: fi, gzr: gzr}, nil
}

// Reader returns a gzip reader for the file.
// While the reader is not closed, a shared lock is held on the file.
func (g *GZFileReader) Reader() *gzip.Reader {
	if g.closed {
		panic("closed")
	}
	if !g.locked {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_SH); err != nil {
			panic(err)
		}
		g.locked = true
	}
	return g.gzr
}

func (g *GZFileReader) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.gzr.Close(); err != nil {
		return err
	}
	if g.locked {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN); err != nil {
			return err
		}
	}
	return g.f.Close()
}
