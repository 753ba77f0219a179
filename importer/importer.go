/*
NAME
  importer.go

DESCRIPTION
  importer.go provides the common importer framework: the capability set
  {probe, get_access_unit, get_last_delta, cleanup}, the registry of known
  formats, and the auto-detect/name-match open logic.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package importer provides the common framework used by every concrete
// elementary-stream importer: a small capability-set interface, a status
// machine, a name/auto-detect open entry point, and the pluggable logger
// and error-kind types shared across codecs.
package importer

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/ausocean/av/bytestream"
	"github.com/ausocean/av/sampleentry"
)

// Status is the importer status machine's value, returned on every
// successful GetAccessUnit call.
type Status int

const (
	// StatusOK indicates the returned sample belongs to the currently
	// active summary.
	StatusOK Status = iota
	// StatusChange indicates that the active summary at the sample's
	// track has just been replaced by a pending configuration; the
	// returned sample already belongs to the new summary.
	StatusChange
	// StatusEOF indicates no more samples are available.
	StatusEOF
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusChange:
		return "CHANGE"
	case StatusEOF:
		return "EOF"
	default:
		return "ERROR"
	}
}

// LeadingType classifies a sample's leading-picture status (HEVC RASL/RADL).
type LeadingType uint8

const (
	LeadingNone LeadingType = iota
	LeadingUndecodable
	LeadingDecodable
)

// RandomAccess is a bitmask of random-access properties attached to a
// sample.
type RandomAccess uint32

const (
	// RASync marks the sample as a sync sample (IDR / CRA / BLA, or a
	// constant-frame-size audio frame, all of which can seed decoding).
	RASync RandomAccess = 1 << iota
	// RARAP marks a non-IDR random access point (open-GOP HEVC CRA).
	RARAP
	// RAPostRollStart marks a recovery-point sample; PostRoll carries the
	// recovery distance/identifier.
	RAPostRollStart
)

// PreRoll describes decoder pre-roll required before a sample's first
// presentable frame (e.g. MDCT codec priming, LBR extension priming).
type PreRoll struct {
	Distance uint32
}

// PostRoll describes the recovery point a POST_ROLL_START sample
// establishes.
type PostRoll struct {
	Complete   bool
	Identifier uint32
}

// Sample is one timestamped access unit delivered by GetAccessUnit.
type Sample struct {
	Data []byte
	DTS  int64
	CTS  int64

	RAFlags      RandomAccess
	Leading      LeadingType
	Independent  bool
	Disposable   bool
	Redundant    bool
	AllowEarlier bool

	PreRoll  PreRoll
	PostRoll PostRoll
}

// Logger is the pluggable logging sink used by every importer, following
// the revid.Logger shape from the teacher library: levels are reported via
// Log and an overall verbosity threshold is set with SetLevel.
type Logger interface {
	SetLevel(level int8)
	Log(level int8, message string, params ...interface{})
}

// Log severity levels, per spec.md section 6.
const (
	LogQuiet int8 = iota
	LogError
	LogWarning
	LogInfo
)

// noopLogger discards everything; it is installed when no logger is given.
type noopLogger struct{}

func (noopLogger) SetLevel(int8)                   {}
func (noopLogger) Log(int8, string, ...interface{}) {}

// silencedLogger wraps a Logger and drops all messages; it is used during
// auto-detect probing so that failed detections (expected, not
// exceptional) don't spam the real logger.
type silencedLogger struct{ Logger }

func (silencedLogger) Log(int8, string, ...interface{}) {}

// Importer is the capability set every concrete format implements:
// probe, deliver access units, report the final sample's duration, and
// release resources. It is the Go analogue of the teacher's C vtable of
// function pointers.
type Importer interface {
	// Probe validates the stream and returns the initial sample entry.
	Probe() (*sampleentry.Summary, error)

	// TrackCount returns the number of elementary streams described; 1 for
	// every importer in this package.
	TrackCount() uint32

	// DuplicateSummary returns a deep copy of the active summary for the
	// given track.
	DuplicateSummary(track uint32) *sampleentry.Summary

	// GetAccessUnit returns the next sample for the given track, along
	// with the status transition observed while producing it.
	GetAccessUnit(track uint32) (*Sample, Status, error)

	// GetLastDelta returns the duration of the final sample; valid only
	// after GetAccessUnit has returned StatusEOF.
	GetLastDelta(track uint32) (uint32, error)

	// Cleanup releases all resources held by the importer.
	Cleanup() error

	// Name identifies the format, e.g. "h264", "adts".
	Name() string
}

// Entry registers one concrete importer format.
type Entry struct {
	Name       string
	Detectable bool
	New        func(src *bytestream.ByteStream, logger Logger) Importer
}

var registry []Entry

// Register adds an importer format to the global registry. It is called
// from each codec package's init().
func Register(e Entry) {
	registry = append(registry, e)
}

// Option configures an Open call.
type Option func(*openOptions)

type openOptions struct {
	format  string
	logger  Logger
	bufSize int
}

// WithFormat pins Open to a single named format instead of auto-detecting.
func WithFormat(name string) Option {
	return func(o *openOptions) { o.format = name }
}

// WithLogger installs a logger used for everything but the silenced
// auto-detect probing loop.
func WithLogger(l Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// WithBufferSize overrides the ByteStream's internal buffer capacity.
func WithBufferSize(n int) Option {
	return func(o *openOptions) { o.bufSize = n }
}

// ErrNoMatch is returned by Open when auto-detection found no matching
// registered format.
var ErrNoMatch = errors.New("importer: no registered format matched")

// Open probes r against the registered importer table (or a single named
// format, via WithFormat) and returns the first importer whose Probe
// succeeds. Two-pass NAL analysis and auto-detect retries both require
// rewinding to the start of the stream, so Open buffers the entirety of r
// into memory up front; callers with unseekable, unbounded sources should
// bound them before calling Open.
func Open(r io.Reader, opts ...Option) (Importer, error) {
	cfg := openOptions{logger: noopLogger{}}
	for _, o := range opts {
		o(&cfg)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Wrap(KindNameless, fmt.Errorf("importer: reading input: %w", err))
	}

	if cfg.format != "" {
		for _, e := range registry {
			if e.Name != cfg.format {
				continue
			}
			bs := bytestream.New(bytes.NewReader(data), cfg.bufSize)
			imp := e.New(bs, cfg.logger)
			if _, err := imp.Probe(); err != nil {
				return nil, Wrap(KindInvalidData, err)
			}
			return imp, nil
		}
		return nil, Wrap(KindParameter, fmt.Errorf("importer: unknown format %q", cfg.format))
	}

	for _, e := range registry {
		if !e.Detectable {
			continue
		}
		bs := bytestream.New(bytes.NewReader(data), cfg.bufSize)
		imp := e.New(bs, silencedLogger{cfg.logger})
		if _, err := imp.Probe(); err == nil {
			return imp, nil
		}
	}
	return nil, Wrap(KindInvalidData, ErrNoMatch)
}
