/*
NAME
  probe - prints the sample-entry summary and access-unit count of an
  elementary-stream file.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package probe is a small command-line demonstration of the importer
// package: it opens a file, probes it (auto-detecting the format unless
// -format is given), and prints the resulting sample entry and sample
// count.
package main

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	_ "github.com/ausocean/av/codec/ac3"
	_ "github.com/ausocean/av/codec/adts"
	_ "github.com/ausocean/av/codec/als"
	_ "github.com/ausocean/av/codec/amr"
	_ "github.com/ausocean/av/codec/av1"
	_ "github.com/ausocean/av/codec/avc"
	_ "github.com/ausocean/av/codec/dts"
	_ "github.com/ausocean/av/codec/eac3"
	_ "github.com/ausocean/av/codec/hevc"
	_ "github.com/ausocean/av/codec/mp3"
	imp "github.com/ausocean/av/importer"
	"github.com/ausocean/utils/logging"
)

const (
	logPath      = "/var/log/probe/probe.log"
	logMaxSize   = 10 // MB
	logMaxBackup = 3
	logMaxAge    = 28 // days
	logVerbosity = logging.Info
	logSuppress  = true

	pkg = "probe: "
)

func main() {
	format := flag.String("format", "", "pin probing to this registered format instead of auto-detecting")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: probe [-format name] <file>")
		os.Exit(2)
	}

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	log := logging.New(logVerbosity, fileLog, logSuppress)

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		log.Fatal(pkg+"could not open input file", "error", err.Error())
	}
	defer f.Close()

	var opts []imp.Option
	opts = append(opts, imp.WithLogger(log))
	if *format != "" {
		opts = append(opts, imp.WithFormat(*format))
	}

	importer, err := imp.Open(f, opts...)
	if err != nil {
		log.Fatal(pkg+"probe failed", "error", err.Error())
	}
	defer importer.Cleanup()

	log.Info(pkg+"detected format", "name", importer.Name())
	fmt.Printf("format: %s\n", importer.Name())

	count := 0
	for track := uint32(0); track < importer.TrackCount(); track++ {
		summary := importer.DuplicateSummary(track)
		fmt.Printf("track %d: %+v\n", track, summary)
		for {
			_, status, err := importer.GetAccessUnit(track)
			if err != nil {
				log.Error(pkg+"GetAccessUnit failed", "error", err.Error())
				break
			}
			if status == imp.StatusEOF {
				break
			}
			count++
		}
	}
	fmt.Printf("samples: %d\n", count)
}
