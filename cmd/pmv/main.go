// Copyright 2024 The Prometheus Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The pmv tool reads metrics in the Prometheus text exposition format and
// re-encodes them to stdout in a chosen wire format. It is a thin shell around
// the expfmt package; all parsing lives there.
package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/alecthomas/kingpin/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/promslog"
	"github.com/prometheus/common/promslog/flag"

	"github.com/fakemyself/pmv/expfmt"
)

var (
	inputFile = kingpin.Arg(
		"file",
		"Input file in the text exposition format ('-' for stdin).",
	).Default("-").String()
	outputFormat = kingpin.Flag(
		"format",
		"Output format.",
	).Default("text").Enum("text", "proto-text", "proto-delim", "proto-compact", "html")
	batchSize = kingpin.Flag(
		"batch",
		"Parse in streaming mode, re-encoding every N metric families as they complete (0 disables).",
	).Default("0").Int()
)

func main() {
	promslogConfig := &promslog.Config{}
	flag.AddFlags(kingpin.CommandLine, promslogConfig)
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	logger := promslog.New(promslogConfig)

	in := os.Stdin
	if *inputFile != "-" {
		f, err := os.Open(*inputFile)
		if err != nil {
			logger.Error("error opening input file", "err", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	enc, closeEnc, err := newEncoder(os.Stdout, *outputFormat)
	if err != nil {
		logger.Error("error creating encoder", "format", *outputFormat, "err", err)
		os.Exit(1)
	}

	if err := transcode(in, enc, *batchSize); err != nil {
		logger.Error("error converting input", "file", *inputFile, "err", err)
		os.Exit(1)
	}
	if err := closeEnc(); err != nil {
		logger.Error("error finalizing output", "err", err)
		os.Exit(1)
	}
}

// newEncoder maps the --format flag to an expfmt encoder writing to w.
func newEncoder(w io.Writer, format string) (expfmt.Encoder, func() error, error) {
	var enc expfmt.Encoder
	switch format {
	case "text":
		enc = expfmt.NewEncoder(w, expfmt.FmtText)
	case "proto-text":
		enc = expfmt.NewEncoder(w, expfmt.FmtProtoText)
	case "proto-delim":
		enc = expfmt.NewEncoder(w, expfmt.FmtProtoDelim)
	case "proto-compact":
		enc = expfmt.NewEncoder(w, expfmt.FmtProtoCompact)
	case "html":
		var err error
		enc, err = expfmt.NewHTMLEncoder(w)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, fmt.Errorf("unknown format %q", format)
	}
	closeEnc := func() error { return nil }
	if c, ok := enc.(expfmt.Closer); ok {
		closeEnc = c.Close
	}
	return enc, closeEnc, nil
}

// transcode parses the input and feeds each family to enc, name-sorted for
// stable output. With batch > 0 it uses the streaming parser instead of
// accumulating the whole input.
func transcode(in io.Reader, enc expfmt.Encoder, batch int) error {
	encodeAll := func(mfs map[string]*dto.MetricFamily) error {
		names := make([]string, 0, len(mfs))
		for name := range mfs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := enc.Encode(mfs[name]); err != nil {
				return err
			}
		}
		return nil
	}

	if batch > 0 {
		p := expfmt.NewTextParser(expfmt.WithBatchCallback(batch, encodeAll))
		return p.StreamingParse(in)
	}

	p := expfmt.NewTextParser()
	mfs, err := p.TextToMetricFamilies(in)
	if err != nil {
		return err
	}
	return encodeAll(mfs)
}
