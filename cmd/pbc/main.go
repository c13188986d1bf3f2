// Command pbc trains pattern dictionaries and compresses record files with
// them.
//
//	pbc --train-pattern -i records.log -o patterns.pbc --compress-method pbc_fse
//	pbc --test-compress -i records.log --compress-method pbc_zstd
//	pbc -c -i records.log -p patterns.pbc -o records.pbc
//	pbc -d -i records.pbc -p patterns.pbc -o records.log
package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pbcompress/pbc"
	"github.com/pbcompress/pbc/fse"
	"github.com/pbcompress/pbc/fsst"
	"github.com/pbcompress/pbc/train"
	pbczstd "github.com/pbcompress/pbc/zstd"
)

var (
	trainPattern = flag.Bool("train-pattern", false, "Train a pattern dictionary from the input records")
	testCompress = flag.Bool("test-compress", false, "Train on a sample of the input and report compression stats")
	compress     = flag.Bool("compress", false, "Compress the input records with a trained dictionary")
	decompress   = flag.Bool("decompress", false, "Decompress a file produced by --compress")

	input       = flag.String("i", "", "Input file")
	patternPath = flag.String("p", "", "Pattern file")
	output      = flag.String("o", "", "Output file")

	method          = flag.String("compress-method", "pbc_fse", "Secondary encoding: pbc_only/pbc_fse/pbc_fsst/pbc_zstd")
	patternSize     = flag.Int("pattern-size", 50, "Target number of patterns to train")
	trainDataNumber = flag.Int("train-data-number", 10000, "Number of records sampled for training")
	trainThreadNum  = flag.Int("train-thread-num", 16, "Training worker count; 0 for single-threaded")
	varchar         = flag.Bool("varchar", false, "Records are int32-length-prefixed instead of newline-separated")
	logLevel        = flag.String("log-level", "info", "Log level: debug/info/warn/error")
)

func main() {
	flag.BoolVar(compress, "c", false, "Alias for --compress")
	flag.BoolVar(decompress, "d", false, "Alias for --decompress")
	flag.Parse()
	initLogging(*logLevel)

	if err := run(); err != nil {
		slog.Error("pbc failed", "err", err)
		os.Exit(1)
	}
}

func initLogging(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", level)
		os.Exit(1)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func run() error {
	switch {
	case *trainPattern:
		return runTrain()
	case *testCompress:
		return runTestCompress()
	case *compress:
		return runCompress()
	case *decompress:
		return runDecompress()
	}
	return errors.New("one of --train-pattern, --test-compress, --compress, --decompress is required")
}

func inputKind() train.InputKind {
	if *varchar {
		return train.LengthPrefixed
	}
	return train.LineSeparated
}

func newEncoder(name string) (pbc.SecondaryEncoder, error) {
	switch name {
	case "pbc_only":
		return nil, nil
	case "pbc_fse":
		return fse.New(), nil
	case "pbc_fsst":
		return fsst.New(), nil
	case "pbc_zstd":
		return pbczstd.New(), nil
	}
	return nil, fmt.Errorf("unknown compress method %q", name)
}

func readRecords(path string) ([][]byte, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("input file %s is empty", path)
	}
	return train.ParseRecords(buf, inputKind())
}

func trainDictionary(records [][]byte) ([]byte, error) {
	enc, err := newEncoder(*method)
	if err != nil {
		return nil, err
	}
	trainer := train.NewTrainer(enc, *trainThreadNum)
	trainer.LoadRecords(train.Sample(records, *trainDataNumber))
	return trainer.Train(*patternSize)
}

func runTrain() error {
	records, err := readRecords(*input)
	if err != nil {
		return err
	}
	blob, err := trainDictionary(records)
	if err != nil {
		return err
	}
	return os.WriteFile(*output, blob, 0o644)
}

func runTestCompress() error {
	records, err := readRecords(*input)
	if err != nil {
		return err
	}
	blob, err := trainDictionary(records)
	if err != nil {
		return err
	}

	enc, err := newEncoder(*method)
	if err != nil {
		return err
	}
	codec := pbc.NewCodec(enc)
	if err := codec.LoadPatterns(blob); err != nil {
		return err
	}

	var rawLen, compressedLen int
	counts := map[byte]int{}
	var frame, back []byte
	for _, r := range records {
		frame, err = codec.Compress(frame[:0], r)
		if err != nil {
			return err
		}
		back, err = codec.Decompress(back[:0], frame)
		if err != nil {
			return err
		}
		if !bytes.Equal(back, r) {
			return fmt.Errorf("round-trip mismatch on record %q", r)
		}
		counts[frame[0]]++
		rawLen += len(r)
		compressedLen += len(frame)
	}
	slog.Info("compression test finished",
		"records", len(records),
		"patterns", codec.NumPatterns(),
		"raw_bytes", rawLen,
		"compressed_bytes", compressedLen,
		"ratio", fmt.Sprintf("%.3f", float64(rawLen)/float64(compressedLen)),
		"not_compressed", counts[pbc.TagNotCompressed],
		"pbc_only", counts[pbc.TagPBCOnly],
		"secondary_only", counts[pbc.TagSecondaryOnly],
		"pbc_secondary", counts[pbc.TagPBCSecondary])
	return nil
}

func loadCodec() (*pbc.Codec, error) {
	enc, err := newEncoder(*method)
	if err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(*patternPath)
	if err != nil {
		return nil, err
	}
	codec := pbc.NewCodec(enc)
	if err := codec.LoadPatterns(blob); err != nil {
		return nil, err
	}
	return codec, nil
}

func runCompress() error {
	codec, err := loadCodec()
	if err != nil {
		return err
	}
	records, err := readRecords(*input)
	if err != nil {
		return err
	}
	out, err := os.Create(*output)
	if err != nil {
		return err
	}
	defer out.Close()
	w := &pbc.Writer{Dest: out, Codec: codec}
	for _, r := range records {
		if err := w.WriteRecord(r); err != nil {
			return err
		}
	}
	return out.Close()
}

func runDecompress() error {
	codec, err := loadCodec()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(*input)
	if err != nil {
		return err
	}
	out, err := os.Create(*output)
	if err != nil {
		return err
	}
	defer out.Close()

	r := pbc.NewReader(codec, data)
	var lenBuf [4]byte
	for {
		record, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if *varchar {
			binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(record)))
			if _, err := out.Write(lenBuf[:]); err != nil {
				return err
			}
			if _, err := out.Write(record); err != nil {
				return err
			}
		} else {
			if _, err := out.Write(record); err != nil {
				return err
			}
			if _, err := out.Write([]byte{'\n'}); err != nil {
				return err
			}
		}
	}
	return out.Close()
}
