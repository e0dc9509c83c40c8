// Copyright 2024 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Command bzip2 compresses and decompresses files in the bzip2 format.
// Files may be local, on S3 or a URL.
package main

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh/terminal"

	"github.com/cosnicolaou/libbzip2"
)

var flags struct {
	blockSize  int
	workFactor int
	verbosity  int
	small      bool
	keep       bool
	stdout     bool
	force      bool
	progress   bool
}

func init() {
	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(
			s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})
}

func main() {
	root := &cobra.Command{
		Use:   "bzip2",
		Short: "compress and decompress bzip2 files; files may be local, on S3 or a URL",
	}
	root.PersistentFlags().IntVarP(&flags.verbosity, "verbosity", "v", 0,
		"diagnostic level, 0..4")
	root.PersistentFlags().BoolVarP(&flags.stdout, "stdout", "c", false,
		"write to standard output")
	root.PersistentFlags().BoolVarP(&flags.keep, "keep", "k", false,
		"keep input files")
	root.PersistentFlags().BoolVarP(&flags.force, "force", "f", false,
		"overwrite existing output files")

	compressCmd := &cobra.Command{
		Use:   "compress [file...]",
		Short: "compress files or stdin to .bz2",
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachInput(args, compressOne)
		},
	}
	compressCmd.Flags().IntVarP(&flags.blockSize, "block-size", "b", 9,
		"block size, 1..9 in units of 100k")
	compressCmd.Flags().IntVar(&flags.workFactor, "work-factor", 0,
		"sort effort before the fallback kicks in, 0..250, 0 for the default")

	decompressCmd := &cobra.Command{
		Use:   "decompress [file...]",
		Short: "decompress .bz2 files or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachInput(args, decompressOne)
		},
	}
	decompressCmd.Flags().BoolVarP(&flags.small, "small", "s", false,
		"use the half-memory decompressor")
	decompressCmd.Flags().BoolVar(&flags.progress, "progress", true,
		"display a progress bar when writing to a file")

	testCmd := &cobra.Command{
		Use:   "test [file...]",
		Short: "check the integrity of .bz2 files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachInput(args, testOne)
		},
	}
	testCmd.Flags().BoolVarP(&flags.small, "small", "s", false,
		"use the half-memory decompressor")

	inspectCmd := &cobra.Command{
		Use:   "inspect [file...]",
		Short: "list the block boundaries and CRCs of .bz2 files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return eachInput(args, inspectOne)
		},
	}

	root.AddCommand(compressCmd, decompressCmd, testCmd, inspectCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// eachInput applies fn to each named input, or stdin when none are
// named.
func eachInput(args []string, fn func(ctx context.Context, name string) error) error {
	ctx := context.Background()
	if len(args) == 0 {
		return fn(ctx, "")
	}
	for _, name := range args {
		if err := fn(ctx, name); err != nil {
			return fmt.Errorf("%v: %v", name, err)
		}
	}
	return nil
}

func openInput(ctx context.Context, name string) (io.Reader, int64, func(context.Context) error, error) {
	if name == "" {
		return os.Stdin, -1, func(context.Context) error { return nil }, nil
	}
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		resp, err := http.Get(name)
		if err != nil {
			return nil, 0, nil, err
		}
		return resp.Body, resp.ContentLength, func(context.Context) error {
			return resp.Body.Close()
		}, nil
	}
	info, err := file.Stat(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	f, err := file.Open(ctx, name)
	if err != nil {
		return nil, 0, nil, err
	}
	return f.Reader(ctx), info.Size(), f.Close, nil
}

func createOutput(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	if name == "" || flags.stdout {
		return os.Stdout, func(context.Context) error { return nil }, nil
	}
	if !flags.force {
		if _, err := file.Stat(ctx, name); err == nil {
			return nil, nil, fmt.Errorf("output file %v exists, use --force to overwrite", name)
		}
	}
	f, err := file.Create(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return f.Writer(ctx), f.Close, nil
}

func compressOne(ctx context.Context, name string) error {
	rd, _, inDone, err := openInput(ctx, name)
	if err != nil {
		return err
	}
	defer inDone(ctx) //nolint:errcheck

	outName := ""
	if name != "" && !flags.stdout {
		outName = name + ".bz2"
	}
	wr, outDone, err := createOutput(ctx, outName)
	if err != nil {
		return err
	}

	zw, err := libbzip2.NewWriter(wr,
		libbzip2.BlockSize(flags.blockSize),
		libbzip2.WorkFactor(flags.workFactor),
		libbzip2.WriterVerbosity(flags.verbosity))
	if err != nil {
		return err
	}
	if _, err := io.Copy(zw, rd); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := outDone(ctx); err != nil {
		return err
	}
	return removeInput(ctx, name)
}

func decompressOne(ctx context.Context, name string) error {
	rd, size, inDone, err := openInput(ctx, name)
	if err != nil {
		return err
	}
	defer inDone(ctx) //nolint:errcheck

	outName := ""
	if name != "" && !flags.stdout {
		outName = strings.TrimSuffix(name, ".bz2")
		if outName == name {
			outName = name + ".out"
		}
	}
	wr, outDone, err := createOutput(ctx, outName)
	if err != nil {
		return err
	}

	// Track compressed bytes for the progress bar; decompressed size is
	// unknown until the end.
	if flags.progress && size > 0 && outName != "" && terminal.IsTerminal(int(os.Stdout.Fd())) {
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetBytes64(size),
			progressbar.OptionSetPredictTime(true))
		bar.RenderBlank() //nolint:errcheck
		rd = io.TeeReader(rd, barWriter{bar})
		defer fmt.Println()
	}

	zr, err := libbzip2.NewReader(rd,
		libbzip2.Small(flags.small),
		libbzip2.ReaderVerbosity(flags.verbosity))
	if err != nil {
		return err
	}
	if _, err := io.Copy(wr, zr); err != nil {
		return err
	}
	if err := outDone(ctx); err != nil {
		return err
	}
	return removeInput(ctx, name)
}

type barWriter struct {
	bar *progressbar.ProgressBar
}

func (b barWriter) Write(p []byte) (int, error) {
	b.bar.Add(len(p)) //nolint:errcheck
	return len(p), nil
}

func testOne(ctx context.Context, name string) error {
	rd, _, inDone, err := openInput(ctx, name)
	if err != nil {
		return err
	}
	defer inDone(ctx) //nolint:errcheck

	zr, err := libbzip2.NewReader(rd,
		libbzip2.Small(flags.small),
		libbzip2.ReaderVerbosity(flags.verbosity))
	if err != nil {
		return err
	}
	if _, err := io.Copy(ioutil.Discard, zr); err != nil {
		return fmt.Errorf("integrity check failed: %v", err)
	}
	if name != "" {
		fmt.Printf("%v: ok\n", name)
	}
	return nil
}

func removeInput(ctx context.Context, name string) error {
	if name == "" || flags.keep || flags.stdout {
		return nil
	}
	return file.Remove(ctx, name)
}
