// Command replay runs a recorded patch stream through the construction
// pipeline offline: reframer, codec, reducer. It is the debugging tool for
// "the tree came out wrong": replay the raw stream a frontend logged, at any
// chunk size, and inspect the result without a network in the loop.
//
// With --verify it replays the same stream at every chunk size from 1 to
// --chunk and confirms all of them produce the same tree, which is the
// property a transport is allowed to rely on.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/youruser/wireframe/internal/patch"
	"github.com/youruser/wireframe/internal/stream"
	"github.com/youruser/wireframe/internal/tree"
)

func main() {
	file := pflag.StringP("file", "f", "", "recorded patch stream to replay (default stdin)")
	baseFile := pflag.StringP("base", "b", "", "JSON file holding the base tree for a delta stream")
	chunkSize := pflag.IntP("chunk", "c", 4096, "chunk size to replay at")
	verify := pflag.Bool("verify", false, "replay at every chunk size up to --chunk and compare results")
	quiet := pflag.BoolP("quiet", "q", false, "suppress the final tree dump")
	pflag.Parse()

	if *chunkSize < 1 {
		fatalf("chunk size must be at least 1")
	}

	raw, err := readStream(*file)
	if err != nil {
		fatalf("read stream: %v", err)
	}

	base := tree.New()
	if *baseFile != "" {
		data, err := os.ReadFile(*baseFile)
		if err != nil {
			fatalf("read base tree: %v", err)
		}
		if err := json.Unmarshal(data, base); err != nil {
			fatalf("parse base tree: %v", err)
		}
	}

	final, applied, skipped := replay(raw, base, *chunkSize)

	if *verify {
		if err := verifyChunkInvariance(raw, base, final, *chunkSize); err != nil {
			fatalf("%v", err)
		}
		fmt.Fprintf(os.Stderr, "verified: identical result at chunk sizes 1..%d\n", *chunkSize)
	}

	fmt.Fprintf(os.Stderr, "replayed %d operation(s), skipped %d line(s), %d element(s)\n",
		applied, skipped, len(final.Elements))

	if !*quiet {
		out, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			fatalf("marshal tree: %v", err)
		}
		fmt.Println(string(out))
	}
}

func readStream(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// replay feeds raw through the reframer in chunks of size chunkSize and folds
// every parseable line into a copy of base.
func replay(raw string, base *tree.Tree, chunkSize int) (*tree.Tree, int, int) {
	cur := base.Clone()
	var rf stream.Reframer
	var applied, skipped int

	fold := func(line string) {
		op, err := patch.ParseLine(line)
		if err != nil {
			skipped++
			fmt.Fprintf(os.Stderr, "skipped: %v\n", err)
			return
		}
		if op == nil {
			return
		}
		cur = tree.Apply(cur, *op)
		applied++
	}

	for start := 0; start < len(raw); start += chunkSize {
		end := start + chunkSize
		if end > len(raw) {
			end = len(raw)
		}
		for _, line := range rf.Feed(raw[start:end]) {
			fold(line)
		}
	}
	if tail, ok := rf.Flush(); ok {
		fold(tail)
	}

	return cur, applied, skipped
}

// verifyChunkInvariance replays raw at every chunk size from 1 to maxChunk
// and fails on the first size whose result differs from want.
func verifyChunkInvariance(raw string, base, want *tree.Tree, maxChunk int) error {
	for size := 1; size <= maxChunk; size++ {
		got, _, _ := replay(raw, base, size)
		if diff := cmp.Diff(want, got); diff != "" {
			return fmt.Errorf("chunk size %d produced a different tree (-want +got):\n%s", size, diff)
		}
	}
	return nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "replay: "+format+"\n", args...)
	os.Exit(1)
}
