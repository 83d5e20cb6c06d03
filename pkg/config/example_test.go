package config_test

import (
	"fmt"
	"log"

	"github.com/ajitpratap0/arraystore/pkg/config"
)

// ExampleDefaultCreateOptions shows the options used when nothing is set.
func ExampleDefaultCreateOptions() {
	opts := config.DefaultCreateOptions()

	fmt.Printf("Chunked: %t\n", opts.WriteChunked)
	fmt.Printf("Goal NNZ: %d\n", opts.GoalChunkNNZ)
	fmt.Printf("Cap: %d\n", opts.RemoteCapNBytes)
	fmt.Printf("Fragments: %s/%s\n", opts.FragmentFormat, opts.FragmentCompression)

	// Output:
	// Chunked: true
	// Goal NNZ: 100000000
	// Cap: 0
	// Fragments: arrow/zstd
}

// ExampleNewCreateOptions builds options from a map, as a caller passing
// keyword settings would.
func ExampleNewCreateOptions() {
	opts, err := config.NewCreateOptions(map[string]any{
		"goal_chunk_nnz":    10_000,
		"remote_cap_nbytes": 100_000,
	})
	if err != nil {
		log.Fatalf("Invalid options: %v", err)
	}
	fmt.Println(opts.GoalChunkNNZ, opts.RemoteCapNBytes, opts.WriteChunked)

	_, err = config.NewCreateOptions(map[string]any{"goal_chunk_nz": 10})
	fmt.Println(err != nil)

	// Output:
	// 10000 100000 true
	// true
}

// ExampleParse loads a configuration document with environment variable
// substitution.
func ExampleParse() {
	doc := []byte(`
create:
  write_chunked: false
storage:
  backend: file
  root: /var/lib/arraystore
`)
	cfg := config.New()
	if err := config.Parse(doc, cfg); err != nil {
		log.Fatal(err)
	}
	fmt.Println(cfg.Create.WriteChunked, cfg.Storage.Kind, cfg.Storage.Root)

	// Output:
	// false file /var/lib/arraystore
}
