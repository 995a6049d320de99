package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"flockd/pkg/logger"
	"flockd/pkg/store"
)

// inspect dumps raw keys from a flockd pebble database. Useful when
// debugging index drift or verifying key layout by hand.
func main() {
	var (
		path   string
		prefix string
		values bool
		limit  int
	)
	flag.StringVar(&path, "path", "", "pebble db path")
	flag.StringVar(&prefix, "prefix", "", "key prefix to scan (e.g. post:, follow:, conv:)")
	flag.BoolVar(&values, "values", false, "print values alongside keys")
	flag.IntVar(&limit, "limit", 0, "max keys to print (0 = all)")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}
	logger.Init()

	if err := store.Open(path); err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	keys, err := store.ListKeys(prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scan failed: %v\n", err)
		os.Exit(1)
	}
	n := 0
	for _, k := range keys {
		if limit > 0 && n >= limit {
			break
		}
		if values {
			v, err := store.GetKey(k)
			if err != nil {
				fmt.Fprintf(os.Stderr, "get %s: %v\n", k, err)
				continue
			}
			fmt.Printf("%s\t%s\n", k, strings.TrimSpace(v))
		} else {
			fmt.Println(k)
		}
		n++
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", n)
}
