// Package main implements shopctl, a small command line client for shopd.
//
// Usage:
//
//	shopctl [-addr http://localhost:8080] [-timeout 5s] <command> [args]
//
// Commands:
//
//	collections              Summarize every collection
//	count <collection>       Count documents
//	find <collection> [k=v]  List documents matching every k=v pair
//	get <collection> <id>    Print one document
//	create <collection> <json>
//	sessions                 Print every stored session
//	sweep                    Remove expired sessions
//
// Values in k=v pairs are read as JSON when they parse, so stocks=5 matches
// the number 5 and name=Apple matches the string "Apple". Use name='"5"' to
// match the string "5".
//
// The server address can also be set with SHOPD_ADDR.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dreamware/shopstore/internal/client"
	"github.com/dreamware/shopstore/internal/collection"
	"github.com/goccy/go-json"
	"github.com/united-manufacturing-hub/umh-utils/env"
)

var errUsage = errors.New("usage")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "shopctl: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	defaultAddr, _ := env.GetAsString("SHOPD_ADDR", false, "http://localhost:8080") //nolint:errcheck

	fs := flag.NewFlagSet("shopctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", defaultAddr, "shopd address")
	timeout := fs.Duration("timeout", 5*time.Second, "request timeout")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: shopctl [flags] collections|count|find|get|create|sessions|sweep [args]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	c := client.New(*addr)
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	var out any
	var err error
	switch cmd {
	case "collections":
		out, err = c.Collections(ctx)
	case "count":
		if len(rest) != 1 {
			return usageError(stderr, "count <collection>")
		}
		var n int
		n, err = c.Count(ctx, rest[0])
		out = map[string]int{"count": n}
	case "find":
		if len(rest) < 1 {
			return usageError(stderr, "find <collection> [key=value ...]")
		}
		var pred collection.Predicate
		if pred, err = parsePredicate(rest[1:]); err != nil {
			return err
		}
		out, err = c.Find(ctx, rest[0], pred)
	case "get":
		if len(rest) != 2 {
			return usageError(stderr, "get <collection> <id>")
		}
		var doc collection.Document
		doc, err = c.Get(ctx, rest[0], rest[1])
		if err == nil && doc == nil {
			return fmt.Errorf("%s/%s not found", rest[0], rest[1])
		}
		out = doc
	case "create":
		if len(rest) != 2 {
			return usageError(stderr, "create <collection> <json>")
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(rest[1]), &doc); err != nil {
			return fmt.Errorf("document: %w", err)
		}
		out, err = c.Create(ctx, rest[0], doc)
	case "sessions":
		out, err = c.Sessions(ctx)
	case "sweep":
		var n int
		n, err = c.SweepSessions(ctx)
		out = map[string]int{"active": n}
	default:
		fs.Usage()
		return errUsage
	}
	if err != nil {
		return err
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, string(b))
	return err
}

func usageError(w io.Writer, usage string) error {
	fmt.Fprintf(w, "usage: shopctl %s\n", usage)
	return errUsage
}

// parsePredicate turns key=value pairs into a predicate
func parsePredicate(pairs []string) (collection.Predicate, error) {
	pred := collection.Predicate{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", pair)
		}
		var parsed any
		if err := json.Unmarshal([]byte(v), &parsed); err != nil {
			parsed = v
		}
		pred[k] = parsed
	}
	return pred, nil
}
