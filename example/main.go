package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	articlestore "github.com/yonwoo9/go-articlestore"
)

func main() {
	flags := pflag.NewFlagSet("articles", pflag.ContinueOnError)
	configPath := flags.String("config", "", "YAML configuration file")
	dbPath := flags.String("db", "", "database file (overrides config)")
	bodiesDir := flags.String("bodies", "", "article bodies directory (overrides config)")
	verbose := flags.BoolP("verbose", "v", false, "debug logging")
	flags.SetInterspersed(false)
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	args := flags.Args()
	if len(args) == 0 {
		flags.Usage()
		os.Exit(2)
	}

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	opts := []articlestore.ConfOption{articlestore.WithLogger(logger)}
	if *configPath != "" {
		config, err := articlestore.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config error:", err)
			os.Exit(1)
		}
		opts = append(opts, articlestore.FromConfig(config), articlestore.WithLogger(logger))
	}
	if *dbPath != "" {
		opts = append(opts, articlestore.DatabasePath(*dbPath))
	}
	if *bodiesDir != "" {
		opts = append(opts, articlestore.BodiesDir(*bodiesDir))
	}

	if args[0] == "verify" {
		os.Exit(runVerify(args[1:]))
	}

	store, err := articlestore.Open(opts...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open error:", err)
		os.Exit(1)
	}

	for _, skipped := range store.LoadReport() {
		fmt.Fprintf(os.Stderr, "warning: skipped database %v\n", &skipped)
	}

	code := run(store, args[0], args[1:])
	store.Close()
	os.Exit(code)
}

const usage = `Usage: articles [flags] <command> [args]

Commands:
  add <title> <authors> <year> <file>
  update <digest> [--authors A] [--year Y]
  delete <digest>
  get <digest>
  body <digest>
  author <authors>
  year <year>
  list [--by title|author]
  stats
  sweep
  snapshot <dir>
  verify <dir>

Flags:
`

func run(store *articlestore.Store, cmd string, args []string) int {
	switch cmd {
	case "add":
		if len(args) != 4 {
			return fail("usage: add <title> <authors> <year> <file>")
		}
		title, authors := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
		if title == "" || authors == "" {
			return fail("title and authors must not be empty")
		}
		year, err := strconv.Atoi(args[2])
		if err != nil {
			return fail("year must be an integer")
		}
		r, err := store.AddFile(title, authors, year, args[3])
		if code := report(err); code != 0 {
			return code
		}
		fmt.Println(r.Digest)

	case "update":
		fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
		authors := fs.String("authors", "", "new authors")
		year := fs.Int("year", 0, "new year")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return fail("usage: update <digest> [--authors A] [--year Y]")
		}
		var fields articlestore.UpdateFields
		if fs.Changed("authors") {
			fields.Authors = authors
		}
		if fs.Changed("year") {
			fields.Year = year
		}
		_, err := store.Update(fs.Arg(0), fields)
		return report(err)

	case "delete":
		if len(args) != 1 {
			return fail("usage: delete <digest>")
		}
		return report(store.Delete(args[0]))

	case "get":
		if len(args) != 1 {
			return fail("usage: get <digest>")
		}
		r, err := store.Get(args[0])
		if code := report(err); code != 0 {
			return code
		}
		printRecords([]articlestore.Record{r})

	case "body":
		if len(args) != 1 {
			return fail("usage: body <digest>")
		}
		body, err := store.ReadBody(args[0])
		if code := report(err); code != 0 {
			return code
		}
		os.Stdout.Write(body)

	case "author":
		if len(args) != 1 {
			return fail("usage: author <authors>")
		}
		printRecords(store.FindByAuthor(args[0]))

	case "year":
		if len(args) != 1 {
			return fail("usage: year <year>")
		}
		year, err := strconv.Atoi(args[0])
		if err != nil {
			return fail("year must be an integer")
		}
		printRecords(store.FindByYear(year))

	case "list":
		fs := pflag.NewFlagSet("list", pflag.ContinueOnError)
		by := fs.String("by", "title", "sort order: title or author")
		if err := fs.Parse(args); err != nil {
			return fail("usage: list [--by title|author]")
		}
		switch *by {
		case "title":
			printRecords(store.ListByTitle())
		case "author":
			printRecords(store.ListByAuthor())
		default:
			return fail("--by must be title or author")
		}

	case "stats":
		st := store.Stats()
		fmt.Printf("records: %d\nbuckets: %d\nload factor: %.2f\nlongest bucket: %d\nempty buckets: %d\n",
			st.Count, st.Capacity, st.LoadFactor, st.LongestBucket, st.EmptyBuckets)

	case "sweep":
		result, err := store.Sweep()
		if code := report(err); code != 0 {
			return code
		}
		for _, name := range result.Removed {
			fmt.Println("removed", name)
		}
		for _, digest := range result.Missing {
			fmt.Println("missing body", digest)
		}

	case "snapshot":
		if len(args) != 1 {
			return fail("usage: snapshot <dir>")
		}
		manifest, err := store.Snapshot(args[0])
		if code := report(err); code != 0 {
			return code
		}
		fmt.Printf("snapshot %s: %d articles\n", manifest.ID, len(manifest.Entries))

	default:
		return fail("unknown command: " + cmd)
	}
	return 0
}

func runVerify(args []string) int {
	if len(args) != 1 {
		return fail("usage: verify <dir>")
	}
	manifest, err := articlestore.VerifySnapshot(args[0])
	if code := report(err); code != 0 {
		return code
	}
	fmt.Printf("snapshot %s: %d articles ok\n", manifest.ID, len(manifest.Entries))
	return 0
}

func report(err error) int {
	ok, message := articlestore.Outcome(err)
	if !ok {
		fmt.Fprintln(os.Stderr, "error:", message)
		return 1
	}
	return 0
}

func fail(message string) int {
	fmt.Fprintln(os.Stderr, message)
	return 2
}

func printRecords(records []articlestore.Record) {
	for _, r := range records {
		fmt.Printf("%s\t%s\t%s\t%d\n", r.Digest, r.Title, r.Authors, r.Year)
	}
}
