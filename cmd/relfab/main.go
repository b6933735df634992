// Command relfab is a CLI for the entity store and pattern-query
// engine, in the same shape as the teacher's cmd/datalog: flag-parsed,
// with an optional interactive REPL and a verbose/trace mode. It loads
// entities from a JSON file, runs queries against them, and prints a
// colorized result table.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/RelationalFabric/relational-fabric-sub000/bindings"
	"github.com/RelationalFabric/relational-fabric-sub000/persist"
	badgerpersist "github.com/RelationalFabric/relational-fabric-sub000/persist/badger"
	"github.com/RelationalFabric/relational-fabric-sub000/pattern"
	"github.com/RelationalFabric/relational-fabric-sub000/query"
	"github.com/RelationalFabric/relational-fabric-sub000/store"
	"github.com/RelationalFabric/relational-fabric-sub000/trace"
)

func main() {
	var dataPath string
	var persistPath string
	var interactive bool
	var help bool
	var verbose bool
	var queryStr string

	flag.StringVar(&dataPath, "data", "", "JSON file of entities to load at startup")
	flag.StringVar(&persistPath, "persist", "", "BadgerDB path to load/save a session snapshot")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&help, "h", false, "show help")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show store/query trace events)")
	flag.StringVar(&queryStr, "query", "", "run a single JSON-encoded compiled query and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "An entity store and pattern-query engine.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -data seed.json -i              # load entities, interactive mode\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -data seed.json -query '{...}'  # run a single query and exit\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -persist session.db -i          # resume a persisted session\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	var collector *trace.Collector
	if verbose {
		collector = trace.NewCollector(func(e trace.Event) {
			fmt.Fprintf(os.Stderr, "%s %s %v\n", color.CyanString("[trace]"), color.YellowString(e.Name), e.Data)
		})
	}

	idx := store.New(store.Options{Tracer: collector})

	var persistAdaptor *badgerpersist.Adaptor
	if persistPath != "" {
		a, err := badgerpersist.Open(persistPath)
		if err != nil {
			fatalf("failed to open persisted session: %v", err)
		}
		defer a.Close()
		persistAdaptor = a

		snap, err := a.Load()
		if err != nil {
			fatalf("failed to load persisted session: %v", err)
		}
		if snap.TypeByID != nil {
			txLog, err := txLogFromPersist(snap.TxLog)
			if err != nil {
				fatalf("failed to decode persisted tx log: %v", err)
			}
			idx.LoadSnapshot(snap.Entity, snap.Version, snap.TypeByID, snap.BasisT, txLog)
			fmt.Printf("Resumed session at basisT=%d\n", snap.BasisT)
		}
	}

	if dataPath != "" {
		entities, err := loadEntities(dataPath)
		if err != nil {
			fatalf("failed to load %s: %v", dataPath, err)
		}
		if _, err := idx.Add(entities); err != nil {
			fatalf("failed to add entities from %s: %v", dataPath, err)
		}
		fmt.Printf("Loaded %d entities from %s\n", len(entities), dataPath)
	}

	switch {
	case queryStr != "":
		runSingleQuery(idx, queryStr)
	case interactive:
		runInteractive(idx)
	default:
		runDemo(idx)
	}

	if persistAdaptor != nil {
		entityByType, version, typeByID, basisT, txLog := idx.Snapshot()
		snap := persist.Snapshot{
			Entity:   entityByType,
			Version:  version,
			TypeByID: typeByID,
			BasisT:   basisT,
			TxLog:    txLogToPersist(txLog),
		}
		if err := persistAdaptor.Save(snap); err != nil {
			fatalf("failed to save session: %v", err)
		}
		fmt.Printf("Saved session at basisT=%d\n", basisT)
	}
}

// txLogToPersist widens a store.TxReport log to persist.Snapshot's
// backend-agnostic []any so the store package need not be imported by
// persist.
func txLogToPersist(log []store.TxReport) []any {
	out := make([]any, len(log))
	for i, r := range log {
		out[i] = r
	}
	return out
}

// txLogFromPersist narrows persist.Snapshot's []any back to
// []store.TxReport. A snapshot just produced by txLogToPersist holds
// concrete store.TxReport values; one that round-tripped through a
// JSON-encoding Adaptor (e.g. persist/badger) holds the equivalent
// decoded map[string]any shape instead — re-encoding and decoding
// through encoding/json handles both uniformly.
func txLogFromPersist(raw []any) ([]store.TxReport, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode persisted tx log: %w", err)
	}
	var log []store.TxReport
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("failed to decode persisted tx log: %w", err)
	}
	return log, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func loadEntities(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entities []map[string]any
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

// runDemo loads a small built-in dataset and runs one sample query
// against it, mirroring the teacher's runDemo.
func runDemo(idx *store.Index) {
	fmt.Println("=== Entity Store Demo ===")

	fmt.Println("\nAdding demo data...")
	_, err := idx.Add([]map[string]any{
		{"id": "1", "type": "Person", "name": "Alice", "age": 30, "city": "New York"},
		{"id": "2", "type": "Person", "name": "Bob", "age": 25, "city": "Boston"},
		{"id": "3", "type": "Person", "name": "Charlie", "age": 35, "city": "New York"},
	})
	if err != nil {
		fatalf("failed to add demo data: %v", err)
	}

	nameVar := bindings.Var("?name")
	cityVar := bindings.Var("?city")

	where := pattern.Obj(
		pattern.K("type", "Person"),
		pattern.K("name", nameVar),
		pattern.K("city", cityVar),
	)

	q, err := query.Compile(query.Query{
		Return: []query.ReturnTerm{query.ReturnVar{Var: nameVar}, query.ReturnVar{Var: cityVar}},
		Where:  where,
	})
	if err != nil {
		fatalf("failed to compile demo query: %v", err)
	}

	fmt.Println("\n=== Running Query: names and cities ===")
	run := idx.GetQuery("")
	result, err := run(q, nil)
	if err != nil {
		fatalf("query failed: %v", err)
	}
	printTable([]string{"name", "city"}, result)
}

func runSingleQuery(idx *store.Index, queryJSON string) {
	compiled, err := parseCompiledQuery(queryJSON)
	if err != nil {
		fatalf("failed to parse query: %v", err)
	}

	run := idx.GetQuery("")
	result, err := run(compiled, nil)
	if err != nil {
		fatalf("query failed: %v", err)
	}
	printTable(nil, result)
}

func parseCompiledQuery(queryJSON string) (*query.Compiled, error) {
	var v any
	if err := json.Unmarshal([]byte(queryJSON), &v); err != nil {
		return nil, err
	}
	return query.Parse(v, nil)
}

func runInteractive(idx *store.Index) {
	fmt.Println("=== Entity Store Interactive Mode ===")
	fmt.Println("Commands:")
	fmt.Println("  .help           - Show help")
	fmt.Println("  .exit           - Exit")
	fmt.Println("  .add <json>     - Add an entity (JSON object with id/type)")
	fmt.Println("  .remove <id> <type> - Remove an entity")
	fmt.Println("  .query <json>   - Run a serialized compiled query")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == ".exit":
			return
		case line == ".help":
			fmt.Println("Enter .add/.remove/.query commands")
		case strings.HasPrefix(line, ".add "):
			handleAdd(idx, strings.TrimPrefix(line, ".add "))
		case strings.HasPrefix(line, ".remove "):
			handleRemove(idx, strings.TrimPrefix(line, ".remove "))
		case strings.HasPrefix(line, ".query "):
			handleQuery(idx, strings.TrimPrefix(line, ".query "))
		case line == "":
			continue
		default:
			fmt.Println("Unknown command. Use .help for help.")
		}
	}
}

func handleAdd(idx *store.Index, raw string) {
	var entity map[string]any
	if err := json.Unmarshal([]byte(raw), &entity); err != nil {
		fmt.Printf("Parse error: %v\n", err)
		return
	}
	report, err := idx.Add([]map[string]any{entity})
	if err != nil {
		fmt.Printf("Add error: %v\n", err)
		return
	}
	fmt.Printf("Committed at basisT=%d (%d changes)\n", report.BasisT, len(report.TxData))
}

func handleRemove(idx *store.Index, raw string) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		fmt.Println("Expected: .remove <id> <type>")
		return
	}
	report, err := idx.Remove([]map[string]any{{"id": parts[0], "type": parts[1]}})
	if err != nil {
		fmt.Printf("Remove error: %v\n", err)
		return
	}
	fmt.Printf("Committed at basisT=%d (%d cascaded changes)\n", report.BasisT, len(report.TxData))
}

func handleQuery(idx *store.Index, raw string) {
	compiled, err := parseCompiledQuery(raw)
	if err != nil {
		fmt.Printf("Parse error: %v\n", err)
		return
	}
	run := idx.GetQuery("")
	result, err := run(compiled, nil)
	if err != nil {
		fmt.Printf("Execution error: %v\n", err)
		return
	}
	printTable(nil, result)
}

func printTable(columns []string, result query.ResultSet) {
	width := len(columns)
	if width == 0 && len(result.Result) > 0 {
		width = len(result.Result[0])
	}
	if len(columns) == 0 {
		columns = make([]string, width)
		for i := range columns {
			columns[i] = fmt.Sprintf("col%d", i)
		}
	}

	table := tablewriter.NewTable(os.Stdout)
	table.Header(columns)
	for _, row := range result.Result {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprintf("%v", v)
		}
		table.Append(cells)
	}
	table.Render()

	countColor := color.GreenString
	switch {
	case result.Count == 0:
		countColor = color.RedString
	case result.Count >= 100:
		countColor = color.YellowString
	}
	fmt.Printf("_%s rows (of %d total)_\n", countColor("%d", result.Count), result.Size)
}
