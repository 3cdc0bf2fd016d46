// Command githier is a thin command-line entrypoint over
// internal/engine. Argument parsing deliberately stays on the standard
// library's flag package rather than a framework: the command surface
// is the contract this binary exposes, not how it is typed.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/kmrtdsii/githierarchy/internal/config"
	"github.com/kmrtdsii/githierarchy/internal/engine"
	"github.com/kmrtdsii/githierarchy/internal/logging"
	"github.com/kmrtdsii/githierarchy/internal/refstore"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "githier:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: githier [-config path] <command> [args...]")
	}

	fs := flag.NewFlagSet("githier", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a githierarchy.toml config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: githier [-config path] <command> [args...]")
	}
	command, rest := rest[0], rest[1:]

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	log := logging.Component(logging.New(cfg.LogLevel), "cmd")

	repo, err := gogit.PlainOpen(cfg.RepositoryPath)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", cfg.RepositoryPath, err)
	}
	store := refstore.Open(repo, log)
	eng := engine.New(store, cfg, log)

	switch command {
	case "define-segment":
		return cmdDefineSegment(eng, store, rest)
	case "define-sum":
		return cmdDefineSum(eng, store, rest)
	case "delete":
		if len(rest) != 1 {
			return fmt.Errorf("usage: githier delete <name>")
		}
		return eng.Delete(rest[0])
	case "describe":
		return cmdDescribe(eng, rest)
	case "list-segments":
		return cmdListDescriptions(eng.ListSegments)
	case "list-sums":
		return cmdListDescriptions(eng.ListSums)
	case "downstream":
		if len(rest) == 0 {
			return fmt.Errorf("usage: githier downstream <name>")
		}
		return cmdList(func() ([]string, error) { return eng.Downstream(rest[0]) }, rest)
	case "walk":
		return cmdWalk(eng, rest)
	case "dry-run":
		return cmdDryRun(eng, rest)
	case "rebase":
		return cmdRebase(eng, rest)
	case "resume":
		return cmdResume(eng)
	case "clone":
		return cmdClone(eng, rest)
	case "replace":
		return cmdReplace(eng, rest)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// cmdDefineSegment accepts start/head as either a reference name or a
// hex OID; start defaults to the base's current commit and head to
// start when omitted.
func cmdDefineSegment(eng *engine.Engine, store *refstore.Store, args []string) error {
	if len(args) < 2 || len(args) > 4 {
		return fmt.Errorf("usage: githier define-segment <name> <base> [start] [head]")
	}
	name, base := args[0], args[1]
	start, err := resolveOID(store, base)
	if err != nil {
		return err
	}
	if len(args) >= 3 {
		if start, err = resolveOID(store, args[2]); err != nil {
			return err
		}
	}
	head := start
	if len(args) == 4 {
		if head, err = resolveOID(store, args[3]); err != nil {
			return err
		}
	}
	return eng.DefineSegment(name, base, start, head)
}

func cmdDefineSum(eng *engine.Engine, store *refstore.Store, args []string) error {
	fs := flag.NewFlagSet("define-sum", flag.ContinueOnError)
	hintArg := fs.String("hint", "", "commit the placeholder heads/N points at until the first re-merge")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: githier define-sum [-hint commit] <name> <summand>...")
	}
	var hint *refstore.OID
	if *hintArg != "" {
		oid, err := resolveOID(store, *hintArg)
		if err != nil {
			return err
		}
		hint = &oid
	}
	return eng.DefineSum(rest[0], rest[1:], hint)
}

func cmdDescribe(eng *engine.Engine, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: githier describe <name>")
	}
	d, err := eng.Describe(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: kind=%s up-to-date=%t\n", d.Name, d.Kind, d.UpToDate)
	return nil
}

func cmdList(list func() ([]string, error), args []string) error {
	names, err := list()
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

// cmdListDescriptions backs list-segments/list-sums, printing a
// "[stale]" marker after any entry that is not up to date.
func cmdListDescriptions(list func() ([]*engine.Description, error)) error {
	descriptions, err := list()
	if err != nil {
		return err
	}
	for _, d := range descriptions {
		if d.UpToDate {
			fmt.Println(d.Name)
		} else {
			fmt.Printf("%s [stale]\n", d.Name)
		}
	}
	return nil
}

func cmdWalk(eng *engine.Engine, args []string) error {
	root := "HEAD"
	if len(args) > 0 {
		root = args[0]
	}
	order, err := eng.Walk(root)
	if err != nil {
		return err
	}
	for _, n := range order {
		fmt.Println(n)
	}
	return nil
}

func cmdDryRun(eng *engine.Engine, args []string) error {
	root := "HEAD"
	if len(args) > 0 {
		root = args[0]
	}
	order, err := eng.DryRun(root, nil)
	if err != nil {
		return err
	}
	for _, n := range order {
		fmt.Println(n)
	}
	return nil
}

func cmdRebase(eng *engine.Engine, args []string) error {
	fs := flag.NewFlagSet("rebase", flag.ContinueOnError)
	fetch := fs.Bool("fetch", false, "fetch plain-ref leaves before rebasing")
	ignoreList := fs.String("ignore", "", "comma-separated full reference names to skip preflight for")
	skipList := fs.String("skip", "", "comma-separated full reference names to skip rebasing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	root := "HEAD"
	if rest := fs.Args(); len(rest) > 0 {
		root = rest[0]
	}
	report, err := eng.Rebase(root, *fetch, toSet(*ignoreList), toSet(*skipList))
	if report != nil {
		for _, name := range report.Order {
			fmt.Printf("%s: %s\n", name, report.Results[name])
		}
	}
	return err
}

func cmdResume(eng *engine.Engine) error {
	name, result, err := eng.Resume()
	if name != "" {
		fmt.Printf("%s: %s\n", name, result)
	}
	return err
}

// cmdClone renames with a find/replace over each node's name, the
// simplest transform expressible on a command line; callers needing an
// arbitrary rename function use internal/engine directly.
func cmdClone(eng *engine.Engine, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: githier clone <root> <find> <replace>")
	}
	root, find, repl := args[0], args[1], args[2]
	table, err := eng.Clone(root, func(name string) string {
		return strings.ReplaceAll(name, find, repl)
	})
	if err != nil {
		return err
	}
	for old, clone := range table {
		fmt.Printf("%s -> %s\n", old, clone)
	}
	return nil
}

func cmdReplace(eng *engine.Engine, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: githier replace <root> <old=new>...")
	}
	mapping := make(map[string]string, len(args)-1)
	for _, pair := range args[1:] {
		old, nw, ok := strings.Cut(pair, "=")
		if !ok || old == "" || nw == "" {
			return fmt.Errorf("replace: malformed mapping %q, want old=new", pair)
		}
		mapping[old] = nw
	}
	return eng.Replace(args[0], mapping)
}

// resolveOID accepts either a reference name or a full hex OID.
func resolveOID(store *refstore.Store, arg string) (refstore.OID, error) {
	if ref, err := store.Resolve(arg); err == nil {
		return ref.Hash(), nil
	}
	if len(arg) == 40 {
		if _, err := hex.DecodeString(arg); err == nil {
			return plumbing.NewHash(arg), nil
		}
	}
	return refstore.ZeroOID, fmt.Errorf("cannot resolve %q as a reference or commit id", arg)
}

func toSet(csv string) map[string]bool {
	out := map[string]bool{}
	if csv == "" {
		return out
	}
	for _, part := range strings.Split(csv, ",") {
		out[strings.TrimSpace(part)] = true
	}
	return out
}
