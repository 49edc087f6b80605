// composer is the CLI surface described in spec §6.5: read a composition AST
// from a file, optionally lower it to a target combinator set, and print
// either the lowered/labeled AST or its encoded wire payload.
//
// Grounded on original_source/src/composer/__main__.py's argparse-based CLI
// (file argument, --lower/--encode/--version flags); the deploy-related
// flags (--deploy/--apihost/--auth/--insecure) are out of scope here since
// deployment is cmd/conductor-host's concern, not the CLI's (spec §6.5:
// "out of scope except for these flags the core honors").
//
// No library in the example corpus offers a CLI flag parser beyond the
// standard one (the teacher's other cmd/ binaries are long-running servers
// with no flags at all), so this is one of the few places the ambient stack
// falls back to the standard library — see DESIGN.md.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/lyzr/composer/internal/ast"
	"github.com/lyzr/composer/internal/encode"
	"github.com/lyzr/composer/internal/label"
	"github.com/lyzr/composer/internal/lower"
)

const version = "1.0.0"

func main() {
	var (
		lowerFlag    string
		lowerSet     bool
		encodeFlag   bool
		astFlag      bool
		versionFlag  bool
	)

	flag.StringVar(&lowerFlag, "lower", "", `lower to primitive combinators, or a specific composer version (empty string and flag omitted are distinct: omitted means "don't lower")`)
	flag.BoolVar(&encodeFlag, "encode", false, "emit the encoded conductor action payload instead of the bare AST")
	flag.BoolVar(&astFlag, "ast", false, "emit the labeled AST without lowering")
	flag.BoolVar(&versionFlag, "version", false, "print the composer version")
	flag.Parse()

	if versionFlag {
		fmt.Println(version)
		return
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "lower" {
			lowerSet = true
		}
	})

	args := flag.Args()
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: composer [flags] composition.json")
		os.Exit(2)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var root ast.Node
	if err := json.Unmarshal(data, &root); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid composition: %v\n", err)
		os.Exit(1)
	}
	if root.Name == "" {
		root.Name = "anonymous"
	}

	if err := run(&root, lowerSet, encodeFlag, astFlag); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(root *ast.Node, lowerRequested, doEncode, doAST bool) error {
	if doEncode {
		out, err := encode.Encode(root, targetSet(lowerRequested))
		if err != nil {
			return err
		}
		last := out.Actions[len(out.Actions)-1]
		fmt.Println(last.Action.Exec.Code)
		return nil
	}

	if doAST {
		labeled := label.Label(root)
		return printJSON(labeled)
	}

	if !lowerRequested {
		return printJSON(root)
	}

	lowered, err := lower.Lower(root, targetSet(lowerRequested))
	if err != nil {
		return err
	}
	return printJSON(lowered)
}

// targetSet is nil when --lower is absent and an empty set otherwise; both
// mean "lower to the bare primitive set", whatever version --lower names:
// this module carries no version-specific
// combinator sets the way original_source's versioned `conductor.js`
// bundles did (spec Non-goal: no multi-version compatibility shims).
func targetSet(lowerRequested bool) map[ast.Type]bool {
	if !lowerRequested {
		return nil
	}
	return map[ast.Type]bool{}
}

func printJSON(n *ast.Node) error {
	out, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
