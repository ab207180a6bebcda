// SOL25 CLI - the main entry point for interpreting SOL25 AST programs.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/sol25/manifest"
	"github.com/chazu/sol25/pkg/ast"
	"github.com/chazu/sol25/vm"
)

func main() {
	sourcePath := flag.String("source", "", "Program AST file (XML); defaults to the manifest entry, then stdin")
	verbosity := flag.Int("v", 0, "Log verbosity (0 quiet, 1 info, 2 debug)")
	useCache := flag.Bool("cache", false, "Read and write a CBOR sidecar cache next to the XML source")
	dump := flag.Bool("dump", false, "Print per-class object allocation counts to stderr after the run")
	noManifest := flag.Bool("no-manifest", false, "Skip loading sol25.toml")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sol25 [options] [program.xml]\n\n")
		fmt.Fprintf(os.Stderr, "Interprets a SOL25 program supplied as an XML AST document.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sol25 program.xml          # Run a program\n")
		fmt.Fprintf(os.Stderr, "  sol25 < program.xml        # Read the AST from stdin\n")
		fmt.Fprintf(os.Stderr, "  sol25 -cache program.xml   # Reuse the parsed AST across runs\n")
	}
	flag.Parse()

	s := settings{
		path:      *sourcePath,
		verbosity: *verbosity,
		cache:     *useCache,
		dump:      *dump,
	}
	if s.path == "" && flag.NArg() > 0 {
		s.path = flag.Arg(0)
	}

	if !*noManifest {
		m, err := manifest.FindAndLoad(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error loading sol25.toml: %v\n", err)
		} else {
			s.applyManifest(m)
		}
	}

	commonlog.Configure(s.verbosity, nil)
	log := commonlog.GetLogger("sol25.cli")

	source, err := readSource(s.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	prog, err := loadProgram(s.path, source, s.cache, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}

	interp := vm.NewInterpreter(os.Stdin, os.Stdout)
	if err := interp.LoadProgram(prog); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(vm.ExitCode(err))
	}
	if err := interp.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(vm.ExitCode(err))
	}
	if s.dump {
		interp.Objects.Dump(os.Stderr)
	}
}

// settings holds the effective run configuration once flags and the
// manifest are merged. Flags win; the manifest fills in what they left
// unset.
type settings struct {
	path      string
	verbosity int
	cache     bool
	dump      bool
}

// applyManifest merges manifest values into unset settings. A nil manifest
// (none found) leaves everything untouched.
func (s *settings) applyManifest(m *manifest.Manifest) {
	if m == nil {
		return
	}
	if s.path == "" {
		s.path = m.EntryPath()
	}
	if s.verbosity == 0 {
		s.verbosity = m.Run.Verbosity
	}
	s.cache = s.cache || m.Run.Cache
	s.dump = s.dump || m.Run.Dump
}

// readSource reads the AST document from a file, or stdin when no path is
// configured.
func readSource(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// loadProgram decodes the XML document, going through the CBOR sidecar
// cache when enabled. A stale or unreadable cache falls back to the XML
// decode; a fresh decode refreshes the cache.
func loadProgram(path string, source []byte, useCache bool, log commonlog.Logger) (*ast.Program, error) {
	cachePath := ""
	if useCache && path != "" {
		cachePath = ast.CachePath(path)
		if prog, ok := ast.LoadCache(cachePath, source); ok {
			log.Infof("loaded program from cache %s", cachePath)
			return prog, nil
		}
	}

	prog, err := ast.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, err
	}
	if cachePath != "" {
		if err := ast.WriteCache(cachePath, source, prog); err != nil {
			log.Errorf("cannot write cache %s: %v", cachePath, err)
		} else {
			log.Infof("wrote cache %s", cachePath)
		}
	}
	return prog, nil
}

// exitCodeFor maps AST loading failures: every structural violation is a
// type error.
func exitCodeFor(err error) int {
	if errors.Is(err, ast.ErrMalformed) {
		return int(vm.ErrType)
	}
	return vm.ExitCode(err)
}
