package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/mattn/go-isatty"

	"github.com/jsonpath-go/jsonpath"
)

const name = "jsonpath"

const version = "0.1.0"

var revision = "HEAD"

const (
	exitCodeOK = iota
	exitCodeErr
	exitCodeFlagParseErr
	exitCodeCompileErr
	exitCodeNoMatchErr
)

// Run executes the command line and returns its exit code.
func Run() int {
	return (&cli{
		inStream:  os.Stdin,
		outStream: os.Stdout,
		errStream: os.Stderr,
	}).run(os.Args[1:])
}

type cli struct {
	inStream  io.Reader
	outStream io.Writer
	errStream io.Writer
}

type flagOpts struct {
	version  bool
	yaml     bool
	vars     string
	tz       bool
	silent   bool
	first    bool
	exists   bool
	match    bool
	array    bool
	compact  bool
	tab      bool
	indent   int
	color    bool
	noColor  bool
}

func (cli *cli) run(args []string) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.errStream)
	fs.Usage = func() {
		fs.SetOutput(cli.outStream)
		fmt.Fprintf(cli.outStream, `%[1]s - SQL/JSON path processor

Version: %s (rev: %s/%s)

Synopsis:
    %% echo '{"foo": [1, 2, 3]}' | %[1]s '$.foo[*] ? (@ > 1)'

Options:
`, name, version, revision, runtime.Version())
		fs.PrintDefaults()
	}
	var opts flagOpts
	fs.BoolVar(&opts.version, "v", false, "print version")
	fs.BoolVar(&opts.yaml, "yaml", false, "read input as YAML")
	fs.StringVar(&opts.vars, "vars", "", "JSON object of variables for $name references")
	fs.BoolVar(&opts.tz, "tz", false, "allow timezone-sensitive datetime conversions")
	fs.BoolVar(&opts.silent, "silent", false, "suppress suppressible evaluation errors")
	fs.BoolVar(&opts.first, "first", false, "print only the first result")
	fs.BoolVar(&opts.exists, "exists", false, "print whether the path matches anything")
	fs.BoolVar(&opts.match, "match", false, "evaluate the path as a predicate check")
	fs.BoolVar(&opts.array, "array", false, "wrap the results in an array")
	fs.BoolVar(&opts.compact, "c", false, "compact output")
	fs.BoolVar(&opts.tab, "tab", false, "use tabs for indentation")
	fs.IntVar(&opts.indent, "indent", 2, "number of spaces for indentation")
	fs.BoolVar(&opts.color, "C", false, "always color output")
	fs.BoolVar(&opts.noColor, "M", false, "never color output")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return exitCodeOK
		}
		return exitCodeFlagParseErr
	}
	if opts.version {
		fmt.Fprintf(cli.outStream, "%s %s (rev: %s/%s)\n", name, version, revision, runtime.Version())
		return exitCodeOK
	}

	args = fs.Args()
	if len(args) == 0 {
		fmt.Fprintf(cli.errStream, "%s: path expression is required\n", name)
		return exitCodeErr
	}
	src := args[0]
	path, err := jsonpath.Parse(src)
	if err != nil {
		fmt.Fprintf(cli.errStream, "%s: %s\n", name, (&queryParseError{src, err}).Error())
		return exitCodeCompileErr
	}

	input := cli.inStream
	if len(args) > 1 {
		f, err := os.Open(args[1])
		if err != nil {
			fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
			return exitCodeErr
		}
		defer f.Close()
		input = f
	}
	doc, err := cli.readDocument(input, opts.yaml)
	if err != nil {
		fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
		return exitCodeErr
	}

	execOpts, err := buildExecOptions(opts)
	if err != nil {
		fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
		return exitCodeErr
	}

	colorize := opts.color
	if !opts.color && !opts.noColor {
		if f, ok := cli.outStream.(*os.File); ok {
			colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	indent := opts.indent
	if opts.compact {
		indent = 0
	}
	enc := newEncoder(colorize, opts.tab, indent)

	ctx := context.Background()
	switch {
	case opts.exists:
		ok, err := path.Exists(ctx, doc, execOpts...)
		if err != nil {
			fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
			return exitCodeErr
		}
		fmt.Fprintln(cli.outStream, ok)
		if !ok {
			return exitCodeNoMatchErr
		}
		return exitCodeOK
	case opts.match:
		ok, err := path.Match(ctx, doc, execOpts...)
		if err != nil {
			fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
			return exitCodeErr
		}
		fmt.Fprintln(cli.outStream, ok)
		return exitCodeOK
	case opts.first:
		v, err := path.QueryFirst(ctx, doc, execOpts...)
		if err != nil {
			fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
			return exitCodeErr
		}
		if v == nil {
			return exitCodeNoMatchErr
		}
		return cli.print(enc, v.Interface())
	case opts.array:
		v, err := path.QueryArray(ctx, doc, execOpts...)
		if err != nil {
			fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
			return exitCodeErr
		}
		return cli.print(enc, v.Interface())
	default:
		vs, err := path.Query(ctx, doc, execOpts...)
		if err != nil {
			fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
			return exitCodeErr
		}
		for _, v := range vs {
			if code := cli.print(enc, v.Interface()); code != exitCodeOK {
				return code
			}
		}
		return exitCodeOK
	}
}

func buildExecOptions(opts flagOpts) ([]jsonpath.Option, error) {
	var execOpts []jsonpath.Option
	if opts.vars != "" {
		var vars map[string]any
		if err := json.Unmarshal([]byte(opts.vars), &vars); err != nil {
			return nil, fmt.Errorf("invalid variables: %w", err)
		}
		execOpts = append(execOpts, jsonpath.WithVars(vars))
	}
	if opts.tz {
		execOpts = append(execOpts, jsonpath.WithTZ())
	}
	if opts.silent {
		execOpts = append(execOpts, jsonpath.WithSilent())
	}
	return execOpts, nil
}

func (cli *cli) readDocument(r io.Reader, asYAML bool) (any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if asYAML {
		return decodeYAML(data)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, (&jsonParseError{string(data), err}).toError()
	}
	return v, nil
}

func (cli *cli) print(enc *encoder, v any) int {
	if err := enc.marshal(v, cli.outStream); err != nil {
		fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
		return exitCodeErr
	}
	if _, err := io.WriteString(cli.outStream, "\n"); err != nil {
		fmt.Fprintf(cli.errStream, "%s: %s\n", name, err)
		return exitCodeErr
	}
	return exitCodeOK
}
