// Command captchactl issues and checks challenges locally, without an HTTP
// server, for debugging configurations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	libcaptcha "github.com/MelihcanSimsek/CaptchaGenerator/lib"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/token"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"sigs.k8s.io/yaml"
)

var (
	configFname  = flag.String("config-fname", "", "full path to the challenge configuration file (defaults to the built-in configuration)")
	hashSecret   = flag.String("hash-secret", "", "secret mixed into answer hashes, must match the server to verify its tokens")
	outputFormat = flag.String("format", "yaml", "output format: yaml or json")
	slogLevel    = flag.String("slog-level", "WARN", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	slogFormat   = flag.String("slog-format", "json", "log output format, json or text")
	tokenSecret  = flag.String("token-secret", "", "secret used to sign challenge tokens, must match the server to verify its tokens")
	helpFlag     = flag.Bool("help", false, "show help")
)

var ErrNoSecret = errors.New("captchactl: token-secret and hash-secret are required")

// globals are the flags shared by every subcommand.
type globals struct {
	ConfigFname string
	TokenSecret string
	HashSecret  string
	Format      string
}

func (g globals) config(ctx context.Context) (*policy.ParsedConfig, error) {
	return libcaptcha.LoadConfigOrDefault(ctx, g.ConfigFname)
}

func (g globals) tokens(pc *policy.ParsedConfig) (*token.Binder, *token.Verifier, error) {
	if g.TokenSecret == "" || g.HashSecret == "" {
		return nil, nil, ErrNoSecret
	}

	h, err := token.NewSaltedSHA256([]byte(g.HashSecret))
	if err != nil {
		return nil, nil, err
	}

	j, err := token.NewJWT(pc.Algorithm, []byte(g.TokenSecret))
	if err != nil {
		return nil, nil, err
	}

	return &token.Binder{Hasher: h, Helper: j, TTL: pc.TokenTTL}, &token.Verifier{Hasher: h, Helper: j}, nil
}

func (g globals) write(w io.Writer, v any) error {
	var (
		output []byte
		err    error
	)

	switch strings.ToLower(g.Format) {
	case "yaml":
		output, err = yaml.Marshal(v)
	case "json":
		output, err = json.MarshalIndent(v, "", "  ")
		output = append(output, '\n')
	default:
		return fmt.Errorf("unsupported output format: %s (use yaml or json)", g.Format)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	_, err = w.Write(output)
	return err
}

type command func(ctx context.Context, g globals, args []string, w io.Writer) error

var commands = map[string]command{
	"issue":  runIssue,
	"verify": runVerify,
	"kernel": runKernel,
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s [options] <issue|verify|kernel> [command options]\n\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprintln(os.Stderr, "\nExamples:")
		fmt.Fprintln(os.Stderr, "  # Write an image challenge to ./out and show its answer")
		fmt.Fprintln(os.Stderr, "  captchactl -token-secret s3cr3t -hash-secret pepper issue -kind image -address 203.0.113.5 -out ./out -reveal")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  # Check an answer")
		fmt.Fprintln(os.Stderr, "  captchactl -token-secret s3cr3t -hash-secret pepper verify -token eyJ... -answer aB3xQ9 -address 203.0.113.5")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "  # Print the blur kernel for a sigma")
		fmt.Fprintln(os.Stderr, "  captchactl kernel -sigma 1.5")
		os.Exit(2)
	}
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *helpFlag || flag.NArg() == 0 {
		flag.Usage()
	}

	internal.InitSlog(*slogLevel, *slogFormat)

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", flag.Arg(0))
		flag.Usage()
	}

	g := globals{
		ConfigFname: *configFname,
		TokenSecret: *tokenSecret,
		HashSecret:  *hashSecret,
		Format:      *outputFormat,
	}

	if err := cmd(context.Background(), g, flag.Args()[1:], os.Stdout); err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
}
