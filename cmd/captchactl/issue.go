package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/challenge"
)

type issueReport struct {
	ID     string    `json:"id"`
	Kind   string    `json:"kind"`
	Token  string    `json:"token"`
	Expiry time.Time `json:"expiry"`
	Answer string    `json:"answer,omitempty"`
	Files  []string  `json:"files,omitempty"`
}

func runIssue(ctx context.Context, g globals, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	kindName := fs.String("kind", "image", "challenge kind: image, audio or both")
	address := fs.String("address", "127.0.0.1", "requester address to bind the token to")
	outDir := fs.String("out", ".", "directory to write challenge.png and challenge.wav to")
	reveal := fs.Bool("reveal", false, "print the answer alongside the token")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kind, err := challenge.ParseKind(*kindName)
	if err != nil {
		return err
	}

	pc, err := g.config(ctx)
	if err != nil {
		return err
	}

	binder, _, err := g.tokens(pc)
	if err != nil {
		return err
	}

	iss := &challenge.Issuer{
		Binder:     binder,
		Image:      pc.Image,
		Audio:      pc.Audio,
		TextLength: pc.TextLength,
	}

	result, err := iss.Issue(ctx, kind, *address)
	if err != nil {
		return err
	}

	report := issueReport{
		ID:     result.Challenge.ID,
		Kind:   kind.String(),
		Token:  result.Token,
		Expiry: result.Expiry,
	}

	if *reveal {
		report.Answer = result.Challenge.Text
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("can't create output directory: %w", err)
	}

	for _, f := range []struct {
		name string
		data []byte
	}{
		{"challenge.png", result.Image},
		{"challenge.wav", result.Audio},
	} {
		if len(f.data) == 0 {
			continue
		}

		fname := filepath.Join(*outDir, f.name)
		if err := os.WriteFile(fname, f.data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", fname, err)
		}
		report.Files = append(report.Files, fname)
	}

	return g.write(w, report)
}
