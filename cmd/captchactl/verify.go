package main

import (
	"context"
	"flag"
	"io"
)

type verifyReport struct {
	Outcome   string `json:"outcome"`
	Message   string `json:"message"`
	IsSuccess bool   `json:"isSuccess"`
}

func runVerify(ctx context.Context, g globals, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	tok := fs.String("token", "", "token returned by issue")
	answer := fs.String("answer", "", "claimed answer")
	address := fs.String("address", "127.0.0.1", "requester address the answer comes from")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pc, err := g.config(ctx)
	if err != nil {
		return err
	}

	_, verifier, err := g.tokens(pc)
	if err != nil {
		return err
	}

	outcome := verifier.Verify(*answer, *tok, *address)

	return g.write(w, verifyReport{
		Outcome:   outcome.String(),
		Message:   outcome.Message(),
		IsSuccess: outcome.Success(),
	})
}
