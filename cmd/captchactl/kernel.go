package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/imaging/blur"
)

func runKernel(_ context.Context, g globals, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("kernel", flag.ContinueOnError)
	sigma := fs.Float64("sigma", 1.5, "standard deviation of the gaussian")
	if err := fs.Parse(args); err != nil {
		return err
	}

	k, err := blur.ComputeKernel(*sigma)
	if err != nil {
		return err
	}

	if g.Format == "json" {
		return g.write(w, k)
	}

	_, err = fmt.Fprintf(w, "size: %d, sum: %d\n%s", k.Size, k.Sum(), k)
	return err
}
