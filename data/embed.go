// Package data holds files compiled into the service binary.
package data

import "embed"

var (
	//go:embed captcha.yaml
	Config embed.FS
)
