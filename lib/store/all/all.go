// Package all is a meta-package that imports all store implementations.
//
// Import it for side effects wherever a store is built from configuration.
package all

import (
	_ "github.com/MelihcanSimsek/CaptchaGenerator/lib/store/bbolt"
	_ "github.com/MelihcanSimsek/CaptchaGenerator/lib/store/memory"
	_ "github.com/MelihcanSimsek/CaptchaGenerator/lib/store/valkey"
)
