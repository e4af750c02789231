// Package captcha contains the version number and shared defaults of the
// CAPTCHA service.
package captcha

import "time"

// Version is the current version of the service.
//
// This variable is set at build time using the -X linker flag. If not set,
// it will default to "devel".
var Version = "devel"

// DefaultTokenTTL is how long an issued challenge token stays redeemable.
const DefaultTokenTTL = 2 * time.Minute

// DefaultTextLength is the number of characters in a generated challenge.
const DefaultTextLength = 6

// Default raster dimensions for image challenges.
const (
	DefaultImageWidth  = 200
	DefaultImageHeight = 100
)

// Default output layout for audio challenges.
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 2
)

// APIPrefix is the URL path prefix for all API routes.
const APIPrefix = "/api/captcha/"

// BasePrefix is a global prefix for all routes, set from the -base-prefix flag.
var BasePrefix = ""

// ForcedLanguage is the language used for every response when set, ignoring
// the request's Accept-Language header.
var ForcedLanguage = ""
