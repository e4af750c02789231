package memory

import (
	"testing"

	"github.com/MelihcanSimsek/CaptchaGenerator/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	storetest.Common(t, factory{}, nil)
}
