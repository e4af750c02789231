package policy

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"

	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	"github.com/MelihcanSimsek/CaptchaGenerator/lib/policy/checker"
	"github.com/gaissmai/bart"
)

var (
	ErrMisconfiguration = errors.New("[unexpected] policy: administrator misconfiguration")
)

// RemoteAddrChecker matches requests whose X-Real-Ip falls inside any of a
// set of address ranges.
type RemoteAddrChecker struct {
	table *bart.Table[string]
	hash  string
}

func NewRemoteAddrChecker(cidrs []string) (checker.Impl, error) {
	table := &bart.Table[string]{}
	var sb strings.Builder

	for _, cidr := range cidrs {
		pfx, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("%w: range %s not parsing: %w", ErrMisconfiguration, cidr, err)
		}

		table.Insert(pfx.Masked(), cidr)
		fmt.Fprintln(&sb, cidr)
	}

	return &RemoteAddrChecker{
		table: table,
		hash:  internal.SHA256sum(sb.String()),
	}, nil
}

func (rac *RemoteAddrChecker) Check(r *http.Request) (bool, error) {
	host := r.Header.Get("X-Real-Ip")
	if host == "" {
		return false, fmt.Errorf("%w: header X-Real-Ip is not set", ErrMisconfiguration)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false, fmt.Errorf("%w: %s is not an IP address: %w", ErrMisconfiguration, host, err)
	}

	_, ok := rac.table.Lookup(addr.Unmap())
	return ok, nil
}

func (rac *RemoteAddrChecker) Hash() string {
	return rac.hash
}
