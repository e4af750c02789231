package internal

import (
	"strconv"
	"testing"
)

var (
	// Rate limit bucket keys are derived from requester addresses.
	addressInputs = []string{
		"203.0.113.5",
		"198.51.100.1",
		"192.0.2.44",
		"2001:db8::1",
		"2001:db8:85a3::8a2e:370:7334",
		"10.0.0.1",
		"172.16.4.20",
		"192.168.1.100",
	}

	// Exemption rules are identified by hashing their source.
	ruleInputs = []string{
		`remoteAddress == "127.0.0.1"`,
		`path.startsWith("/api/captcha/")`,
		`userAgent.contains("monitoring")`,
		"10.0.0.0/8\n172.16.0.0/12\n192.168.0.0/16",
	}
)

func BenchmarkSHA256_AddressInputs(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = SHA256sum(addressInputs[i%len(addressInputs)])
	}
}

func BenchmarkFastHash_AddressInputs(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = FastHash(addressInputs[i%len(addressInputs)])
	}
}

func BenchmarkSHA256_RuleInputs(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = SHA256sum(ruleInputs[i%len(ruleInputs)])
	}
}

func BenchmarkFastHash_RuleInputs(b *testing.B) {
	for i := 0; b.Loop(); i++ {
		_ = FastHash(ruleInputs[i%len(ruleInputs)])
	}
}

func TestHashCollisions(t *testing.T) {
	allInputs := append(append([]string{}, addressInputs...), ruleInputs...)

	seen := make(map[string]string)
	for _, input := range allInputs {
		hash := FastHash(input)
		if existing, ok := seen[hash]; ok {
			t.Errorf("FastHash collision detected: %q and %q both hash to %s", input, existing, hash)
		}
		seen[hash] = input
	}

	// Sequential IPv4 addresses in one /16 should spread cleanly.
	seen = make(map[string]string)
	for i := 0; i < 256*256; i++ {
		addr := "10.1." + strconv.Itoa(i/256) + "." + strconv.Itoa(i%256)
		hash := FastHash(addr)
		if existing, ok := seen[hash]; ok {
			t.Fatalf("FastHash collision detected: %q and %q both hash to %s", addr, existing, hash)
		}
		seen[hash] = addr
	}
}

func TestSHA256sum(t *testing.T) {
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := SHA256sum(""); got != want {
		t.Errorf("wanted %s, got %s", want, got)
	}
}
