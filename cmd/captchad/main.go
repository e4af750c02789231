package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	captcha "github.com/MelihcanSimsek/CaptchaGenerator"
	"github.com/MelihcanSimsek/CaptchaGenerator/internal"
	libcaptcha "github.com/MelihcanSimsek/CaptchaGenerator/lib"
	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/yaml"
)

var (
	basePrefix         = flag.String("base-prefix", "", "base prefix (root URL) the application is served under e.g. /myapp")
	bind               = flag.String("bind", ":8923", "network address to bind HTTP to")
	bindNetwork        = flag.String("bind-network", "tcp", "network family to bind HTTP to, e.g. unix, tcp")
	configFname        = flag.String("config-fname", "", "full path to the challenge configuration file (defaults to a sensible built-in configuration)")
	forcedLanguage     = flag.String("forced-language", "", "if set, this language is being used instead of the one from the request's Accept-Language header")
	hashSecret         = flag.String("hash-secret", "", "secret mixed into answer hashes, if not set a random one will be assigned")
	hashSecretFile     = flag.String("hash-secret-file", "", "file name containing value for hash-secret")
	healthcheck        = flag.Bool("healthcheck", false, "run a health check against the metrics server")
	metricsBind        = flag.String("metrics-bind", ":9090", "network address to bind metrics to")
	metricsBindNetwork = flag.String("metrics-bind-network", "tcp", "network family for the metrics server to bind to")
	printConfig        = flag.Bool("print-config", false, "print the effective configuration as YAML and exit")
	slogFormat         = flag.String("slog-format", "json", "log output format, json or text")
	slogLevel          = flag.String("slog-level", "INFO", "logging level (see https://pkg.go.dev/log/slog#hdr-Levels)")
	socketMode         = flag.String("socket-mode", "0770", "socket mode (permissions) for unix domain sockets.")
	tokenSecret        = flag.String("token-secret", "", "secret used to sign challenge tokens, if not set a random one will be assigned")
	tokenSecretFile    = flag.String("token-secret-file", "", "file name containing value for token-secret")
	useRemoteAddress   = flag.Bool("use-remote-address", false, "read the client's IP address from the network request, useful for debugging and running on bare metal")
	versionFlag        = flag.Bool("version", false, "print the version")
	xffStripPrivate    = flag.Bool("xff-strip-private", true, "if set, strip private addresses from X-Forwarded-For")
)

func doHealthCheck() error {
	resp, err := http.Get("http://localhost" + *metricsBind + captcha.BasePrefix + "/metrics")
	if err != nil {
		return fmt.Errorf("failed to fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// loadSecret returns the secret from value or the file named by fname. It
// returns nil when neither is set.
func loadSecret(name, value, fname string) ([]byte, error) {
	switch {
	case value != "" && fname != "":
		return nil, fmt.Errorf("do not specify both %s and %s-file", name, name)
	case value != "":
		return []byte(value), nil
	case fname != "":
		data, err := os.ReadFile(fname)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s-file %s: %w", name, fname, err)
		}

		data = bytes.TrimSpace(data)
		if len(data) == 0 {
			return nil, fmt.Errorf("%s-file %s is empty", name, fname)
		}

		return data, nil
	default:
		return nil, nil
	}
}

// parseBindNetFromAddr determine bind network and address based on the given network and address.
func parseBindNetFromAddr(address string) (string, string) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to parse bind URL: %w", err))
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path
	case "tcp", "http", "https":
		return "tcp", bindUri.Host
	default:
		log.Fatal(fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address))
	}
	return "", address
}

func setupListener(network string, address string) (net.Listener, string) {
	formattedAddress := ""

	if network == "" {
		network, address = parseBindNetFromAddr(address)
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :4259
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		log.Fatal(fmt.Errorf("failed to bind to %s: %w", formattedAddress, err))
	}

	// additional permission handling for unix sockets
	if network == "unix" {
		mode, err := strconv.ParseUint(*socketMode, 8, 0)
		if err != nil {
			listener.Close()
			log.Fatal(fmt.Errorf("could not parse socket mode %s: %w", *socketMode, err))
		}

		err = os.Chmod(address, os.FileMode(mode))
		if err != nil {
			err := listener.Close()
			if err != nil {
				log.Printf("failed to close listener: %v", err)
			}
			log.Fatal(fmt.Errorf("could not change socket mode: %w", err))
		}
	}

	return listener, formattedAddress
}

func main() {
	flagenv.Parse()
	flag.Parse()

	if *versionFlag {
		fmt.Println("captchad", captcha.Version)
		return
	}

	internal.InitSlog(*slogLevel, *slogFormat)

	if *healthcheck {
		if err := doHealthCheck(); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *basePrefix != "" && !strings.HasPrefix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must start with a slash, eg: /%s", *basePrefix)
	} else if strings.HasSuffix(*basePrefix, "/") {
		log.Fatalf("[misconfiguration] base-prefix must not end with a slash")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc, err := libcaptcha.LoadConfigOrDefault(ctx, *configFname)
	if err != nil {
		log.Fatalf("can't parse config file: %v", err)
	}

	if *printConfig {
		data, err := yaml.Marshal(pc.Orig())
		if err != nil {
			log.Fatalf("can't marshal config: %v", err)
		}
		os.Stdout.Write(data)
		return
	}

	tokenKey, err := loadSecret("token-secret", *tokenSecret, *tokenSecretFile)
	if err != nil {
		log.Fatal(err)
	}
	if tokenKey == nil {
		slog.Warn("generating random token secret, tokens issued by one instance will be rejected by every other instance behind the same load balancer")
	}

	hashKey, err := loadSecret("hash-secret", *hashSecret, *hashSecretFile)
	if err != nil {
		log.Fatal(err)
	}
	if hashKey == nil {
		slog.Warn("generating random hash secret, answers will only verify on the instance that issued them")
	}

	captcha.ForcedLanguage = *forcedLanguage

	var opts = libcaptcha.Options{
		Policy:      pc,
		TokenSecret: tokenKey,
		HashSecret:  hashKey,
		BasePrefix:  *basePrefix,
	}

	if pc.RateLimit.Enabled() {
		opts.Store, err = libcaptcha.BuildStore(ctx, pc.Store)
		if err != nil {
			log.Fatalf("can't open rate limit store: %v", err)
		}
	}

	s, err := libcaptcha.New(opts)
	if err != nil {
		log.Fatalf("can't construct libcaptcha.Server: %v", err)
	}

	wg := new(sync.WaitGroup)

	if *metricsBind != "" {
		wg.Add(1)
		go metricsServer(ctx, wg.Done)
	}

	var h http.Handler
	h = s
	h = internal.RemoteXRealIP(*useRemoteAddress, *bindNetwork, h)
	h = internal.XForwardedForToXRealIP(h)
	h = internal.XForwardedForUpdate(*xffStripPrivate, h)

	srv := http.Server{Handler: h, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, listenerUrl := setupListener(*bindNetwork, *bind)
	slog.Info(
		"listening",
		"url", listenerUrl,
		"version", captcha.Version,
		"use-remote-address", *useRemoteAddress,
		"base-prefix", *basePrefix,
		"text-length", pc.TextLength,
		"token-algorithm", pc.Algorithm,
		"token-ttl", pc.TokenTTL,
		"image", pc.Image != nil,
		"audio", pc.Audio != nil,
		"rate-limit", pc.RateLimit.Requests,
		"rate-limit-window", pc.RateLimit.Window,
		"store", pc.Store.Backend,
	)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	wg.Wait()
}

func metricsServer(ctx context.Context, done func()) {
	defer done()

	mux := http.NewServeMux()
	mux.Handle(captcha.BasePrefix+"/metrics", promhttp.Handler())

	srv := http.Server{Handler: mux, ErrorLog: internal.GetFilteredHTTPLogger()}
	listener, metricsUrl := setupListener(*metricsBindNetwork, *metricsBind)
	slog.Debug("listening for metrics", "url", metricsUrl)

	go func() {
		<-ctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(c); err != nil {
			log.Printf("cannot shut down: %v", err)
		}
	}()

	if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
