package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/acpgo/acp"
	"github.com/acpgo/acp/internal/config"
	"github.com/acpgo/acp/internal/observability"
	"github.com/acpgo/acp/internal/property"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (ACP_-prefixed env vars also apply)")
	addr := flag.String("addr", "", "base station host:port, overrides config")
	password := flag.String("password", "", "device password")
	cmd := flag.String("cmd", "get", "get|set|features|flash|reboot")
	tags := flag.String("tags", "", "comma-separated property tags for get, or tag=value for set")
	flashPath := flag.String("image", "", "firmware image path, for flash")
	opTimeout := flag.Duration("op-timeout", 10*time.Second, "overall operation timeout")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *addr)
	if err != nil {
		fatalf("config: %v", err)
	}

	logger, err := observability.Setup(cfg.Log)
	if err != nil {
		fatalf("logger setup: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *opTimeout)
	defer cancel()

	client := acp.New(
		cfg.Host, cfg.Port, *password,
		acp.WithLogger(logger),
		acp.WithDialTimeout(time.Duration(cfg.DialTimeoutMS)*time.Millisecond),
	)
	if err := client.Connect(ctx); err != nil {
		fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := client.Authenticate(ctx); err != nil {
		fatalf("authenticate: %v", err)
	}

	switch *cmd {
	case "get":
		runGet(ctx, client, *tags)
	case "set":
		runSet(ctx, client, *tags)
	case "features":
		runFeatures(ctx, client)
	case "flash":
		runFlash(ctx, client, *flashPath)
	case "reboot":
		if err := client.Reboot(ctx); err != nil {
			fatalf("reboot: %v", err)
		}
		fmt.Println("reboot requested")
	default:
		fatalf("unknown -cmd %q", *cmd)
	}
}

// loadConfig reads cfgPath through internal/config.Load (empty path
// yields defaults merged with ACP_-prefixed env vars), then applies
// addrOverride to host/port if given on the command line. With an
// addrOverride and no cfgPath, Load is not called: the defaults are used
// as they are and environment variables are not read.
func loadConfig(cfgPath, addrOverride string) (*config.Config, error) {
	var cfg *config.Config
	if addrOverride != "" {
		host, port, err := splitHostPort(addrOverride)
		if err != nil {
			return nil, err
		}
		cfg = config.Default()
		cfg.Host, cfg.Port = host, port
		if strings.TrimSpace(cfgPath) != "" {
			loaded, err := config.Load(cfgPath)
			if err != nil {
				return nil, err
			}
			loaded.Host, loaded.Port = host, port
			cfg = loaded
		}
		return cfg, nil
	}
	return config.Load(cfgPath)
}

func runGet(ctx context.Context, client *acp.Client, tagList string) {
	tags := strings.Split(tagList, ",")
	props, err := client.GetProperties(ctx, tags...)
	if err != nil {
		fatalf("get properties: %v", err)
	}
	for _, p := range props {
		fmt.Printf("%s = %x\n", p.Tag(), p.Value)
	}
}

func runSet(ctx context.Context, client *acp.Client, assignments string) {
	var props []property.Property
	for _, kv := range strings.Split(assignments, ",") {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			fatalf("bad assignment %q, want tag=hexvalue", kv)
		}
		value, err := decodeHex(parts[1])
		if err != nil {
			fatalf("bad value for %q: %v", parts[0], err)
		}
		p, err := property.New(parts[0], value)
		if err != nil {
			fatalf("property %q: %v", parts[0], err)
		}
		props = append(props, p)
	}
	if err := client.SetProperties(ctx, props...); err != nil {
		fatalf("set properties: %v", err)
	}
	fmt.Println("ok")
}

func runFeatures(ctx context.Context, client *acp.Client) {
	val, err := client.GetFeatures(ctx)
	if err != nil {
		fatalf("get features: %v", err)
	}
	fmt.Printf("%+v\n", val)
}

func runFlash(ctx context.Context, client *acp.Client, path string) {
	if path == "" {
		fatalf("missing -image for flash")
	}
	image, err := os.ReadFile(path)
	if err != nil {
		fatalf("read image: %v", err)
	}
	reply, err := client.FlashPrimary(ctx, image)
	if err != nil {
		fatalf("flash: %v", err)
	}
	fmt.Printf("flash accepted, %d reply bytes\n", len(reply))
}

func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("bad port %q", portStr)
	}
	return host, port, nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 != 0 {
		s = "0" + s
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi, err := hexDigit(s[2*i])
		if err != nil {
			return nil, err
		}
		lo, err := hexDigit(s[2*i+1])
		if err != nil {
			return nil, err
		}
		out[i] = hi<<4 | lo
	}
	return out, nil
}

func hexDigit(c byte) (byte, error) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', nil
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, nil
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("invalid hex digit %q", c)
	}
}

func fatalf(format string, a ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
