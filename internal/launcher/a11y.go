package launcher

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/fpp-125/fbh/internal/command"
	"github.com/fpp-125/fbh/internal/flatpak"
)

var ErrAddressParse = errors.New("cannot parse accessibility bus address")

const sandboxA11yBus = "/run/flatpak/at-spi-bus"

// gdbus wraps the address as ('unix:path=...,guid=...',)
var busAddressRe = regexp.MustCompile(`unix:path=([^,]+),([0-9A-Za-z=]+)`)

type BusAddress struct {
	Path   string
	Suffix string
}

// ParseBusAddress extracts the socket path and the trailing key=value part
// from a gdbus GetAddress reply.
func ParseBusAddress(reply string) (BusAddress, error) {
	cleaned := strings.ReplaceAll(reply, "',(", "")
	cleaned = strings.ReplaceAll(cleaned, "',)", "")
	m := busAddressRe.FindStringSubmatch(cleaned)
	if m == nil {
		return BusAddress{}, fmt.Errorf("%w: %q", ErrAddressParse, reply)
	}
	return BusAddress{Path: m[1], Suffix: m[2]}, nil
}

// Args mounts the host socket at a fixed sandbox path and points
// AT_SPI_BUS_ADDRESS at it.
func (a BusAddress) Args() []string {
	return []string{
		fmt.Sprintf("--bind-mount=%s=%s", sandboxA11yBus, a.Path),
		fmt.Sprintf("--env=AT_SPI_BUS_ADDRESS=unix:path=%s,%s", sandboxA11yBus, a.Suffix),
	}
}

// ResolveA11yBus asks the session bus for the accessibility bus address.
func ResolveA11yBus(ctx context.Context, runner command.Runner, tools flatpak.Tools) ([]string, error) {
	res, err := runner.Run(ctx, tools.A11yBusAddress())
	if err != nil {
		return nil, fmt.Errorf("query accessibility bus: %w", err)
	}
	addr, err := ParseBusAddress(res.Stdout)
	if err != nil {
		return nil, err
	}
	return addr.Args(), nil
}
