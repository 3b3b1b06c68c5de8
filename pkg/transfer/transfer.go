// Package transfer moves recorded documents off the device.
package transfer

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const (
	// DefaultShareCommand opens the Android share sheet
	DefaultShareCommand = "termux-share"

	// FallbackIP is reported when no route to the outside is available
	FallbackIP = "127.0.0.1"

	// probeAddr is never contacted: dialing UDP only selects a route
	probeAddr = "8.8.8.8:80"
)

type dialFunc func(network, address string) (net.Conn, error)

// LocalIP returns the address of the interface holding the default route
func LocalIP(logger *zap.Logger) string {
	return localIP(net.Dial, logger)
}

func localIP(dial dialFunc, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := dial("udp", probeAddr)
	if err != nil {
		logger.Error("Failed to determine local IP", zap.Error(err))
		return FallbackIP
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		logger.Error("Failed to determine local IP", zap.Stringer("addr", conn.LocalAddr()))
		return FallbackIP
	}
	return addr.IP.String()
}

// DownloadURL returns the address a remote machine fetches name from
func DownloadURL(host string, port int, name string) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/" + name
}

// Hints returns copy-pastable download commands for url
func Hints(url string) []string {
	return []string{
		"curl -o latest.geojson " + url,
		"wget " + url,
	}
}

// QRCode renders content as a QR code for a terminal. Two modules share one
// text row; light modules are drawn so the code reads on dark backgrounds.
func QRCode(content string) (string, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}

	bitmap := qr.Bitmap()
	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		for x := range bitmap[y] {
			top := !bitmap[y][x]
			bottom := y+1 < len(bitmap) && !bitmap[y+1][x]
			switch {
			case top && bottom:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bottom:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

// Sharer hands a file to the system share sheet
type Sharer struct {
	command string
	logger  *zap.Logger
}

// NewSharer creates a sharer running command with the file as argument
func NewSharer(command string, logger *zap.Logger) *Sharer {
	if command == "" {
		command = DefaultShareCommand
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sharer{command: command, logger: logger}
}

// Share runs the share command for path
func (s *Sharer) Share(ctx context.Context, path string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command, path)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		s.logger.Error("Failed to share file",
			zap.String("path", path),
			zap.String("stderr", strings.TrimSpace(stderr.String())),
			zap.Error(err))
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("failed to share %s: %w: %s", path, err, msg)
		}
		return fmt.Errorf("failed to share %s: %w", path, err)
	}

	s.logger.Info("File shared successfully", zap.String("path", path))
	return nil
}
