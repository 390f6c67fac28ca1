/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/allbin/go-commport"
	"github.com/spf13/viper"
)

// portConfig builds the connection configuration from flags, environment
// and config file, in that order of precedence.
func portConfig(v *viper.Viper) (commport.Config, error) {
	cfg := commport.DefaultConfig()

	cfg.BaudRate = v.GetInt("baud")
	if cfg.BaudRate <= 0 {
		return cfg, fmt.Errorf("%w: baud rate %d", commport.ErrInvalidConfig, cfg.BaudRate)
	}
	cfg.DataBits = v.GetInt("data-bits")
	// The device decides which sizes it supports and rejects the rest at open.
	if cfg.DataBits < 1 || cfg.DataBits > 8 {
		return cfg, fmt.Errorf("%w: data bits %d", commport.ErrInvalidConfig, cfg.DataBits)
	}

	var err error
	if cfg.Parity, err = parseParity(v.GetString("parity")); err != nil {
		return cfg, err
	}
	if cfg.StopBits, err = parseStopBits(v.GetString("stop-bits")); err != nil {
		return cfg, err
	}
	h, err := parseHandshake(v.GetString("handshake"))
	if err != nil {
		return cfg, err
	}
	cfg.SetHandshake(h)

	cfg.RxQueue = v.GetInt("rx-queue")
	cfg.TxQueue = v.GetInt("tx-queue")
	if cfg.RxQueue < 0 || cfg.TxQueue < 0 {
		return cfg, fmt.Errorf("%w: negative queue size", commport.ErrInvalidConfig)
	}
	cfg.SendTimeoutConstant = v.GetDuration("send-timeout")
	cfg.SendTimeoutMultiplier = v.GetDuration("send-timeout-per-byte")
	if cfg.SendTimeoutConstant < 0 || cfg.SendTimeoutMultiplier < 0 {
		return cfg, fmt.Errorf("%w: negative send timeout", commport.ErrInvalidConfig)
	}
	cfg.AutoReopen = v.GetBool("auto-reopen")
	if cfg.NewLine, err = parseNewLine(v.GetString("newline")); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parseParity(s string) (commport.Parity, error) {
	switch strings.ToLower(s) {
	case "none", "n", "":
		return commport.ParityNone, nil
	case "odd", "o":
		return commport.ParityOdd, nil
	case "even", "e":
		return commport.ParityEven, nil
	case "mark", "m":
		return commport.ParityMark, nil
	case "space", "s":
		return commport.ParitySpace, nil
	default:
		return 0, fmt.Errorf("%w: parity %q (valid: none, odd, even, mark, space)", commport.ErrInvalidConfig, s)
	}
}

func parseStopBits(s string) (commport.StopBits, error) {
	switch s {
	case "1", "":
		return commport.StopBitsOne, nil
	case "1.5":
		return commport.StopBitsOneHalf, nil
	case "2":
		return commport.StopBitsTwo, nil
	default:
		return 0, fmt.Errorf("%w: stop bits %q (valid: 1, 1.5, 2)", commport.ErrInvalidConfig, s)
	}
}

func parseHandshake(s string) (commport.Handshake, error) {
	switch strings.ToLower(s) {
	case "none", "":
		return commport.HandshakeNone, nil
	case "xonxoff", "xon", "software":
		return commport.HandshakeXonXoff, nil
	case "ctsrts", "rtscts", "hardware":
		return commport.HandshakeCtsRts, nil
	case "dsrdtr", "dtrdsr":
		return commport.HandshakeDsrDtr, nil
	default:
		return 0, fmt.Errorf("%w: handshake %q (valid: none, xonxoff, ctsrts, dsrdtr)", commport.ErrInvalidConfig, s)
	}
}

func parseNewLine(s string) (string, error) {
	switch strings.ToLower(s) {
	case "crlf", "":
		return "\r\n", nil
	case "lf":
		return "\n", nil
	case "cr":
		return "\r", nil
	case "none":
		return "", nil
	default:
		return "", fmt.Errorf("%w: newline %q (valid: crlf, lf, cr, none)", commport.ErrInvalidConfig, s)
	}
}

// openPort creates and opens a connection with the configured settings.
// A port held by another process is reported as an error here since the
// commands have nothing to retry with.
func openPort(portPath string, h commport.Handler) (*commport.Connection, error) {
	cfg, err := portConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	c, err := commport.New(portPath,
		commport.WithConfig(cfg),
		commport.WithHandler(h),
		commport.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	ok, err := c.Open()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", portPath, commport.ErrPortUnavailable)
	}
	return c, nil
}

// describeConfig renders the framing and flow control, e.g. "9600 8N1 ctsrts".
func describeConfig(cfg commport.Config, h string) string {
	return strconv.Itoa(cfg.BaudRate) + " " + strconv.Itoa(cfg.DataBits) +
		cfg.Parity.String() + cfg.StopBits.String() + " " + h
}
