//go:build linux

package commport

import (
	"errors"
	"testing"

	"golang.org/x/sys/unix"
)

func TestGetBaudRate(t *testing.T) {
	tests := []struct {
		rate    int
		want    uint32
		wantErr bool
	}{
		{9600, unix.B9600, false},
		{115200, unix.B115200, false},
		{921600, unix.B921600, false},
		{4000000, unix.B4000000, false},
		{12345, 0, true},
		{0, 0, true},
	}

	for _, tt := range tests {
		got, err := getBaudRate(tt.rate)
		if (err != nil) != tt.wantErr {
			t.Errorf("getBaudRate(%d) error = %v, wantErr %v", tt.rate, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, unix.EINVAL) {
			t.Errorf("getBaudRate(%d) error = %v, want EINVAL", tt.rate, err)
		}
		if got != tt.want {
			t.Errorf("getBaudRate(%d) = %#x, want %#x", tt.rate, got, tt.want)
		}
	}
}

func TestApplyControlBlock(t *testing.T) {
	tests := []struct {
		name      string
		cfg       func(c *Config)
		wantCflag uint32
		noCflag   uint32
		wantIflag uint32
		noIflag   uint32
		wantErr   bool
	}{
		{
			name:      "8N1",
			cfg:       func(c *Config) {},
			wantCflag: unix.CS8 | unix.CREAD | unix.CLOCAL,
			noCflag:   unix.PARENB | unix.CSTOPB | unix.CRTSCTS,
			noIflag:   unix.IXON | unix.IXOFF | unix.INPCK,
		},
		{
			name:      "7E2",
			cfg:       func(c *Config) { c.DataBits = 7; c.Parity = ParityEven; c.StopBits = StopBitsTwo },
			wantCflag: unix.CS7 | unix.PARENB | unix.CSTOPB,
			noCflag:   unix.PARODD | unix.CMSPAR,
			wantIflag: unix.INPCK,
		},
		{
			name:      "odd parity",
			cfg:       func(c *Config) { c.Parity = ParityOdd },
			wantCflag: unix.PARENB | unix.PARODD,
		},
		{
			name:      "mark parity",
			cfg:       func(c *Config) { c.Parity = ParityMark },
			wantCflag: unix.PARENB | unix.PARODD | unix.CMSPAR,
			noIflag:   unix.INPCK,
		},
		{
			name:      "space parity",
			cfg:       func(c *Config) { c.Parity = ParitySpace },
			wantCflag: unix.PARENB | unix.CMSPAR,
			noCflag:   unix.PARODD,
		},
		{
			name:      "1.5 stop bits with 5 data bits",
			cfg:       func(c *Config) { c.DataBits = 5; c.StopBits = StopBitsOneHalf },
			wantCflag: unix.CS5 | unix.CSTOPB,
		},
		{
			name:    "1.5 stop bits with 8 data bits",
			cfg:     func(c *Config) { c.StopBits = StopBitsOneHalf },
			wantErr: true,
		},
		{
			name:      "ctsrts",
			cfg:       func(c *Config) { c.SetHandshake(HandshakeCtsRts) },
			wantCflag: unix.CRTSCTS,
		},
		{
			name:      "xonxoff",
			cfg:       func(c *Config) { c.SetHandshake(HandshakeXonXoff) },
			wantIflag: unix.IXON | unix.IXOFF,
			noCflag:   unix.CRTSCTS,
		},
		{
			name:    "dsrdtr",
			cfg:     func(c *Config) { c.SetHandshake(HandshakeDsrDtr) },
			wantErr: true,
		},
		{
			name:    "rts gate",
			cfg:     func(c *Config) { c.RTSControl = OutputGate },
			wantErr: true,
		},
		{
			name:    "9 data bits",
			cfg:     func(c *Config) { c.DataBits = 9 },
			wantErr: true,
		},
		{
			name:    "unsupported baud rate",
			cfg:     func(c *Config) { c.BaudRate = 12345 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.cfg(&cfg)
			var termios unix.Termios
			err := applyControlBlock(&termios, cfg.ControlBlock())
			if (err != nil) != tt.wantErr {
				t.Fatalf("applyControlBlock() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, unix.EINVAL) {
					t.Errorf("applyControlBlock() error = %v, want EINVAL", err)
				}
				return
			}
			if termios.Cflag&tt.wantCflag != tt.wantCflag {
				t.Errorf("Cflag = %#x, want bits %#x", termios.Cflag, tt.wantCflag)
			}
			if termios.Cflag&tt.noCflag != 0 {
				t.Errorf("Cflag = %#x, want bits %#x clear", termios.Cflag, tt.noCflag)
			}
			if termios.Iflag&tt.wantIflag != tt.wantIflag {
				t.Errorf("Iflag = %#x, want bits %#x", termios.Iflag, tt.wantIflag)
			}
			if termios.Iflag&tt.noIflag != 0 {
				t.Errorf("Iflag = %#x, want bits %#x clear", termios.Iflag, tt.noIflag)
			}
			if termios.Cc[unix.VSTART] != cfg.XonChar || termios.Cc[unix.VSTOP] != cfg.XoffChar {
				t.Errorf("VSTART/VSTOP = %#x/%#x, want %#x/%#x",
					termios.Cc[unix.VSTART], termios.Cc[unix.VSTOP], cfg.XonChar, cfg.XoffChar)
			}
			if termios.Cc[unix.VMIN] != 0 || termios.Cc[unix.VTIME] != 0 {
				t.Error("reads are not non-blocking")
			}
		})
	}
}

func TestModemFromTIOCM(t *testing.T) {
	tests := []struct {
		bits int
		want ModemStatus
	}{
		{0, 0},
		{unix.TIOCM_CTS, ModemCTS},
		{unix.TIOCM_DSR | unix.TIOCM_CAR, ModemDSR | ModemRLSD},
		{unix.TIOCM_RI | unix.TIOCM_RTS | unix.TIOCM_DTR, ModemRing},
	}

	for _, tt := range tests {
		if got := modemFromTIOCM(tt.bits); got != tt.want {
			t.Errorf("modemFromTIOCM(%#x) = %v, want %v", tt.bits, got, tt.want)
		}
	}
}

func TestOpenDeviceNotFound(t *testing.T) {
	_, err := openDevice("/dev/ttyDOESNOTEXIST0")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("openDevice() error = %v, want %v", err, ErrDeviceNotFound)
	}
}
