package photometer

import (
	"testing"

	"go.bug.st/serial"
)

func TestPortOptionsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		opts    PortOptions
		want    PortOptions
		wantErr bool
	}{
		{
			"defaults",
			PortOptions{},
			PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"},
			false,
		},
		{
			"explicit values kept",
			PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: "even"},
			PortOptions{BaudRate: 115200, DataBits: 7, StopBits: 2, Parity: "E"},
			false,
		},
		{
			"parity word forms",
			PortOptions{Parity: "odd"},
			PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "O"},
			false,
		},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "X"}, PortOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.opts.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 19200, Parity: "E"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.BaudRate != 19200 || mode.DataBits != 8 || mode.Parity != serial.EvenParity {
		t.Errorf("SerialMode() = %+v", mode)
	}
}
