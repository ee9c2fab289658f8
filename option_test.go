package packetsock

import (
	"errors"
	"testing"
)

func TestCheckOptions_DefaultValues(t *testing.T) {
	opts := &options{
		onFault: discardFaults,
	}

	err := checkOptions(opts)
	if err != nil {
		t.Fatalf("checkOptions failed: %v", err)
	}

	if opts.bufferSize != defaultBufferSize {
		t.Errorf("bufferSize = %d, want %d", opts.bufferSize, defaultBufferSize)
	}

	if opts.logger == nil {
		t.Error("logger should have default value")
	}
}

func TestCheckOptions_MissingFaultHandler(t *testing.T) {
	opts := &options{}

	if err := checkOptions(opts); !errors.Is(err, ErrInvalidFaultHandler) {
		t.Errorf("expected ErrInvalidFaultHandler, got %v", err)
	}
}

func TestOptions_Setters(t *testing.T) {
	logger := &mockLogger{}
	called := false
	cb := func(error) { called = true }

	var opts options
	for _, o := range []Option{
		OnFaultOption(cb),
		BufferSizeOption(7),
		LoggerOption(logger),
	} {
		o(&opts)
	}

	if opts.bufferSize != 7 {
		t.Errorf("bufferSize = %d, want 7", opts.bufferSize)
	}
	if opts.logger != logger {
		t.Error("logger not set correctly")
	}

	opts.onFault(nil)
	if !called {
		t.Error("onFault not set correctly")
	}
}

func TestValidMTU(t *testing.T) {
	tests := []struct {
		name string
		mtu  int
		want bool
	}{
		{name: "negative", mtu: -1, want: false},
		{name: "zero", mtu: 0, want: true},
		{name: "one", mtu: 1, want: true},
		{name: "max payload", mtu: MaxPayload, want: true},
		{name: "above max payload", mtu: MaxPayload + 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := validMTU(tt.mtu); got != tt.want {
				t.Errorf("validMTU(%d) = %v, want %v", tt.mtu, got, tt.want)
			}
		})
	}
}
