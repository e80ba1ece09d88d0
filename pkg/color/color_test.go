package color

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jvs-project/timelock/pkg/model"
)

func restore(t *testing.T) {
	t.Helper()
	enabled, overridden := state.enabled.Load(), state.overridden.Load()
	t.Cleanup(func() {
		state.enabled.Store(enabled)
		state.overridden.Store(overridden)
	})
}

func TestEnableDisable(t *testing.T) {
	restore(t)

	Enable()
	if !Enabled() {
		t.Error("expected colors to be enabled after Enable()")
	}

	Disable()
	if Enabled() {
		t.Error("expected colors to be disabled after Disable()")
	}
}

func TestColorFuncs(t *testing.T) {
	restore(t)
	Enable()

	tests := []struct {
		name string
		fn   func(string) string
		code string
	}{
		{"Success", Success, Green},
		{"Error", Error, Red},
		{"Warning", Warning, Yellow},
		{"Info", Info, Cyan},
		{"Header", Header, Bold},
		{"Dim", Dim, DimCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn("text")
			if got != tt.code+"text"+Reset {
				t.Errorf("%s(text) = %q", tt.name, got)
			}
		})
	}
}

func TestDisabledIsPlain(t *testing.T) {
	restore(t)
	Disable()

	if got := Successf("%d ok", 3); got != "3 ok" {
		t.Errorf("Successf = %q", got)
	}
	if got := Errorf("bad %s", "thing"); got != "bad thing" {
		t.Errorf("Errorf = %q", got)
	}
	addr := common.HexToAddress("0x00000000000000000000000000000000000000ff")
	if got := Address(addr); got != addr.Hex() {
		t.Errorf("Address = %q", got)
	}
}

func TestAmount(t *testing.T) {
	restore(t)
	Disable()

	tests := []struct {
		in   model.Amount
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1_234_567, "1,234,567"},
		{model.MaxAmount, "18,446,744,073,709,551,615"},
	}
	for _, tt := range tests {
		if got := Amount(tt.in); got != tt.want {
			t.Errorf("Amount(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}

	Enable()
	if got := Amount(1000); !strings.HasPrefix(got, Bold) {
		t.Errorf("Amount should be bold when enabled: %q", got)
	}
}
