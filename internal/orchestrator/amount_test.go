package orchestrator

import (
	"errors"
	"testing"

	"vaultflow/internal/model"
)

func TestParseAmountTruncatesToSixDigits(t *testing.T) {
	amount, err := ParseAmount("12.34567891")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := amount.String(); got != "12.345678" {
		t.Fatalf("truncation mismatch: %s", got)
	}
}

func TestParseAmountKeepsExactPrecision(t *testing.T) {
	amount, err := ParseAmount("12.345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := amount.String(); got != "12.345678" {
		t.Fatalf("amount mismatch: %s", got)
	}
}

func TestParseAmountRejectsInvalid(t *testing.T) {
	cases := []string{"", "abc", "-5", "0", "0.0000001"}
	for _, input := range cases {
		_, err := ParseAmount(input)
		var validation *model.ValidationError
		if !errors.As(err, &validation) {
			t.Fatalf("input %q: expected ValidationError, got %v", input, err)
		}
	}
}

func TestToSmallestUnit(t *testing.T) {
	amount, err := ParseAmount("12.345678")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ToSmallestUnit(amount).String(); got != "12345678" {
		t.Fatalf("smallest unit mismatch: %s", got)
	}
}

func TestFromSmallestUnit(t *testing.T) {
	amount, err := ParseAmount("0.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := FromSmallestUnit(ToSmallestUnit(amount)); got != "0.5" {
		t.Fatalf("round trip mismatch: %s", got)
	}
	if got := FromSmallestUnit(nil); got != "0" {
		t.Fatalf("nil value mismatch: %s", got)
	}
}
