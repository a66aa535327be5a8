package dedup

import (
	"strings"
	"testing"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("Bug", "desc", []string{"sig1"})
	b := Fingerprint("Bug", "desc", []string{"sig1"})
	if a != b {
		t.Errorf("same input should produce same fingerprint: %q vs %q", a, b)
	}
}

func TestFingerprint_Normalization(t *testing.T) {
	a := Fingerprint("  Bug  ", "Desc", nil)
	b := Fingerprint("bug", "desc", nil)
	if a != b {
		t.Errorf("trim+lowercase should make fingerprints equal: %q vs %q", a, b)
	}
}

func TestFingerprint_SignaturesMatter(t *testing.T) {
	a := Fingerprint("Bug", "desc", []string{"TypeError: x is undefined"})
	b := Fingerprint("Bug", "desc", []string{"ReferenceError: y"})
	if a == b {
		t.Error("different error signatures should change the fingerprint")
	}
}

func TestFingerprint_Base36(t *testing.T) {
	fp := Fingerprint("Bug", "desc", []string{"sig"})
	if fp == "" {
		t.Fatal("fingerprint should not be empty")
	}
	for _, c := range fp {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", c) {
			t.Errorf("fingerprint %q contains non-base36 rune %q", fp, c)
		}
	}
}
