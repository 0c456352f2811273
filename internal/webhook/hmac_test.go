package webhook

import (
	"strings"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := "test-secret-key"
	body := []byte(`{"message_id":"m1","from":"+10000000001","to":"+10000000002","ts":"2025-01-15T10:00:00Z"}`)

	validSig := computeSignature(secret, body)

	tests := []struct {
		name      string
		secret    string
		body      []byte
		signature string
		want      bool
	}{
		{
			name:      "valid signature",
			secret:    secret,
			body:      body,
			signature: validSig,
			want:      true,
		},
		{
			name:      "wrong signature",
			secret:    secret,
			body:      body,
			signature: strings.Repeat("0", 64),
			want:      false,
		},
		{
			name:      "tampered body",
			secret:    secret,
			body:      []byte(`{"message_id":"m2"}`),
			signature: validSig,
			want:      false,
		},
		{
			name:      "wrong secret",
			secret:    "wrong-secret",
			body:      body,
			signature: validSig,
			want:      false,
		},
		{
			name:      "missing signature",
			secret:    secret,
			body:      body,
			signature: "",
			want:      false,
		},
		{
			name:      "non-hex signature",
			secret:    secret,
			body:      body,
			signature: "not-valid-hex",
			want:      false,
		},
		{
			name:      "truncated signature",
			secret:    secret,
			body:      body,
			signature: validSig[:32],
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifySignature(tt.secret, tt.body, tt.signature); got != tt.want {
				t.Errorf("VerifySignature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeSignatureIsStable(t *testing.T) {
	body := []byte("payload")
	a := computeSignature("s", body)
	b := computeSignature("s", body)
	if a != b {
		t.Errorf("computeSignature not deterministic: %q vs %q", a, b)
	}
	if len(a) != 64 {
		t.Errorf("signature length = %d, want 64 hex chars", len(a))
	}
}
