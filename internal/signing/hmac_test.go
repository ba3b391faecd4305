package signing

import "testing"

func TestVerify_MatchingSignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := Sign("s3cr3t", body)

	if !Verify("s3cr3t", body, sig) {
		t.Error("expected matching signature to verify")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	sig := Sign("s3cr3t", body)

	if Verify("different", body, sig) {
		t.Error("expected signature under a different secret to fail")
	}
}

func TestVerify_TamperedBody(t *testing.T) {
	sig := Sign("s3cr3t", []byte(`{"hello":"world"}`))

	if Verify("s3cr3t", []byte(`{"hello":"WORLD"}`), sig) {
		t.Error("expected tampered body to fail verification")
	}
}

func TestVerify_EmptySignature(t *testing.T) {
	body := []byte(`{"hello":"world"}`)

	if Verify("s3cr3t", body, "") {
		t.Error("expected empty signature to fail verification")
	}
}

func TestVerify_DifferentLength(t *testing.T) {
	body := []byte(`{"hello":"world"}`)

	if Verify("s3cr3t", body, "abc") {
		t.Error("expected short signature to fail verification")
	}
}
