package webhooks

import (
    "strings"
    "testing"
)

func TestSignPayloadDeterministic(t *testing.T) {
    body := []byte(`{"event":"score.changed"}`)
    a := SignPayload("whsec_abc", body)
    b := SignPayload("whsec_abc", body)
    if a != b {
        t.Fatalf("signature not deterministic: %s vs %s", a, b)
    }
    if !strings.HasPrefix(a, "sha256=") {
        t.Fatalf("signature missing scheme prefix: %s", a)
    }
    if len(a) != len("sha256=")+64 {
        t.Fatalf("unexpected signature length: %d", len(a))
    }
}

func TestSignPayloadVariesWithInput(t *testing.T) {
    body := []byte(`{"n":1}`)
    base := SignPayload("whsec_abc", body)
    if SignPayload("whsec_abd", body) == base {
        t.Fatal("different secret should change signature")
    }
    if SignPayload("whsec_abc", []byte(`{"n":2}`)) == base {
        t.Fatal("different body should change signature")
    }
}

func TestVerifySignature(t *testing.T) {
    body := []byte(`{"event":"contact.created"}`)
    sig := SignPayload("s3cr3t", body)
    if !VerifySignature("s3cr3t", body, sig) {
        t.Fatal("valid signature rejected")
    }
    if VerifySignature("wrong", body, sig) {
        t.Fatal("wrong secret accepted")
    }
    if VerifySignature("s3cr3t", []byte(`tampered`), sig) {
        t.Fatal("tampered body accepted")
    }
    if VerifySignature("s3cr3t", body, "sha256=zz") {
        t.Fatal("malformed hex accepted")
    }
}

func TestNewSecretFormat(t *testing.T) {
    s, err := NewSecret()
    if err != nil {
        t.Fatal(err)
    }
    if !strings.HasPrefix(s, "whsec_") {
        t.Fatalf("secret missing prefix: %s", s)
    }
    if len(s) != len("whsec_")+64 {
        t.Fatalf("unexpected secret length: %d", len(s))
    }
    other, err := NewSecret()
    if err != nil {
        t.Fatal(err)
    }
    if other == s {
        t.Fatal("secrets should be unique")
    }
}
