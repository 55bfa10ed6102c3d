package auth

import "testing"

func TestKeyringVerify(t *testing.T) {
	hash, err := HashKey("secret-1")
	if err != nil {
		t.Fatal(err)
	}
	k := NewKeyring([]APIKey{{Name: "counter-1", Hash: hash}})

	if k.Open() {
		t.Error("keyring with keys must not be open")
	}

	actor, ok := k.Verify("secret-1")
	if !ok || actor != "counter-1" {
		t.Errorf("Verify = %q, %v", actor, ok)
	}

	if _, ok := k.Verify("wrong"); ok {
		t.Error("wrong secret accepted")
	}
	if _, ok := k.Verify(""); ok {
		t.Error("empty token accepted")
	}
}

func TestKeyringOpen(t *testing.T) {
	k := NewKeyring(nil)
	if !k.Open() {
		t.Error("empty keyring should be open")
	}
}
