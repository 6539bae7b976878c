package cryptoutil

import "testing"

func TestSignAndVerifyRoundTrip(t *testing.T) {
	priv, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	data := []byte("transaction payload")
	sig, err := priv.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if !sig.Verify(data, priv.PublicKey()) {
		t.Fatal("expected signature to verify under its own public key")
	}
}

func TestVerifyFailsForWrongKey(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	other, _ := GeneratePrivateKey()
	data := []byte("transaction payload")
	sig, err := priv.Sign(data)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig.Verify(data, other.PublicKey()) {
		t.Fatal("expected signature to fail verification under an unrelated public key")
	}
}

func TestVerifyFailsForTamperedData(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	sig, err := priv.Sign([]byte("original"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if sig.Verify([]byte("tampered"), priv.PublicKey()) {
		t.Fatal("expected signature to fail verification over different data")
	}
}

func TestPublicKeyBytesRoundTrip(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	pub := priv.PublicKey()
	decoded, err := PublicKeyFromBytes(pub.Bytes())
	if err != nil {
		t.Fatalf("PublicKeyFromBytes: %v", err)
	}
	if !pub.Equal(decoded) {
		t.Fatal("expected decoded public key to equal original")
	}
	if pub.Address() != decoded.Address() {
		t.Fatal("expected decoded public key to derive the same address")
	}
}

func TestSignatureBytesRoundTrip(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	sig, err := priv.Sign([]byte("payload"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	decoded, err := SignatureFromBytes(sig.Bytes())
	if err != nil {
		t.Fatalf("SignatureFromBytes: %v", err)
	}
	if !decoded.Verify([]byte("payload"), priv.PublicKey()) {
		t.Fatal("expected decoded signature to verify")
	}
}

func TestSignatureFromBytesRejectsBadLength(t *testing.T) {
	if _, err := SignatureFromBytes(make([]byte, 10)); err == nil {
		t.Fatal("expected error for undersized signature bytes")
	}
}

func TestTwoAddressesFromSameKeyMatch(t *testing.T) {
	priv, _ := GeneratePrivateKey()
	a1 := priv.PublicKey().Address()
	a2 := priv.PublicKey().Address()
	if a1 != a2 {
		t.Fatal("expected address derivation to be deterministic")
	}
}
