package cryptoengine

import (
	"bytes"
	"testing"
)

func TestStreamEncryptDecryptRoundTrip(t *testing.T) {
	enc, key, header, err := NewStreamEncryptor()
	if err != nil {
		t.Fatalf("NewStreamEncryptor: %v", err)
	}

	plaintext := bytes.Repeat([]byte("a"), ChunkSize+128)
	var ciphertext bytes.Buffer
	n, err := enc.EncryptAll(&ciphertext, bytes.NewReader(plaintext))
	if err != nil {
		t.Fatalf("EncryptAll: %v", err)
	}
	if n != int64(len(plaintext)) {
		t.Fatalf("expected %d plaintext bytes encrypted, got %d", len(plaintext), n)
	}

	dec, err := NewStreamDecryptor(key, header)
	if err != nil {
		t.Fatalf("NewStreamDecryptor: %v", err)
	}

	sealedFirst := ChunkSize + chacha20Overhead()
	firstChunk := ciphertext.Bytes()[:sealedFirst]
	secondChunk := ciphertext.Bytes()[sealedFirst:]

	got1, err := dec.OpenChunk(firstChunk, false)
	if err != nil {
		t.Fatalf("OpenChunk(first): %v", err)
	}
	got2, err := dec.OpenChunk(secondChunk, true)
	if err != nil {
		t.Fatalf("OpenChunk(last): %v", err)
	}

	if !bytes.Equal(append(got1, got2...), plaintext) {
		t.Fatal("round-tripped plaintext does not match original")
	}
}

func TestSealOpenBlobRoundTrip(t *testing.T) {
	plaintext := []byte("thumbnail bytes")
	ciphertext, key, header, err := SealBlob(plaintext)
	if err != nil {
		t.Fatalf("SealBlob: %v", err)
	}

	got, err := OpenBlob(ciphertext, key, header)
	if err != nil {
		t.Fatalf("OpenBlob: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("expected %q, got %q", plaintext, got)
	}
}

func TestWrapUnwrapKeyRoundTrip(t *testing.T) {
	fileKey, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	wrappingKey, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	ciphertext, nonce, err := WrapKey(fileKey, wrappingKey)
	if err != nil {
		t.Fatalf("WrapKey: %v", err)
	}

	got, err := UnwrapKey(ciphertext, nonce, wrappingKey)
	if err != nil {
		t.Fatalf("UnwrapKey: %v", err)
	}
	if !bytes.Equal(got, fileKey) {
		t.Fatal("unwrapped key does not match original")
	}
}

func TestOpenChunkRejectsTamperedCiphertext(t *testing.T) {
	ciphertext, key, header, err := SealBlob([]byte("payload"))
	if err != nil {
		t.Fatalf("SealBlob: %v", err)
	}
	ciphertext[0] ^= 0xFF

	if _, err := OpenBlob(ciphertext, key, header); err == nil {
		t.Fatal("expected authentication failure on tampered ciphertext")
	}
}

func chacha20Overhead() int {
	return 16 // poly1305 tag size
}
