// Package cryptoengine implements the chunked-AEAD streaming cipher used to
// encrypt a file, its thumbnail, and its metadata blob before upload.
//
// Design (chunked XChaCha20-Poly1305 streaming):
//   - A single random key is generated per file (returned to the caller so
//     it can be wrapped under a collection key and stored server-side).
//   - A random stream header (the base nonce) is generated once per stream
//     and stored alongside the ciphertext's object metadata.
//   - Each chunk is sealed with a nonce derived from the header and a
//     monotonically increasing counter, so chunks cannot be reordered or
//     replayed against a different position in the stream.
//   - This is the same shape as libsodium's crypto_secretstream construction
//     the upload pipeline's wire format assumes, built on a real, audited Go
//     AEAD rather than re-implementing one.
package cryptoengine

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/ente-io/uploadcore/internal/util/buffers"
)

const (
	// KeySize is the per-file symmetric key length.
	KeySize = chacha20poly1305.KeySize // 32 bytes

	// HeaderSize is the per-stream base nonce length, stored as the
	// object's decryption header.
	HeaderSize = chacha20poly1305.NonceSizeX // 24 bytes

	// ChunkSize is the plaintext size encrypted per AEAD seal call.
	ChunkSize = 4 * 1024 * 1024

	counterSize = 8
)

// chunkBufPool reuses ChunkSize-sized plaintext read buffers across
// EncryptAll calls, since a busy upload session encrypts many large files
// back to back.
var chunkBufPool = buffers.New(ChunkSize)

// GenerateKey returns a fresh random per-file key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("cryptoengine: generate key: %w", err)
	}
	return key, nil
}

// GenerateHeader returns a fresh random per-stream base nonce.
func GenerateHeader() ([]byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := rand.Read(header); err != nil {
		return nil, fmt.Errorf("cryptoengine: generate header: %w", err)
	}
	return header, nil
}

// chunkNonce derives the per-chunk nonce by XORing the stream header with a
// big-endian chunk counter in its low bytes, and flipping the low bit of the
// first nonce byte on the last chunk (a lightweight analogue of secretstream's
// final-chunk tag, so truncation of a stream is detectable by the caller
// checking the chunk count against the expected file size).
func chunkNonce(header []byte, counter uint64, last bool) []byte {
	nonce := make([]byte, len(header))
	copy(nonce, header)
	var ctrBytes [counterSize]byte
	binary.BigEndian.PutUint64(ctrBytes[:], counter)
	for i := 0; i < counterSize; i++ {
		nonce[len(nonce)-counterSize+i] ^= ctrBytes[i]
	}
	if last {
		nonce[0] ^= 0x01
	}
	return nonce
}

// StreamEncryptor seals a file's plaintext into a sequence of fixed-size
// ciphertext chunks under one key and stream header.
type StreamEncryptor struct {
	aead    cipher.AEAD
	header  []byte
	counter uint64
}

// NewStreamEncryptor creates an encryptor for a fresh key and header.
func NewStreamEncryptor() (*StreamEncryptor, []byte, []byte, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, nil, nil, err
	}
	header, err := GenerateHeader()
	if err != nil {
		return nil, nil, nil, err
	}
	enc, err := NewStreamEncryptorWithKey(key, header)
	if err != nil {
		return nil, nil, nil, err
	}
	return enc, key, header, nil
}

// NewStreamEncryptorWithKey resumes or reuses an existing key/header, e.g.
// when re-uploading content under an unchanged file key.
func NewStreamEncryptorWithKey(key, header []byte) (*StreamEncryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptoengine: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(header) != HeaderSize {
		return nil, fmt.Errorf("cryptoengine: header must be %d bytes, got %d", HeaderSize, len(header))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: new aead: %w", err)
	}
	headerCopy := make([]byte, HeaderSize)
	copy(headerCopy, header)
	return &StreamEncryptor{aead: aead, header: headerCopy}, nil
}

// SealChunk encrypts one chunk of plaintext. last must be true only for the
// final chunk of the stream.
func (e *StreamEncryptor) SealChunk(plaintext []byte, last bool) []byte {
	nonce := chunkNonce(e.header, e.counter, last)
	e.counter++
	return e.aead.Seal(nil, nonce, plaintext, nil)
}

// EncryptAll reads r to completion, encrypting it chunk by chunk and writing
// ciphertext to w. Returns the total plaintext byte count.
func (e *StreamEncryptor) EncryptAll(w io.Writer, r io.Reader) (int64, error) {
	bufp := chunkBufPool.Get()
	defer chunkBufPool.Put(bufp)
	buf := *bufp
	var total int64
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			last := errIsEOF(err)
			sealed := e.SealChunk(buf[:n], last)
			if _, werr := w.Write(sealed); werr != nil {
				return total, fmt.Errorf("cryptoengine: write chunk: %w", werr)
			}
			total += int64(n)
			if last {
				return total, nil
			}
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			if err == io.ErrUnexpectedEOF {
				return total, nil
			}
			return total, fmt.Errorf("cryptoengine: read source: %w", err)
		}
	}
}

func errIsEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}

// StreamDecryptor reverses StreamEncryptor.
type StreamDecryptor struct {
	aead    cipher.AEAD
	header  []byte
	counter uint64
}

// NewStreamDecryptor builds a decryptor for the given key and stream
// header (the object's decryption header).
func NewStreamDecryptor(key, header []byte) (*StreamDecryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptoengine: key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(header) != HeaderSize {
		return nil, fmt.Errorf("cryptoengine: header must be %d bytes, got %d", HeaderSize, len(header))
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: new aead: %w", err)
	}
	headerCopy := make([]byte, HeaderSize)
	copy(headerCopy, header)
	return &StreamDecryptor{aead: aead, header: headerCopy}, nil
}

// OpenChunk decrypts one chunk. last must match what the encryptor used for
// this chunk's position.
func (d *StreamDecryptor) OpenChunk(ciphertext []byte, last bool) ([]byte, error) {
	nonce := chunkNonce(d.header, d.counter, last)
	d.counter++
	plaintext, err := d.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: open chunk: %w", err)
	}
	return plaintext, nil
}

// SealBlob is a one-shot helper for small payloads (thumbnails, metadata
// blobs) that don't need chunking: a fresh key and header are generated,
// the whole plaintext is sealed as a single chunk, and both are returned
// alongside the ciphertext.
func SealBlob(plaintext []byte) (ciphertext, key, header []byte, err error) {
	enc, key, header, err := NewStreamEncryptor()
	if err != nil {
		return nil, nil, nil, err
	}
	return enc.SealChunk(plaintext, true), key, header, nil
}

// SealBlobWithKey seals plaintext as a single chunk under an existing key,
// generating a fresh header (used for thumbnail/metadata blobs that share a
// file's key but get their own header).
func SealBlobWithKey(plaintext, key []byte) (ciphertext, header []byte, err error) {
	header, err = GenerateHeader()
	if err != nil {
		return nil, nil, err
	}
	enc, err := NewStreamEncryptorWithKey(key, header)
	if err != nil {
		return nil, nil, err
	}
	return enc.SealChunk(plaintext, true), header, nil
}

// OpenBlob reverses SealBlob/SealBlobWithKey for a single-chunk payload.
func OpenBlob(ciphertext, key, header []byte) ([]byte, error) {
	dec, err := NewStreamDecryptor(key, header)
	if err != nil {
		return nil, err
	}
	return dec.OpenChunk(ciphertext, true)
}

// WrapKey seals a 32-byte file key under a collection (or user master) key,
// the symmetric-wrap operation used for CreateFileRequest.EncryptedKey.
func WrapKey(fileKey, wrappingKey []byte) (ciphertext, nonce []byte, err error) {
	aead, err := chacha20poly1305.NewX(wrappingKey)
	if err != nil {
		return nil, nil, fmt.Errorf("cryptoengine: wrap key: %w", err)
	}
	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("cryptoengine: wrap key nonce: %w", err)
	}
	return aead.Seal(nil, nonce, fileKey, nil), nonce, nil
}

// UnwrapKey reverses WrapKey, recovering the original file key — used on
// the update path, where the worker must recover the key it originally
// encrypted the file under.
func UnwrapKey(ciphertext, nonce, wrappingKey []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(wrappingKey)
	if err != nil {
		return nil, fmt.Errorf("cryptoengine: unwrap key: %w", err)
	}
	return aead.Open(nil, nonce, ciphertext, nil)
}
