package embeddedwallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"runtime/debug"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 32
	// 2^15 keeps unlocking interactive on small devices.
	scryptN = 32768
)

// sealKey encrypts the root private key with a key stretched from password.
// The result is nonce || ciphertext || salt.
func sealKey(privateKey, password []byte) ([]byte, error) {
	defer debug.FreeOSMemory()

	if len(privateKey) == 0 {
		return nil, fmt.Errorf("missing plaintext private key")
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("missing encryption password")
	}

	key, salt, err := deriveKey(password, nil)
	if err != nil {
		return nil, err
	}

	ciphertext, err := encrypt(key, privateKey)
	if err != nil {
		return nil, err
	}
	return append(ciphertext, salt...), nil
}

func unsealKey(sealed, password []byte) ([]byte, error) {
	defer debug.FreeOSMemory()

	if len(sealed) <= saltSize {
		return nil, fmt.Errorf("missing encrypted private key")
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("missing decryption password")
	}

	salt := sealed[len(sealed)-saltSize:]
	data := sealed[:len(sealed)-saltSize]

	key, _, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := decrypt(key, data)
	if err != nil {
		return nil, fmt.Errorf("invalid password")
	}
	return plaintext, nil
}

func deriveKey(password, salt []byte) ([]byte, []byte, error) {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, nil, err
		}
	}
	key, err := scrypt.Key(password, salt, scryptN, 8, 1, 32)
	if err != nil {
		return nil, nil, err
	}
	return key, salt, nil
}

// encrypt seals plaintext with AES-GCM, the result is nonce || ciphertext.
func encrypt(key, plaintext []byte) ([]byte, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err = rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(key, ciphertext []byte) ([]byte, error) {
	blockCipher, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(blockCipher)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize()+gcm.Overhead() {
		return nil, fmt.Errorf("ciphertext too short")
	}
	// #nosec G407
	nonce, text := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, text, nil)
}
