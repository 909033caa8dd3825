package codec

import (
	"bytes"
	"crypto/cipher"
	"errors"
)

var errPadding = errors.New("invalid padding")

func encryptECB(b cipher.Block, dst, src []byte) {
	bs := b.BlockSize()
	for i := 0; i < len(src); i += bs {
		b.Encrypt(dst[i:i+bs], src[i:i+bs])
	}
}

func decryptECB(b cipher.Block, dst, src []byte) {
	bs := b.BlockSize()
	for i := 0; i < len(src); i += bs {
		b.Decrypt(dst[i:i+bs], src[i:i+bs])
	}
}

func pkcs7Pad(src []byte, bs int) []byte {
	n := bs - len(src)%bs

	out := make([]byte, len(src), len(src)+n)
	copy(out, src)

	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(src []byte, bs int) ([]byte, error) {
	if len(src) == 0 || len(src)%bs != 0 {
		return nil, errPadding
	}

	n := int(src[len(src)-1])
	if n == 0 || n > bs {
		return nil, errPadding
	}

	for _, b := range src[len(src)-n:] {
		if int(b) != n {
			return nil, errPadding
		}
	}

	return src[:len(src)-n], nil
}
