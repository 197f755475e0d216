// Package base62 provides random base62 strings, suitable for opaque tokens
// that must survive URL encoding untouched.
package base62

import (
	uuid "github.com/hashicorp/go-uuid"
)

const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const csLen = byte(len(charset))

// Random generates a random string of the given length using the base62
// character set.
func Random(length int) (string, error) {
	output := make([]byte, 0, length)

	// request a bit more than length to reduce the chance of needing to read
	// more than once
	batchSize := length + length/4

	for {
		buf, err := uuid.GenerateRandomBytes(batchSize)
		if err != nil {
			return "", err
		}
		for _, b := range buf {
			// skip values that would introduce a modulo bias
			if b < (csLen * 4) {
				output = append(output, charset[b%csLen])
				if len(output) == length {
					return string(output), nil
				}
			}
		}
	}
}
