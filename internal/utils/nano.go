package utils

import gonanoid "github.com/matoous/go-nanoid/v2"

// Row ids are URL safe so they can sit in paths like /needs/:id unescaped.
const (
	idAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	DefaultIDSize = 24
)

func NanoID() string {
	return NanoIDSize(DefaultIDSize)
}

func NanoIDSize(size int) string {
	if size <= 0 {
		size = DefaultIDSize
	}

	return gonanoid.MustGenerate(idAlphabet, size)
}
