package api

import (
	"io"
	"log"
	"os"
	"testing"
)

func withLogOutput(t *testing.T, w io.Writer, fn func()) {
	t.Helper()
	log.SetOutput(w)
	defer log.SetOutput(os.Stderr)
	fn()
}
