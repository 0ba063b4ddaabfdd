// Package testutil provides test helper functions.
package testutil

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// GenerateRandomData generates random bytes of the specified size.
// This is useful for creating test data for uploads.
func GenerateRandomData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(rand.Intn(256))
	}
	return data
}

// GeneratePatternData generates size bytes whose content depends on the offset,
// so misplaced chunks are detected by a byte comparison.
func GeneratePatternData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*7 + i/256)
	}
	return data
}

// GenerateTestName generates a unique blob or object name with optional prefix.
func GenerateTestName(prefix string) string {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return fmt.Sprintf("%stest-%d-%d", prefix, time.Now().UnixNano(), rand.Int63n(100000))
}

// GenerateTestContainerName generates a valid container, share or bucket name.
func GenerateTestContainerName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano()%1_000_000_000)
}

// CalculateMD5 returns the hex MD5 of data.
func CalculateMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// ResponseError builds an Azure service error with the given status and error code,
// shaped like the errors returned by the SDK pipeline.
func ResponseError(status int, code string) error {
	req, _ := http.NewRequest(http.MethodGet, "https://devstoreaccount1.blob.core.windows.net/", nil)
	header := http.Header{}
	header.Set("x-ms-error-code", code)
	return &azcore.ResponseError{
		ErrorCode:  code,
		StatusCode: status,
		RawResponse: &http.Response{
			Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
			StatusCode: status,
			Header:     header,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Request:    req,
		},
	}
}

// NonSeekableReader hides everything but Read, like a pipe.
type NonSeekableReader struct {
	R io.Reader
}

func (n NonSeekableReader) Read(p []byte) (int, error) {
	return n.R.Read(p)
}

func bytesReader(data []byte) io.Reader {
	return bytes.NewReader(data)
}
