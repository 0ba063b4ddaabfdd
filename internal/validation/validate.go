package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/input-output-hk/catalyst-forge-libs/storage/errors"
)

const (
	maxBlobNameLength      = 1024
	maxObjectKeyLength     = 1024
	maxFileNameLength      = 255
	maxDirectoryPathLength = 2048
	maxMetadataSize        = 8 * 1024
)

// Containers the service creates itself; they do not follow the DNS rules.
var specialContainers = map[string]bool{
	"$root": true,
	"$logs": true,
	"$web":  true,
}

// Characters Azure Files rejects in directory and file names.
const invalidFileChars = `"\:|<>*?`

var (
	metadataKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	mimePattern        = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-+.]*\/[a-zA-Z0-9][a-zA-Z0-9\-+.]*(\s*;.*)?$`)
)

// ValidateContainerName validates a blob container name.
// Names are 3-63 lowercase letters, digits and single hyphens, starting and
// ending with a letter or digit.
func ValidateContainerName(container string) error {
	if specialContainers[container] {
		return nil
	}
	if msg := dnsNameProblem(container, false); msg != "" {
		return errors.NewError("validateContainerName", errors.ErrInvalidInput).
			WithContainer(container).
			WithMessage("container " + msg)
	}
	return nil
}

// ValidateShareName validates a file share name. Shares follow the container rules.
func ValidateShareName(share string) error {
	if msg := dnsNameProblem(share, false); msg != "" {
		return errors.NewError("validateShareName", errors.ErrInvalidInput).
			WithContainer(share).
			WithMessage("share " + msg)
	}
	return nil
}

// ValidateBucketName validates an S3 bucket name. Buckets additionally allow
// single dots and must not look like an IP address.
func ValidateBucketName(bucket string) error {
	msg := dnsNameProblem(bucket, true)
	if msg == "" && isIPAddress(bucket) {
		msg = "name cannot be formatted as an IP address"
	}
	if msg != "" {
		return errors.NewError("validateBucketName", errors.ErrInvalidInput).
			WithContainer(bucket).
			WithMessage("bucket " + msg)
	}
	return nil
}

// dnsNameProblem describes why name is not a DNS-style resource name, or
// returns "" when it is.
func dnsNameProblem(name string, allowDots bool) string {
	if name == "" {
		return "name cannot be empty"
	}
	if len(name) < 3 || len(name) > 63 {
		return "name must be between 3 and 63 characters long"
	}
	for _, char := range name {
		valid := (char >= '0' && char <= '9') || (char >= 'a' && char <= 'z') || char == '-' ||
			(allowDots && char == '.')
		if !valid {
			if allowDots {
				return "name can only contain lowercase letters, numbers, dots, and hyphens"
			}
			return "name can only contain lowercase letters, numbers, and hyphens"
		}
	}
	if !isAlphaNum(name[0]) || !isAlphaNum(name[len(name)-1]) {
		return "name must start and end with a letter or number"
	}
	if strings.Contains(name, "--") || strings.Contains(name, "..") ||
		strings.Contains(name, ".-") || strings.Contains(name, "-.") {
		return "name cannot contain adjacent special characters"
	}
	return ""
}

func isAlphaNum(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'z')
}

// isIPAddress checks if a string is formatted as an IPv4 address
func isIPAddress(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" || len(part) > 3 {
			return false
		}
		num := 0
		for _, char := range part {
			if char < '0' || char > '9' {
				return false
			}
			num = num*10 + int(char-'0')
		}
		if num > 255 {
			return false
		}
	}
	return true
}

// ValidateBlobName validates a blob name: 1-1024 characters, no control
// characters, not ending in a dot or slash.
func ValidateBlobName(name string) error {
	var msg string
	switch {
	case name == "":
		msg = "blob name cannot be empty"
	case len(name) > maxBlobNameLength:
		msg = fmt.Sprintf("blob name cannot exceed %d characters", maxBlobNameLength)
	case hasControlCharacters(name):
		msg = "blob name cannot contain control characters"
	case strings.HasSuffix(name, ".") || strings.HasSuffix(name, "/"):
		msg = "blob name cannot end with a dot or slash"
	default:
		return nil
	}
	return errors.NewError("validateBlobName", errors.ErrInvalidInput).WithName(name).WithMessage(msg)
}

// ValidateObjectKey validates an S3 object key.
func ValidateObjectKey(key string) error {
	var msg string
	switch {
	case key == "":
		msg = "object key cannot be empty"
	case len(key) > maxObjectKeyLength:
		msg = fmt.Sprintf("object key cannot exceed %d characters", maxObjectKeyLength)
	case hasControlCharacters(key):
		msg = "object key cannot contain control characters"
	default:
		return nil
	}
	return errors.NewError("validateObjectKey", errors.ErrInvalidInput).WithName(key).WithMessage(msg)
}

// ValidateDirectoryPath validates a slash-separated directory path inside a
// share. The empty path is the share root.
func ValidateDirectoryPath(dir string) error {
	if dir == "" {
		return nil
	}
	if len(dir) > maxDirectoryPathLength {
		return errors.NewError("validateDirectoryPath", errors.ErrInvalidInput).
			WithName(dir).
			WithMessage(fmt.Sprintf("directory path cannot exceed %d characters", maxDirectoryPathLength))
	}
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		if msg := fileNameProblem(segment); msg != "" {
			return errors.NewError("validateDirectoryPath", errors.ErrInvalidInput).
				WithName(dir).
				WithMessage("directory " + msg)
		}
	}
	return nil
}

// ValidateFileName validates a single Azure Files file name.
func ValidateFileName(name string) error {
	if msg := fileNameProblem(name); msg != "" {
		return errors.NewError("validateFileName", errors.ErrInvalidInput).
			WithName(name).
			WithMessage("file " + msg)
	}
	return nil
}

func fileNameProblem(name string) string {
	switch {
	case name == "":
		return "name cannot be empty"
	case len(name) > maxFileNameLength:
		return fmt.Sprintf("name cannot exceed %d characters", maxFileNameLength)
	case strings.ContainsAny(name, invalidFileChars+"/"):
		return "name cannot contain any of " + invalidFileChars + "/"
	case hasControlCharacters(name):
		return "name cannot contain control characters"
	case strings.HasSuffix(name, "."):
		return "name cannot end with a dot"
	}
	return ""
}

// hasControlCharacters checks for control characters in the name
func hasControlCharacters(s string) bool {
	for _, char := range s {
		if unicode.IsControl(char) {
			return true
		}
	}
	return false
}

// ValidateMetadata validates metadata names and values. Names must be valid
// identifiers, values printable ASCII, and the whole set at most 8 KiB.
func ValidateMetadata(metadata map[string]string) error {
	total := 0
	for key, value := range metadata {
		if !metadataKeyPattern.MatchString(key) {
			return errors.NewError("validateMetadata", errors.ErrInvalidInput).
				WithMessage(fmt.Sprintf("metadata key %q must start with a letter or underscore "+
					"and contain only letters, digits and underscores", key))
		}
		for _, char := range value {
			if char < 32 || char > 126 {
				return errors.NewError("validateMetadata", errors.ErrInvalidInput).
					WithMessage(fmt.Sprintf("metadata value for %q can only contain printable ASCII characters", key))
			}
		}
		total += len(key) + len(value)
	}
	if total > maxMetadataSize {
		return errors.NewError("validateMetadata", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("metadata cannot exceed %d bytes in total", maxMetadataSize))
	}
	return nil
}

// ValidateContentType validates that a content type looks like a MIME type.
func ValidateContentType(contentType string) error {
	if contentType == "" {
		return nil
	}
	if !mimePattern.MatchString(contentType) {
		return errors.NewError("validateContentType", errors.ErrInvalidInput).
			WithMessage("content type must be a valid MIME type")
	}
	return nil
}

// ValidateRange validates an inclusive byte range. A negative end means
// "through the end".
func ValidateRange(start, end int64) error {
	if start < 0 {
		return errors.NewError("validateRange", errors.ErrInvalidInput).
			WithMessage("range start cannot be negative")
	}
	if end >= 0 && end < start {
		return errors.NewError("validateRange", errors.ErrInvalidInput).
			WithMessage(fmt.Sprintf("range end %d is before start %d", end, start))
	}
	return nil
}

// ValidateTransferSettings validates concurrency and retry settings. Zero is
// allowed: zero connections run sequentially and zero retries make one attempt.
func ValidateTransferSettings(maxConnections, maxRetries int, retryWait time.Duration) error {
	if maxConnections < 0 {
		return errors.NewError("validateTransferSettings", errors.ErrInvalidInput).
			WithMessage("max connections cannot be negative")
	}
	if maxRetries < 0 {
		return errors.NewError("validateTransferSettings", errors.ErrInvalidInput).
			WithMessage("max retries cannot be negative")
	}
	if retryWait < 0 {
		return errors.NewError("validateTransferSettings", errors.ErrInvalidInput).
			WithMessage("retry wait cannot be negative")
	}
	return nil
}
