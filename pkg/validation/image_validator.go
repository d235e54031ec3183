package validation

import (
	"encoding/base64"
	"fmt"
	"strings"

	apperrors "go-leaf-relay/internal/errors"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMediaTypes are the image formats the upstream vision API accepts.
var DefaultMediaTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ImagePayload is a decoded and sniffed client image.
type ImagePayload struct {
	// Data is the base64 text to forward upstream, without any data URL prefix.
	Data      string
	MediaType string
	Size      int
}

// ImageValidator checks inline base64 images before they are forwarded.
type ImageValidator struct {
	allowedMediaTypes []string
}

// NewImageValidator creates an image validator accepting DefaultMediaTypes
func NewImageValidator() *ImageValidator {
	return &ImageValidator{allowedMediaTypes: DefaultMediaTypes}
}

// NewImageValidatorWithOptions creates an image validator with a custom media type list
func NewImageValidatorWithOptions(mediaTypes []string) *ImageValidator {
	return &ImageValidator{allowedMediaTypes: mediaTypes}
}

// ValidateImage decodes the payload, detects its real media type and checks it against
// the caller's declared type. A data URL prefix counts as a declaration.
func (v *ImageValidator) ValidateImage(encoded, declaredType string) (*ImagePayload, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, apperrors.NewInvalidRequestError("no image data provided", nil)
	}

	data, prefixType, err := splitDataURL(encoded)
	if err != nil {
		return nil, err
	}
	declared := normalizeMediaType(declaredType)
	if prefixType != "" {
		if declared != "" && declared != prefixType {
			return nil, apperrors.NewInvalidRequestError(
				fmt.Sprintf("media_type %q does not match data URL type %q", declared, prefixType), nil)
		}
		declared = prefixType
	}

	raw, err := decodeBase64(data)
	if err != nil {
		return nil, apperrors.NewInvalidRequestError("image is not valid base64", err)
	}
	if len(raw) == 0 {
		return nil, apperrors.NewInvalidRequestError("no image data provided", nil)
	}

	detected := normalizeMediaType(mimetype.Detect(raw).String())
	if !v.isMediaTypeAllowed(detected) {
		return nil, apperrors.NewInvalidRequestError(
			fmt.Sprintf("unsupported image type %q (allowed: %s)", detected, strings.Join(v.allowedMediaTypes, ", ")), nil)
	}
	if declared != "" && declared != detected {
		return nil, apperrors.NewInvalidRequestError(
			fmt.Sprintf("declared media_type %q does not match image content %q", declared, detected), nil)
	}

	return &ImagePayload{
		Data:      base64.StdEncoding.EncodeToString(raw),
		MediaType: detected,
		Size:      len(raw),
	}, nil
}

func (v *ImageValidator) isMediaTypeAllowed(mediaType string) bool {
	for _, allowed := range v.allowedMediaTypes {
		if mediaType == allowed {
			return true
		}
	}
	return false
}

// splitDataURL strips a "data:<type>;base64," prefix and returns the declared type.
func splitDataURL(s string) (string, string, error) {
	if !strings.HasPrefix(s, "data:") {
		return s, "", nil
	}
	header, payload, ok := strings.Cut(s, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return "", "", apperrors.NewInvalidRequestError("image data URL must be base64 encoded", nil)
	}
	mediaType := strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
	return payload, normalizeMediaType(mediaType), nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', ' ', '\t':
			return -1
		}
		return r
	}, s)

	encodings := []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	}
	var firstErr error
	for _, enc := range encodings {
		raw, err := enc.DecodeString(s)
		if err == nil {
			return raw, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, firstErr
}

func normalizeMediaType(mediaType string) string {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.Index(mediaType, ";"); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}
	if mediaType == "image/jpg" {
		return "image/jpeg"
	}
	return mediaType
}
