package compositor

import "errors"

// Pipeline errors. Callers map ErrInvalidInput, ErrAssetNotFound and ErrDecode
// to a bad request; everything else is an internal failure. ErrAssetUnusable
// means a known sticker's file is missing or broken on the server.
var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAssetNotFound = errors.New("sticker asset not found")
	ErrAssetUnusable = errors.New("sticker asset file unusable")
	ErrDecode        = errors.New("failed to decode image")
	ErrEncode        = errors.New("failed to encode image")
	ErrTimeout       = errors.New("image processing timed out")
)

// IsBadInput reports whether err was caused by the client's request
func IsBadInput(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrAssetNotFound) ||
		errors.Is(err, ErrDecode)
}
