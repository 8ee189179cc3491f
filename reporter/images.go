package reporter

import (
	"fmt"
	"path/filepath"
	"strings"
)

var acceptedImageExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

// ImageExt returns the extension of an uploaded file name as the client sent it.
// Only png, jpg and jpeg are accepted, in any case.
func ImageExt(filename string) (string, error) {
	ext := filepath.Ext(strings.TrimSpace(filename))
	if _, ok := acceptedImageExts[strings.ToLower(ext)]; !ok {
		return "", fmt.Errorf("%w: %q (accepted: png, jpg, jpeg)", ErrUnsupportedImage, filename)
	}
	return ext, nil
}

// PersistImage stores photo as {reportID}{ext} and returns the stored path.
// With no photo it returns "" without touching storage.
func PersistImage(store Storage, photo *Photo, reportID string) (string, error) {
	if photo == nil {
		return "", nil
	}
	ext, err := ImageExt(photo.Filename)
	if err != nil {
		return "", &ImageWriteError{Path: reportID, Err: err}
	}
	name := reportID + ext
	p, err := store.SaveImage(photo.Data, name)
	if err != nil {
		return "", &ImageWriteError{Path: name, Err: err}
	}
	return p, nil
}
