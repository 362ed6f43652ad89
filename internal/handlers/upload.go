package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/archvision/archvision-backend/internal/services"
)

// readImageUpload reads a multipart image file, enforcing the image/*
// content type and the 10MB cap against both the declared size and the
// actual bytes.
func readImageUpload(file *multipart.FileHeader) ([]byte, string, error) {
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("file must be an image (got content type %q)", contentType)
	}
	if file.Size > services.MaxImageBytes {
		return nil, "", fmt.Errorf("image file too large (max 10MB)")
	}

	f, err := file.Open()
	if err != nil {
		return nil, "", fmt.Errorf("read uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, services.MaxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read uploaded file: %w", err)
	}
	if len(data) > services.MaxImageBytes {
		return nil, "", fmt.Errorf("image file too large (max 10MB)")
	}
	return data, contentType, nil
}
