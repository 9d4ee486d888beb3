package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	domth "github.com/bryanwahyu/hvac-owl/internal/domain/thermostat"
	"github.com/bryanwahyu/hvac-owl/internal/middleware"
)

const (
	imagesField      = "images"
	descriptionField = "description"
	multipartMemory  = 8 << 20
	sniffLen         = 512
)

// POST /api/analyze
// multipart: images (0..N files) + description, or JSON {"description": "..."}
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) (err error) {
	done := middleware.AnalysisStarted()
	defer func() { done(err != nil) }()

	limits := r.opts.Limits
	if limits.MaxFiles <= 0 || limits.MaxFileSize <= 0 {
		limits = domth.DefaultLimits()
	}
	req.Body = http.MaxBytesReader(w, req.Body, int64(limits.MaxFiles)*limits.MaxFileSize+multipartMemory)

	var in domth.AnalysisRequest
	ct, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	switch ct {
	case "application/json":
		var body struct {
			Description string `json:"description"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return &domth.ValidationError{Message: "Invalid request body", Details: err.Error()}
		}
		in.Description = middleware.SanitizeString(body.Description)
	case "multipart/form-data":
		if err := req.ParseMultipartForm(multipartMemory); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return err
			}
			return &domth.ValidationError{Message: "Invalid request body", Details: err.Error()}
		}
		defer req.MultipartForm.RemoveAll()

		in.Description = middleware.SanitizeString(req.FormValue(descriptionField))
		images, err := r.saveUploads(req.MultipartForm.File[imagesField], limits)
		if err != nil {
			return err
		}
		in.Images = images
	default:
		in.Description = middleware.SanitizeString(req.FormValue(descriptionField))
	}

	resp, err := r.analyzer.Analyze(req.Context(), in)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, resp)
}

// saveUploads validates every part first, then copies them into UploadDir.
// Nothing is left on disk when an error is returned.
func (r *Router) saveUploads(files []*multipart.FileHeader, limits domth.Limits) ([]domth.Image, error) {
	if err := domth.ValidateCount(len(files), limits); err != nil {
		return nil, err
	}
	types := make([]string, len(files))
	for i, fh := range files {
		mt, err := detectType(fh)
		if err != nil {
			return nil, err
		}
		if err := domth.ValidateFile(mt, fh.Size, limits); err != nil {
			log.Warn().Str("file", fh.Filename).Str("mime", mt).Int64("size", fh.Size).Msg("upload rejected")
			return nil, err
		}
		types[i] = mt
	}

	images := make([]domth.Image, 0, len(files))
	for i, fh := range files {
		img, err := r.saveUpload(fh, types[i])
		if err != nil {
			for _, saved := range images {
				os.Remove(saved.Path)
			}
			return nil, fmt.Errorf("save upload %q: %w", fh.Filename, err)
		}
		images = append(images, img)
	}
	return images, nil
}

func (r *Router) saveUpload(fh *multipart.FileHeader, mimeType string) (domth.Image, error) {
	src, err := fh.Open()
	if err != nil {
		return domth.Image{}, err
	}
	defer src.Close()

	name := middleware.SanitizeFilename(fh.Filename)
	path := filepath.Join(r.opts.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return domth.Image{}, err
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return domth.Image{}, err
	}
	return domth.Image{Filename: name, Path: path, MIMEType: mimeType, Size: n}, nil
}

// detectType trusts the declared part type, sniffing only when the client sent none
func detectType(fh *multipart.FileHeader) (string, error) {
	declared := fh.Header.Get("Content-Type")
	if declared != "" && declared != "application/octet-stream" {
		return declared, nil
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
