package server

import (
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	apperrors "github.com/namelens/edgegate/internal/errors"
)

// SiteHandler serves pre-rendered pages from a directory. "/about" resolves
// to about, about.html or about/index.html, in that order.
type SiteHandler struct {
	root fs.FS
}

// NewSiteHandler serves files below dir.
func NewSiteHandler(dir string) *SiteHandler {
	return &SiteHandler{root: os.DirFS(dir)}
}

func (h *SiteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, ok := h.resolve(r.URL.Path)
	if !ok {
		HandleError(w, r, apperrors.NewNotFoundError("The requested resource was not found"))
		return
	}

	f, err := h.root.Open(name)
	if err != nil {
		HandleError(w, r, apperrors.NewNotFoundError("The requested resource was not found"))
		return
	}
	defer f.Close() // nolint:errcheck // read-only file

	info, err := f.Stat()
	if err != nil {
		HandleError(w, r, apperrors.WrapInternal(r.Context(), err, "Unable to read page"))
		return
	}

	content, ok := f.(io.ReadSeeker)
	if !ok {
		HandleError(w, r, apperrors.NewInternalError("Page is not seekable"))
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), content)
}

func (h *SiteHandler) resolve(urlPath string) (string, bool) {
	clean := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if clean == "" {
		clean = "."
	}

	candidates := []string{clean, clean + ".html", path.Join(clean, "index.html")}
	for _, name := range candidates {
		if !fs.ValidPath(name) {
			continue
		}
		info, err := fs.Stat(h.root, name)
		if err != nil {
			continue
		}
		if info.Mode().IsRegular() {
			return name, true
		}
	}
	return "", false
}
