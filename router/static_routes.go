package router

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

const assetsPrefix = "/assets"

func setStaticRoutes(r *gin.Engine, opts Options) {
	if opts.Assets == nil {
		return
	}
	handlers := []gin.HandlerFunc{
		gzip.Gzip(gzip.DefaultCompression),
		static.Serve(assetsPrefix, &embedFileSystem{FileSystem: http.FS(opts.Assets)}),
		func(c *gin.Context) {
			c.Status(http.StatusNotFound)
		},
	}
	r.GET(assetsPrefix+"/*filepath", handlers...)
	r.HEAD(assetsPrefix+"/*filepath", handlers...)
}

// embedFileSystem is a minimal static.ServeFileSystem wrapper for embed.FS sub folders.
// Credit: gin-contrib/static issue #19 pattern.
type embedFileSystem struct {
	http.FileSystem
}

func (e *embedFileSystem) Exists(prefix string, p string) bool {
	name := strings.TrimPrefix(p, prefix)
	if len(name) == len(p) || !strings.HasPrefix(name, "/") || name == "/" {
		return false
	}
	f, err := e.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	st, err := f.Stat()
	return err == nil && !st.IsDir()
}

func (e *embedFileSystem) Open(name string) (http.File, error) {
	if name == "/" {
		return nil, os.ErrNotExist
	}
	return e.FileSystem.Open(name)
}
