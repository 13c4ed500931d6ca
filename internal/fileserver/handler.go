package fileserver

import (
	"fmt"
	"html"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"
)

// serveHandler resolves the request path beneath the base directory and
// serves it from the cache. Only paths at or under a served root are
// visible.
func (s *Server) serveHandler(c *gin.Context) {
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		c.Status(http.StatusMethodNotAllowed)
		return
	}

	urlPath := path.Clean("/" + c.Request.URL.Path)
	target := filepath.Join(s.baseDir, filepath.FromSlash(urlPath))

	if !s.allowed(target) {
		c.Status(http.StatusNotFound)
		return
	}

	info, err := os.Stat(target)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	if info.IsDir() {
		if !strings.HasSuffix(c.Request.URL.Path, "/") {
			c.Redirect(http.StatusMovedPermanently, urlPath+"/")
			return
		}
		s.serveDir(c, target, urlPath)
		return
	}

	s.serveFile(c, target)
}

// allowed reports whether target sits at or beneath one of the served
// roots.
func (s *Server) allowed(target string) bool {
	for _, root := range s.roots {
		if target == root || strings.HasPrefix(target, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (s *Server) serveFile(c *gin.Context, target string) {
	data, err := s.cache.Get(target)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	ctype := mime.TypeByExtension(filepath.Ext(target))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}

	if c.Request.Method == http.MethodHead {
		c.Header("Content-Type", ctype)
		c.Header("Content-Length", fmt.Sprintf("%d", len(data)))
		c.Status(http.StatusOK)
		return
	}

	c.Data(http.StatusOK, ctype, data)
	s.reg.BytesServed.Add(float64(len(data)))
}

// serveDir writes a minimal index listing, directories first.
func (s *Server) serveDir(c *gin.Context, target, urlPath string) {
	entries, err := os.ReadDir(target)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return entries[i].Name() < entries[j].Name()
	})

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><title>Index of %s</title></head><body>\n",
		html.EscapeString(urlPath))
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<ul>\n", html.EscapeString(urlPath))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		escaped := html.EscapeString(name)
		fmt.Fprintf(&b, "<li><a href=\"%s\">%s</a></li>\n", escaped, escaped)
	}
	b.WriteString("</ul>\n</body></html>\n")

	body := []byte(b.String())
	c.Data(http.StatusOK, "text/html; charset=utf-8", body)
	s.reg.BytesServed.Add(float64(len(body)))
}

// statusHandler reports process-level health for debugging hung test runs.
func (s *Server) statusHandler(c *gin.Context) {
	status := gin.H{
		"pid":        os.Getpid(),
		"uptime":     time.Since(s.started).String(),
		"goroutines": runtime.NumGoroutine(),
		"base_dir":   s.baseDir,
		"roots":      s.roots,
		"cached":     s.cache.Len(),
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			status["rss_bytes"] = mem.RSS
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			status["cpu_percent"] = cpu
		}
	}

	c.JSON(http.StatusOK, status)
}
