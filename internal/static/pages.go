package static

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"syscall"
)

const notFoundTemplate = `
<html>
  <head><title>404 - File Not Found</title></head>
  <body style="font-family: Arial, sans-serif; text-align: center; padding: 50px;">
    <h1>🔍 File Not Found</h1>
    <p>The file <code>%s</code> was not found.</p>
    <h3>Available files:</h3>
    <div style="margin: 20px;">
      <a href="/index.html" style="display: inline-block; margin: 10px; padding: 10px 20px; background: #2563eb; color: white; text-decoration: none; border-radius: 5px;">📱 Mobile App</a>
      <a href="/mobile.html" style="display: inline-block; margin: 10px; padding: 10px 20px; background: #16a34a; color: white; text-decoration: none; border-radius: 5px;">🚀 Demo Page</a>
    </div>
  </body>
</html>
`

func notFoundPage(rawURL string) []byte {
	return []byte(fmt.Sprintf(notFoundTemplate, html.EscapeString(rawURL)))
}

func serverErrorBody(err error) []byte {
	return []byte("Server Error: " + ErrorCode(err))
}

var errnoNames = map[syscall.Errno]string{
	syscall.EACCES:       "EACCES",
	syscall.EPERM:        "EPERM",
	syscall.EISDIR:       "EISDIR",
	syscall.ENOTDIR:      "ENOTDIR",
	syscall.ELOOP:        "ELOOP",
	syscall.ENAMETOOLONG: "ENAMETOOLONG",
	syscall.EMFILE:       "EMFILE",
	syscall.ENFILE:       "ENFILE",
	syscall.EIO:          "EIO",
	syscall.EINVAL:       "EINVAL",
	syscall.EBUSY:        "EBUSY",
}

// ErrorCode names a read failure the way operators know it from the shell:
// the errno symbol when one is available.
func ErrorCode(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		if name, ok := errnoNames[errno]; ok {
			return name
		}
		return fmt.Sprintf("ERRNO%d", uintptr(errno))
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return "EACCES"
	case errors.Is(err, fs.ErrInvalid):
		return "EINVAL"
	default:
		return "EIO"
	}
}
