package handlers

import (
	"embed"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

//go:embed views/*.html
var viewsFS embed.FS

// Views is the template engine the relay app must be created with.
func Views() *html.Engine {
	return html.NewFileSystem(http.FS(viewsFS), ".html")
}
