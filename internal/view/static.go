// Package view holds the templ components for the HTML pages and the
// embedded static assets.
package view

import (
	"embed"
	"io/fs"
)

//go:embed static/*
var embeddedStatic embed.FS

// Static returns the stylesheet and scripts served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
