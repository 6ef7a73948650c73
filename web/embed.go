package web

import "embed"

// FS contains the embedded monitor viewer assets (HTML, CSS, JS).
//
//go:embed *.html *.css *.js
var FS embed.FS
