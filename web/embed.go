// Package web holds the page templates and static assets served by
// internal/http.
package web

import "embed"

// TemplatesFS holds index.html and the history and chart partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds style.css and app.js, served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
