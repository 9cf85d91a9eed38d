// Package views renderiza las páginas HTML mínimas del servicio. El flujo
// de reentry es browser-facing, así que los errores se muestran como página
// y no como JSON.
package views

import (
	"html/template"
	"net/http"
)

// GenericLoginError es el único mensaje que ve el usuario ante cualquier
// falla del flujo. Nunca se filtra el motivo real.
const GenericLoginError = "We are unable to sign you in right now. Please try again later."

const errorPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <title>Sign-in error</title>
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <style>
    body { font-family: system-ui, sans-serif; margin: 4rem auto; max-width: 32rem; padding: 0 1rem; color: #222; }
    h1 { font-size: 1.4rem; }
    a { color: #0a58ca; }
  </style>
</head>
<body>
  <h1>Sign-in error</h1>
  <p>{{.Message}}</p>
  <p><a href="{{.HomeURL}}">Return to the home page</a></p>
</body>
</html>
`

type Views struct {
	errTpl  *template.Template
	homeURL string
}

func New(homeURL string) *Views {
	if homeURL == "" {
		homeURL = "/"
	}
	return &Views{
		errTpl:  template.Must(template.New("error").Parse(errorPage)),
		homeURL: homeURL,
	}
}

// RenderLoginError escribe la página de error genérica.
func (v *Views) RenderLoginError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	_ = v.errTpl.Execute(w, struct {
		Message string
		HomeURL string
	}{Message: GenericLoginError, HomeURL: v.homeURL})
}
