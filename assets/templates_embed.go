// Where: assets/templates_embed.go
// What: Embed the quickstart configuration template.
// Why: Keep the init command self-contained in the installed binary.
package assets

import "embed"

//go:embed templates/*.tmpl
var TemplatesFS embed.FS
