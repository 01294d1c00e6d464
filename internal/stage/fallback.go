package stage

import (
	"bytes"
	"html/template"
	"os"
	"path/filepath"
)

// Fallback messages.
const (
	MessageNoOutput  = "Project built but no output found"
	MessageCompleted = "Deployment completed"
	buildFailedFmt   = "Build failed: %s"
)

var fallbackTemplate = template.Must(template.New("fallback").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: system-ui, -apple-system, sans-serif;
            margin: 0;
            padding: 40px;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            min-height: 100vh;
            display: flex;
            align-items: center;
            justify-content: center;
        }
        .container {
            text-align: center;
            background: rgba(255,255,255,0.1);
            padding: 40px;
            border-radius: 20px;
        }
        h1 { margin: 0 0 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
    </div>
</body>
</html>
`))

// RenderFallback returns the fallback page with title and message HTML-escaped.
func RenderFallback(title, message string) ([]byte, error) {
	var buf bytes.Buffer
	err := fallbackTemplate.Execute(&buf, struct{ Title, Message string }{title, message})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFallback ensures dir exists and writes the fallback page as its
// index.html. Other contents of dir are left untouched.
func WriteFallback(dir, title, message string) error {
	page, err := RenderFallback(title, message)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, IndexFile), page, 0o644)
}
