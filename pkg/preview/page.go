package preview

import "html/template"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; color: #222; line-height: 1.5; }
pre { background: #f5f5f5; padding: .75rem; overflow-x: auto; }
.diagram { margin: 2rem 0; text-align: center; }
.diagram img { max-width: 100%; height: auto; }
.panel { border: 1px solid #ccc; border-radius: 4px; padding: 1rem; text-align: left; color: #555; }
.panel.failed { border-color: #d9822b; background: #fff8f0; }
footer { margin-top: 3rem; font-size: .9rem; }
</style>
</head>
<body>
<article>{{.Body}}</article>
<section class="diagram" data-status="{{.Status}}" data-repair="{{.Repair}}">
{{- if eq .Status "rendered"}}
<img src="/diagram.svg" alt="Diagram" width="{{.Width}}" height="{{.Height}}">
{{- else if eq .Status "failed"}}
<div class="panel failed">
<p>{{.Message}}</p>
<pre>{{.Source}}</pre>
<form method="post" action="/diagram/retry"><button type="submit">Retry repair</button></form>
</div>
{{- else}}
<div class="panel empty"><p>{{.Message}}</p></div>
{{- end}}
</section>
<footer><a href="/export.md">Download Markdown</a> · <a href="/export.pdf">Download PDF</a></footer>
</body>
</html>
`))
