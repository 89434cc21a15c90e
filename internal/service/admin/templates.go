package admin

import "html/template"

type adminPageData struct {
	Title   string
	Tab     string
	Updated bool
	Notices template.HTML
	Help    template.HTML
	Forms   []licenseForm
}

type licenseForm struct {
	Action          string
	ItemName        string
	Version         string
	KeyField        string
	Key             string
	NonceField      string
	Nonce           string
	DeactivateField string
	Status          string
	Valid           bool
}

type pluginsPageData struct {
	Notices template.HTML
	Rows    []pluginRow
}

type pluginRow struct {
	ItemName   string
	Version    string
	NewVersion string
	Message    template.HTML
}

const layout = `{{define "head"}}<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.}}</title></head>
<body>
{{end}}{{define "foot"}}</body>
</html>
{{end}}`

var adminPageTemplate = template.Must(template.Must(template.New("admin").Parse(layout)).Parse(
	`{{template "head" .Title}}{{.Notices}}
{{if .Updated}}<div class="updated"><p>Settings saved.</p></div>
{{end}}{{if .Tab}}<h2 class="nav-tab-wrapper"><span class="nav-tab nav-tab-active">{{.Tab}}</span></h2>
{{.Help}}
{{range .Forms}}<form method="post" action="{{.Action}}" class="license">
<h3>{{.ItemName}} <small>{{.Version}}</small></h3>
<input type="text" name="{{.KeyField}}" value="{{.Key}}" size="40">
<input type="hidden" name="{{.NonceField}}" value="{{.Nonce}}">
<span class="license-status license-{{.Status}}">{{.Status}}</span>
{{if .Valid}}<input type="submit" class="button" name="{{.DeactivateField}}" value="Deactivate License">
{{else}}<input type="submit" class="button-primary" value="Activate License">
{{end}}</form>
{{end}}{{end}}{{template "foot"}}`))

var pluginsPageTemplate = template.Must(template.Must(template.New("plugins").Parse(layout)).Parse(
	`{{template "head" "Plugins"}}{{.Notices}}
<table class="plugins">
{{range .Rows}}<tr><td>{{.ItemName}}</td><td>{{.Version}}</td><td>{{if .NewVersion}}There is a new version of {{.ItemName}} available: {{.NewVersion}}.{{end}}{{.Message}}</td></tr>
{{end}}</table>
{{template "foot"}}`))
