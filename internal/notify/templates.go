package notify

import (
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"
)

var funcs = map[string]any{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"pct":   func(d decimal.Decimal) string { return d.String() },
}

const htmlTemplates = `
{{define "price"}}{{if .Price.HasDiscount}}
<p>Precio original: <s>${{money .Price.Original}}</s><br>
Descuento ({{pct .Price.DiscountPercent}}%{{if .PromoCode}}, código {{.PromoCode}}{{end}}): -${{money .Price.DiscountAmount}}<br>
<strong>Total: ${{money .Price.Final}}</strong></p>
{{else}}<p><strong>Total: ${{money .Price.Final}}</strong></p>{{end}}{{end}}

{{define "confirmation"}}<h2>¡Tu cita está confirmada!</h2>
<p>Hola {{.ClientName}},</p>
<p>Agendamos tu cita para <strong>{{.Service}}</strong> el <strong>{{.Date}}</strong> a las <strong>{{.Time}}</strong>{{if .Duration}} ({{.Duration}} min){{end}}.</p>
{{if .Description}}<p>Notas: {{.Description}}</p>{{end}}
{{template "price" .}}
<p>Te esperamos.</p>{{end}}

{{define "admin_notice"}}<h2>Nueva cita agendada</h2>
<ul>
<li>Cliente: {{.ClientName}}</li>
<li>Email: {{.ClientEmail}}</li>
<li>Teléfono: {{.ClientPhone}}</li>
<li>Servicio: {{.Service}}</li>
<li>Fecha: {{.Date}} {{.Time}}</li>
{{if .Description}}<li>Notas: {{.Description}}</li>{{end}}
</ul>
{{template "price" .}}{{end}}

{{define "cancellation"}}<h2>Tu cita fue cancelada</h2>
<p>Hola {{.ClientName}},</p>
<p>Tu cita para <strong>{{.Service}}</strong> del <strong>{{.Date}}</strong> a las <strong>{{.Time}}</strong> fue cancelada.</p>
<p>Si deseas reagendar, visita nuestra página.</p>{{end}}

{{define "reminder"}}<h2>Recordatorio de tu cita</h2>
<p>Hola {{.ClientName}},</p>
<p>Te recordamos tu cita de hoy para <strong>{{.Service}}</strong> a las <strong>{{.Time}}</strong>.</p>
{{if .Description}}<p>Notas: {{.Description}}</p>{{end}}{{end}}

{{define "digest"}}<h2>Citas del día {{.Date}}</h2>
<table>
<tr><th>Hora</th><th>Cliente</th><th>Email</th><th>Teléfono</th><th>Servicio</th></tr>
{{range .Items}}<tr><td>{{.Time}}</td><td>{{.ClientName}}</td><td>{{.ClientEmail}}</td><td>{{.ClientPhone}}</td><td>{{.Service}}</td></tr>
{{end}}</table>{{end}}
`

const textTemplates = `
{{define "price"}}{{if .Price.HasDiscount}}Precio original: ${{money .Price.Original}}
Descuento ({{pct .Price.DiscountPercent}}%{{if .PromoCode}}, código {{.PromoCode}}{{end}}): -${{money .Price.DiscountAmount}}
Total: ${{money .Price.Final}}{{else}}Total: ${{money .Price.Final}}{{end}}{{end}}

{{define "confirmation"}}Hola {{.ClientName}},

Tu cita para {{.Service}} quedó agendada el {{.Date}} a las {{.Time}}.
{{if .Description}}Notas: {{.Description}}
{{end}}
{{template "price" .}}
{{end}}

{{define "admin_notice"}}Nueva cita agendada

Cliente: {{.ClientName}}
Email: {{.ClientEmail}}
Teléfono: {{.ClientPhone}}
Servicio: {{.Service}}
Fecha: {{.Date}} {{.Time}}
{{if .Description}}Notas: {{.Description}}
{{end}}
{{template "price" .}}
{{end}}

{{define "cancellation"}}Hola {{.ClientName}},

Tu cita para {{.Service}} del {{.Date}} a las {{.Time}} fue cancelada.
{{end}}

{{define "reminder"}}Hola {{.ClientName}},

Te recordamos tu cita de hoy para {{.Service}} a las {{.Time}}.
{{end}}

{{define "digest"}}Citas del día {{.Date}}
{{range .Items}}
{{.Time}}  {{.ClientName}}  {{.ClientEmail}}  {{.ClientPhone}}  {{.Service}}{{end}}
{{end}}
`

var (
	htmlSet = htmltemplate.Must(htmltemplate.New("mail").Funcs(funcs).Parse(htmlTemplates))
	textSet = texttemplate.Must(texttemplate.New("mail").Funcs(funcs).Parse(textTemplates))
)

func render(name string, data any) (text, html string, err error) {
	var tb, hb strings.Builder
	if err := textSet.ExecuteTemplate(&tb, name, data); err != nil {
		return "", "", err
	}
	if err := htmlSet.ExecuteTemplate(&hb, name, data); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(tb.String()), strings.TrimSpace(hb.String()), nil
}
